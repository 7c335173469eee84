package services

import (
	"context"
	"errors"
	"testing"

	"financefam/internal/core"
	"financefam/internal/storage/memory"
)

func newAdmin() (*AdminService, *AuditService, *memory.Store) {
	store := memory.New()
	audit := NewAuditService(store)
	audit.now = fixedNow
	audit.newID = seqIDs("log")
	svc := NewAdminService(store, store, audit, NewValidator())
	svc.now = fixedNow
	svc.newID = seqIDs("id")
	return svc, audit, store
}

func TestAdminService_UserLifecycleIsAudited(t *testing.T) {
	ctx := context.Background()
	svc, audit, _ := newAdmin()
	sess := adminSession(adminRoot)

	u, err := svc.AddUser(ctx, sess, UserInput{Name: " Carla ", Role: "child"})
	if err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}
	if u.Name != "Carla" || u.ID == "" {
		t.Errorf("user = %+v", u)
	}
	if err := svc.DeleteUser(ctx, sess, u.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	if err := svc.DeleteUser(ctx, sess, "missing"); err != nil {
		t.Fatalf("DeleteUser(missing) error = %v", err)
	}

	logs, err := audit.ListLogs(ctx)
	if err != nil {
		t.Fatalf("ListLogs() error = %v", err)
	}
	want := []struct{ action, target string }{
		{ActionDeletedUser, "Carla"},
		{ActionCreatedUser, "Carla"},
	}
	if len(logs) != len(want) {
		t.Fatalf("got %d log entries, want %d: %+v", len(logs), len(want), logs)
	}
	for i, w := range want {
		if logs[i].Action != w.action || logs[i].Target != w.target || logs[i].Actor != "root" {
			t.Errorf("logs[%d] = %+v, want %s %s by root", i, logs[i], w.action, w.target)
		}
	}
}

func TestAdminService_AuditActorWithoutAdmin(t *testing.T) {
	ctx := context.Background()
	svc, audit, _ := newAdmin()

	if _, err := svc.AddUser(ctx, userSession(userAna), UserInput{Name: "Dario"}); err != nil {
		t.Fatal(err)
	}
	logs, _ := audit.ListLogs(ctx)
	if len(logs) != 1 || logs[0].Actor != core.UnknownAdmin {
		t.Errorf("logs = %+v, want actor %q", logs, core.UnknownAdmin)
	}
}

func TestAdminService_AddUserValidation(t *testing.T) {
	svc, audit, _ := newAdmin()
	for _, name := range []string{"", "   "} {
		if _, err := svc.AddUser(context.Background(), core.Session{}, UserInput{Name: name}); !errors.Is(err, core.ErrValidation) {
			t.Errorf("AddUser(%q) error = %v, want validation", name, err)
		}
	}
	if logs, _ := audit.ListLogs(context.Background()); len(logs) != 0 {
		t.Errorf("rejected input was audited: %+v", logs)
	}
}

func TestAdminService_Admins(t *testing.T) {
	ctx := context.Background()
	svc, audit, _ := newAdmin()
	sess := adminSession(adminRoot)

	a, err := svc.AddAdmin(ctx, sess, AdminInput{Username: "maria", Password: "s3cret"})
	if err != nil {
		t.Fatalf("AddAdmin() error = %v", err)
	}

	_, err = svc.AddAdmin(ctx, sess, AdminInput{Username: "MARIA", Password: "other"})
	if !errors.Is(err, core.ErrValidation) || domainMessage(err) != "Username already in use." {
		t.Errorf("duplicate username error = %v", err)
	}
	if _, err := svc.AddAdmin(ctx, sess, AdminInput{Username: "x", Password: "ab"}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("short password error = %v", err)
	}

	if err := svc.DeleteAdmin(ctx, sess, a.ID); err != nil {
		t.Fatalf("DeleteAdmin() error = %v", err)
	}
	admins, _ := svc.ListAdmins(ctx)
	if len(admins) != 0 {
		t.Errorf("admins after delete = %+v", admins)
	}

	logs, _ := audit.ListLogs(ctx)
	if len(logs) != 2 || logs[0].Action != ActionDeletedAdmin || logs[1].Action != ActionCreatedAdmin || logs[0].Target != "maria" {
		t.Errorf("logs = %+v", logs)
	}
}

func TestAdminService_SeedDefaultAdmin(t *testing.T) {
	tests := []struct {
		name     string
		existing bool
		password string
		want     bool
	}{
		{"empty store", false, "changeme", true},
		{"no password configured", false, "", false},
		{"admins already exist", true, "changeme", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc, _, store := newAdmin()
			if tt.existing {
				if err := store.UpsertAdmin(ctx, adminRoot); err != nil {
					t.Fatal(err)
				}
			}

			got, err := svc.SeedDefaultAdmin(ctx, "admin", tt.password)
			if err != nil {
				t.Fatalf("SeedDefaultAdmin() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("SeedDefaultAdmin() = %v, want %v", got, tt.want)
			}
			a, err := store.GetAdmin(ctx, DefaultAdminID)
			if tt.want && (err != nil || a.Username != "admin" || a.Password != tt.password) {
				t.Errorf("seeded admin = %+v, %v", a, err)
			}
			if !tt.want && err == nil {
				t.Errorf("unexpected default admin %+v", a)
			}
		})
	}
}

type failingLogStore struct {
	*memory.Store
}

func (failingLogStore) PrependLog(context.Context, core.LogEntry) error {
	return errors.New("log store offline")
}

func TestAdminService_AuditFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	store := failingLogStore{memory.New()}
	svc := NewAdminService(store, store, NewAuditService(store), NewValidator())

	u, err := svc.AddUser(ctx, adminSession(adminRoot), UserInput{Name: "Eva"})
	if err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}
	if _, err := store.GetUser(ctx, u.ID); err != nil {
		t.Errorf("user was not stored: %v", err)
	}
}
