// Package storetest holds the behaviour every storage.Store adapter must
// share. Adapter packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"financefam/internal/core"
	"financefam/internal/storage"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) storage.Store

func Run(t *testing.T, newStore Factory) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"users", testUsers},
		{"admins", testAdmins},
		{"transactions", testTransactions},
		{"goals", testGoals},
		{"goal update aborted", testGoalUpdateAborted},
		{"savings", testSavings},
		{"logs newest first", testLogs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

var ts = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func testUsers(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for _, name := range []string{"Ana", "Bruno"} {
		u := core.User{ID: "u-" + name, Name: name, Role: "member", CreatedAt: ts}
		if err := s.UpsertUser(ctx, u); err != nil {
			t.Fatalf("upsert %s: %v", name, err)
		}
	}
	if err := s.UpsertUser(ctx, core.User{ID: "u-Ana", Name: "Ana Maria", Role: "parent", CreatedAt: ts}); err != nil {
		t.Fatalf("update: %v", err)
	}

	users, err := s.ListUsers(ctx)
	if err != nil || len(users) != 2 {
		t.Fatalf("list users = %v, %v", users, err)
	}
	got, err := s.GetUser(ctx, "u-Ana")
	if err != nil || got.Name != "Ana Maria" || !got.CreatedAt.Equal(ts) {
		t.Fatalf("get user = %+v, %v", got, err)
	}

	if err := s.DeleteUser(ctx, "u-Ana"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteUser(ctx, "missing"); err != nil {
		t.Fatalf("delete of absent id should be a no-op: %v", err)
	}
	if _, err := s.GetUser(ctx, "u-Ana"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testAdmins(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := core.Admin{ID: "a1", Username: "root", Password: "secret", CreatedAt: ts}
	if err := s.UpsertAdmin(ctx, a); err != nil {
		t.Fatalf("upsert admin: %v", err)
	}
	got, err := s.GetAdmin(ctx, "a1")
	if err != nil || got.Username != "root" || got.Password != "secret" {
		t.Fatalf("get admin = %+v, %v", got, err)
	}
	if err := s.DeleteAdmin(ctx, "a1"); err != nil {
		t.Fatalf("delete admin: %v", err)
	}
	admins, err := s.ListAdmins(ctx)
	if err != nil || len(admins) != 0 {
		t.Fatalf("list admins after delete = %v, %v", admins, err)
	}
}

func testTransactions(t *testing.T, s storage.Store) {
	ctx := context.Background()
	var batch []core.Transaction
	for i := 0; i < 3; i++ {
		batch = append(batch, core.Transaction{
			ID:        fmt.Sprintf("t%d", i),
			UserID:    "u1",
			Type:      core.Expense,
			Amount:    core.Money{Cents: 1250},
			Category:  "Rent",
			Date:      core.NewDate(2024, 1, 31).AddMonths(i),
			Time:      "09:30",
			CreatedAt: ts,
		})
	}
	other := batch[0]
	other.ID, other.UserID = "t-other", "u2"
	batch = append(batch, other)

	if err := s.InsertTransactions(ctx, batch); err != nil {
		t.Fatalf("insert: %v", err)
	}
	txs, err := s.ListTransactions(ctx, "u1")
	if err != nil || len(txs) != 3 {
		t.Fatalf("list u1 = %d, %v", len(txs), err)
	}
	for _, tx := range txs {
		if tx.Amount.Cents != 1250 || tx.Category != "Rent" || tx.Time != "09:30" {
			t.Fatalf("record did not round-trip: %+v", tx)
		}
	}

	if err := s.DeleteTransaction(ctx, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteTransaction(ctx, "missing"); err != nil {
		t.Fatalf("delete of absent id should be a no-op: %v", err)
	}
	txs, _ = s.ListTransactions(ctx, "u1")
	if len(txs) != 2 {
		t.Fatalf("expected siblings to survive delete, got %d", len(txs))
	}
}

func testGoals(t *testing.T, s storage.Store) {
	ctx := context.Background()
	g := core.Goal{ID: "g1", UserID: "u1", Title: "Trip", TargetAmount: core.Money{Cents: 100000}, History: []core.HistoryEntry{}, CreatedAt: ts}
	if err := s.InsertGoal(ctx, g); err != nil {
		t.Fatalf("insert goal: %v", err)
	}

	for i, cents := range []int64{40000, 2500} {
		updated, err := s.UpdateGoal(ctx, "g1", func(g *core.Goal) error {
			return g.Apply(core.Movement{
				EntryID: fmt.Sprintf("h%d", i), Amount: core.Money{Cents: cents},
				Direction: core.Deposit, Actor: "Ana", At: ts,
			})
		})
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		if len(updated.History) != i+1 {
			t.Fatalf("update %d returned history of %d", i, len(updated.History))
		}
	}

	got, err := s.GetGoal(ctx, "g1")
	if err != nil {
		t.Fatalf("get goal: %v", err)
	}
	if got.CurrentAmount.Cents != 42500 || len(got.History) != 2 || got.History[0].ID != "h0" || got.History[1].ID != "h1" {
		t.Fatalf("unexpected goal after updates: %+v", got)
	}

	goals, err := s.ListGoals(ctx, "u1")
	if err != nil || len(goals) != 1 {
		t.Fatalf("list goals = %v, %v", goals, err)
	}
	if goals, _ := s.ListGoals(ctx, "u2"); len(goals) != 0 {
		t.Fatalf("goals leaked across users: %v", goals)
	}

	if _, err := s.UpdateGoal(ctx, "missing", func(*core.Goal) error { return nil }); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing goal, got %v", err)
	}
}

func testGoalUpdateAborted(t *testing.T, s storage.Store) {
	ctx := context.Background()
	g := core.Goal{ID: "g1", UserID: "u1", Title: "Car", TargetAmount: core.Money{Cents: 1000}, CurrentAmount: core.Money{Cents: 400}, History: []core.HistoryEntry{}}
	if err := s.InsertGoal(ctx, g); err != nil {
		t.Fatalf("insert goal: %v", err)
	}

	_, err := s.UpdateGoal(ctx, "g1", func(g *core.Goal) error {
		g.CurrentAmount = core.Money{Cents: 1}
		return core.ErrInsufficientBalance
	})
	if !errors.Is(err, core.ErrInsufficientBalance) {
		t.Fatalf("expected the update error to propagate, got %v", err)
	}
	got, _ := s.GetGoal(ctx, "g1")
	if got.CurrentAmount.Cents != 400 {
		t.Fatalf("aborted update was persisted: %+v", got)
	}
}

func testSavings(t *testing.T, s storage.Store) {
	ctx := context.Background()
	if _, err := s.GetSavings(ctx, "u1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before first movement, got %v", err)
	}

	_, err := s.UpdateSavings(ctx, "u1", func(sv *core.Savings) error { return core.ErrInsufficientBalance })
	if !errors.Is(err, core.ErrInsufficientBalance) {
		t.Fatalf("expected update error, got %v", err)
	}
	if _, err := s.GetSavings(ctx, "u1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("failed first update must not create a record, got %v", err)
	}

	sv, err := s.UpdateSavings(ctx, "u1", func(sv *core.Savings) error {
		return sv.Apply(core.Movement{EntryID: "h1", Amount: core.Money{Cents: 5000}, Direction: core.Deposit, Actor: "Ana", At: ts})
	})
	if err != nil || sv.Amount.Cents != 5000 {
		t.Fatalf("first deposit = %+v, %v", sv, err)
	}
	got, err := s.GetSavings(ctx, "u1")
	if err != nil || got.Amount.Cents != 5000 || len(got.History) != 1 || got.UserID != "u1" {
		t.Fatalf("stored savings = %+v, %v", got, err)
	}
}

func testLogs(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		e := core.LogEntry{ID: fmt.Sprintf("l%d", i), Timestamp: ts.Add(time.Duration(i) * time.Minute), Action: "Created user", Target: "Ana", Actor: "root"}
		if err := s.PrependLog(ctx, e); err != nil {
			t.Fatalf("prepend %d: %v", i, err)
		}
	}
	logs, err := s.ListLogs(ctx)
	if err != nil || len(logs) != 3 {
		t.Fatalf("list logs = %v, %v", logs, err)
	}
	if logs[0].ID != "l2" || logs[2].ID != "l0" {
		t.Fatalf("logs not newest first: %v", logs)
	}
}
