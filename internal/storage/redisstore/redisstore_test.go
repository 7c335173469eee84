package redisstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"financefam/internal/core"
	"financefam/internal/storage"
	"financefam/internal/storage/storetest"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, "test"), mr
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store {
		s, _ := newTestStore(t)
		return s
	})
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := Open(context.Background(), "redis://"+mr.Addr()+"/0", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if s.prefix != DefaultPrefix {
		t.Errorf("prefix = %q, want %q", s.prefix, DefaultPrefix)
	}

	if _, err := Open(context.Background(), "not-a-url", ""); err == nil {
		t.Error("expected error for malformed url")
	}
}

func TestKeysUsePrefix(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	if err := s.UpsertUser(ctx, core.User{ID: "u1", Name: "Ana"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.InsertGoal(ctx, core.Goal{ID: "g1", UserID: "u1", Title: "Trip"}); err != nil {
		t.Fatalf("insert goal: %v", err)
	}

	if !mr.Exists("test:users") {
		t.Error("users hash not written under prefix")
	}
	members, err := mr.Members("test:goals:by-user:u1")
	if err != nil || len(members) != 1 || members[0] != "g1" {
		t.Errorf("goal index = %v, %v", members, err)
	}
}

func TestCorruptDocumentsAreSkipped(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	if err := s.UpsertUser(ctx, core.User{ID: "u1", Name: "Ana"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	mr.HSet("test:users", "u2", "{broken")
	mr.HSet("test:savings", "u2", "[")

	users, err := s.ListUsers(ctx)
	if err != nil || len(users) != 1 || users[0].ID != "u1" {
		t.Fatalf("list users = %+v, %v", users, err)
	}
	if _, err := s.GetSavings(ctx, "u2"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("corrupt savings should read as not found, got %v", err)
	}
}

func TestConcurrentSavingsUpdates(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateSavings(ctx, "u1", func(sv *core.Savings) error {
				return sv.Apply(core.Movement{Amount: core.Money{Cents: 100}, Direction: core.Deposit, Actor: "Ana"})
			})
			if err != nil {
				t.Errorf("update: %v", err)
			}
		}()
	}
	wg.Wait()

	sv, err := s.GetSavings(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sv.Amount.Cents != writers*100 || len(sv.History) != writers {
		t.Fatalf("lost updates: amount=%d history=%d", sv.Amount.Cents, len(sv.History))
	}
}
