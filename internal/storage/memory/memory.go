// Package memory is an in-process Store. Data lives only as long as the
// process; it backs tests and the "memory" backend.
package memory

import (
	"context"
	"slices"
	"sync"

	"financefam/internal/core"
	"financefam/internal/storage"
)

type Store struct {
	mu      sync.Mutex
	users   []core.User
	admins  []core.Admin
	txs     []core.Transaction
	goals   []core.Goal
	savings map[string]core.Savings
	logs    []core.LogEntry // newest first
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{savings: map[string]core.Savings{}}
}

func (s *Store) Close() error { return nil }

func (s *Store) ListUsers(_ context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.users), nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.IndexFunc(s.users, func(u core.User) bool { return u.ID == id }); i >= 0 {
		return s.users[i], nil
	}
	return core.User{}, core.ErrNotFound
}

func (s *Store) UpsertUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = upsert(s.users, u, func(x core.User) bool { return x.ID == u.ID })
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = slices.DeleteFunc(s.users, func(u core.User) bool { return u.ID == id })
	return nil
}

func (s *Store) ListAdmins(_ context.Context) ([]core.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.admins), nil
}

func (s *Store) GetAdmin(_ context.Context, id string) (core.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.IndexFunc(s.admins, func(a core.Admin) bool { return a.ID == id }); i >= 0 {
		return s.admins[i], nil
	}
	return core.Admin{}, core.ErrNotFound
}

func (s *Store) UpsertAdmin(_ context.Context, a core.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins = upsert(s.admins, a, func(x core.Admin) bool { return x.ID == a.ID })
	return nil
}

func (s *Store) DeleteAdmin(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins = slices.DeleteFunc(s.admins, func(a core.Admin) bool { return a.ID == id })
	return nil
}

func (s *Store) ListTransactions(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Transaction{}
	for _, t := range s.txs {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) InsertTransactions(_ context.Context, txs []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, txs...)
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = slices.DeleteFunc(s.txs, func(t core.Transaction) bool { return t.ID == id })
	return nil
}

func (s *Store) ListGoals(_ context.Context, userID string) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Goal{}
	for _, g := range s.goals {
		if g.UserID == userID {
			out = append(out, g.Clone())
		}
	}
	return out, nil
}

func (s *Store) GetGoal(_ context.Context, id string) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.goalIndex(id); i >= 0 {
		return s.goals[i].Clone(), nil
	}
	return core.Goal{}, core.ErrNotFound
}

func (s *Store) InsertGoal(_ context.Context, g core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals = append(s.goals, g.Clone())
	return nil
}

func (s *Store) UpdateGoal(_ context.Context, id string, fn storage.GoalUpdate) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.goalIndex(id)
	if i < 0 {
		return core.Goal{}, core.ErrNotFound
	}
	g := s.goals[i].Clone()
	if err := fn(&g); err != nil {
		return core.Goal{}, err
	}
	s.goals[i] = g.Clone()
	return g, nil
}

func (s *Store) GetSavings(_ context.Context, userID string) (core.Savings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv, ok := s.savings[userID]
	if !ok {
		return core.Savings{}, core.ErrNotFound
	}
	return sv.Clone(), nil
}

func (s *Store) UpdateSavings(_ context.Context, userID string, fn storage.SavingsUpdate) (core.Savings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv, ok := s.savings[userID]
	if !ok {
		sv = core.NewSavings(userID)
	}
	sv = sv.Clone()
	if err := fn(&sv); err != nil {
		return core.Savings{}, err
	}
	s.savings[userID] = sv.Clone()
	return sv, nil
}

func (s *Store) ListLogs(_ context.Context) ([]core.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.logs), nil
}

func (s *Store) PrependLog(_ context.Context, e core.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = slices.Insert(s.logs, 0, e)
	return nil
}

func (s *Store) goalIndex(id string) int {
	return slices.IndexFunc(s.goals, func(g core.Goal) bool { return g.ID == id })
}

func upsert[T any](items []T, v T, match func(T) bool) []T {
	if i := slices.IndexFunc(items, match); i >= 0 {
		items[i] = v
		return items
	}
	return append(items, v)
}
