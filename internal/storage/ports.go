package storage

import (
	"context"

	"financefam/internal/core"
)

// Ports for the persistent store. Every collection is keyed by a stable id
// and exposes per-entity reads and writes so adapters can back it with an
// indexed store. Lookups of absent ids return core.ErrNotFound.
type (
	UserStore interface {
		ListUsers(ctx context.Context) ([]core.User, error)
		GetUser(ctx context.Context, id string) (core.User, error)
		UpsertUser(ctx context.Context, u core.User) error
		// DeleteUser is a no-op when the id is absent.
		DeleteUser(ctx context.Context, id string) error
	}

	AdminStore interface {
		ListAdmins(ctx context.Context) ([]core.Admin, error)
		GetAdmin(ctx context.Context, id string) (core.Admin, error)
		UpsertAdmin(ctx context.Context, a core.Admin) error
		DeleteAdmin(ctx context.Context, id string) error
	}

	TransactionStore interface {
		ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
		// InsertTransactions persists all records or none.
		InsertTransactions(ctx context.Context, txs []core.Transaction) error
		DeleteTransaction(ctx context.Context, id string) error
	}

	// GoalUpdate mutates a goal in place. Returning an error aborts the
	// update and nothing is written.
	GoalUpdate func(g *core.Goal) error

	GoalStore interface {
		ListGoals(ctx context.Context, userID string) ([]core.Goal, error)
		GetGoal(ctx context.Context, id string) (core.Goal, error)
		InsertGoal(ctx context.Context, g core.Goal) error
		// UpdateGoal runs fn on the stored goal and writes the result
		// atomically with respect to other updates of the same goal.
		UpdateGoal(ctx context.Context, id string, fn GoalUpdate) (core.Goal, error)
	}

	SavingsUpdate func(s *core.Savings) error

	SavingsStore interface {
		GetSavings(ctx context.Context, userID string) (core.Savings, error)
		// UpdateSavings starts from a zero record when the user has none;
		// that record is only persisted if fn succeeds.
		UpdateSavings(ctx context.Context, userID string, fn SavingsUpdate) (core.Savings, error)
	}

	LogStore interface {
		// ListLogs returns entries newest first.
		ListLogs(ctx context.Context) ([]core.LogEntry, error)
		PrependLog(ctx context.Context, e core.LogEntry) error
	}

	Store interface {
		UserStore
		AdminStore
		TransactionStore
		GoalStore
		SavingsStore
		LogStore
		Close() error
	}
)

// Collection names shared by every adapter.
const (
	CollectionUsers        = "users"
	CollectionAdmins       = "admins"
	CollectionTransactions = "transactions"
	CollectionGoals        = "goals"
	CollectionSavings      = "savings"
	CollectionLogs         = "logs"
)
