package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"financefam/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores every collection as JSON documents, one row per
// record, in a single SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection serializes writers so read-modify-write updates never
	// interleave inside this process.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- Users ---

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	return queryDocs[core.User](ctx, r.db, CollectionUsers, `SELECT id, doc FROM users ORDER BY rowid`)
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (core.User, error) {
	return getDoc[core.User](ctx, r.db, CollectionUsers, `SELECT doc FROM users WHERE id = ?`, id)
}

func (r *SQLiteRepository) UpsertUser(ctx context.Context, u core.User) error {
	return r.upsert(ctx, CollectionUsers, `INSERT INTO users (id, doc) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`, u, u.ID)
}

func (r *SQLiteRepository) DeleteUser(ctx context.Context, id string) error {
	return r.exec(ctx, "delete user", `DELETE FROM users WHERE id = ?`, id)
}

// --- Admins ---

func (r *SQLiteRepository) ListAdmins(ctx context.Context) ([]core.Admin, error) {
	return queryDocs[core.Admin](ctx, r.db, CollectionAdmins, `SELECT id, doc FROM admins ORDER BY rowid`)
}

func (r *SQLiteRepository) GetAdmin(ctx context.Context, id string) (core.Admin, error) {
	return getDoc[core.Admin](ctx, r.db, CollectionAdmins, `SELECT doc FROM admins WHERE id = ?`, id)
}

func (r *SQLiteRepository) UpsertAdmin(ctx context.Context, a core.Admin) error {
	return r.upsert(ctx, CollectionAdmins, `INSERT INTO admins (id, doc) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`, a, a.ID)
}

func (r *SQLiteRepository) DeleteAdmin(ctx context.Context, id string) error {
	return r.exec(ctx, "delete admin", `DELETE FROM admins WHERE id = ?`, id)
}

// --- Transactions ---

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	return queryDocs[core.Transaction](ctx, r.db, CollectionTransactions,
		`SELECT id, doc FROM transactions WHERE user_id = ? ORDER BY rowid`, userID)
}

func (r *SQLiteRepository) InsertTransactions(ctx context.Context, txs []core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert transactions: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO transactions (id, user_id, date, doc) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert transaction: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		doc, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode transaction %s: %w", t.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, t.ID, t.UserID, t.Date.String(), string(doc)); err != nil {
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transactions: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	return r.exec(ctx, "delete transaction", `DELETE FROM transactions WHERE id = ?`, id)
}

// --- Goals ---

func (r *SQLiteRepository) ListGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	return queryDocs[core.Goal](ctx, r.db, CollectionGoals,
		`SELECT id, doc FROM goals WHERE user_id = ? ORDER BY rowid`, userID)
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, id string) (core.Goal, error) {
	return getDoc[core.Goal](ctx, r.db, CollectionGoals, `SELECT doc FROM goals WHERE id = ?`, id)
}

func (r *SQLiteRepository) InsertGoal(ctx context.Context, g core.Goal) error {
	doc, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode goal %s: %w", g.ID, err)
	}
	return r.exec(ctx, "insert goal", `INSERT INTO goals (id, user_id, doc) VALUES (?, ?, ?)`, g.ID, g.UserID, string(doc))
}

func (r *SQLiteRepository) UpdateGoal(ctx context.Context, id string, fn GoalUpdate) (core.Goal, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Goal{}, fmt.Errorf("begin update goal: %w", err)
	}
	defer tx.Rollback()

	g, err := getDoc[core.Goal](ctx, tx, CollectionGoals, `SELECT doc FROM goals WHERE id = ?`, id)
	if err != nil {
		return core.Goal{}, err
	}
	if err := fn(&g); err != nil {
		return core.Goal{}, err
	}

	doc, err := json.Marshal(g)
	if err != nil {
		return core.Goal{}, fmt.Errorf("encode goal %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE goals SET doc = ? WHERE id = ?`, string(doc), id); err != nil {
		return core.Goal{}, fmt.Errorf("update goal %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return core.Goal{}, fmt.Errorf("commit goal %s: %w", id, err)
	}
	return g, nil
}

// --- Savings ---

func (r *SQLiteRepository) GetSavings(ctx context.Context, userID string) (core.Savings, error) {
	return getDoc[core.Savings](ctx, r.db, CollectionSavings, `SELECT doc FROM savings WHERE user_id = ?`, userID)
}

func (r *SQLiteRepository) UpdateSavings(ctx context.Context, userID string, fn SavingsUpdate) (core.Savings, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Savings{}, fmt.Errorf("begin update savings: %w", err)
	}
	defer tx.Rollback()

	s, err := getDoc[core.Savings](ctx, tx, CollectionSavings, `SELECT doc FROM savings WHERE user_id = ?`, userID)
	if errors.Is(err, core.ErrNotFound) {
		s = core.NewSavings(userID)
	} else if err != nil {
		return core.Savings{}, err
	}
	if err := fn(&s); err != nil {
		return core.Savings{}, err
	}

	doc, err := json.Marshal(s)
	if err != nil {
		return core.Savings{}, fmt.Errorf("encode savings %s: %w", userID, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO savings (user_id, doc) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET doc = excluded.doc`, userID, string(doc)); err != nil {
		return core.Savings{}, fmt.Errorf("upsert savings %s: %w", userID, err)
	}
	if err := tx.Commit(); err != nil {
		return core.Savings{}, fmt.Errorf("commit savings %s: %w", userID, err)
	}
	return s, nil
}

// --- Logs ---

func (r *SQLiteRepository) ListLogs(ctx context.Context) ([]core.LogEntry, error) {
	return queryDocs[core.LogEntry](ctx, r.db, CollectionLogs, `SELECT id, doc FROM logs ORDER BY seq DESC`)
}

func (r *SQLiteRepository) PrependLog(ctx context.Context, e core.LogEntry) error {
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode log entry: %w", err)
	}
	return r.exec(ctx, "insert log entry", `INSERT INTO logs (id, doc) VALUES (?, ?)`, e.ID, string(doc))
}

// --- helpers ---

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteRepository) exec(ctx context.Context, what, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

func (r *SQLiteRepository) upsert(ctx context.Context, collection, query string, v any, id string) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", collection, id, err)
	}
	return r.exec(ctx, "upsert "+collection, query, id, string(doc))
}

// queryDocs decodes every row of a (id, doc) query. Rows that do not decode
// are skipped with a warning so one corrupt record cannot hide the rest.
func queryDocs[T any](ctx context.Context, q querier, collection, query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		var v T
		if err := json.Unmarshal([]byte(doc), &v); err != nil {
			slog.WarnContext(ctx, "Skipping corrupt record",
				"component", "storage", "collection", collection, "id", id, "error", err)
			continue
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return out, nil
}

// getDoc loads one document. A missing or corrupt row reads as ErrNotFound.
func getDoc[T any](ctx context.Context, q querier, collection, query string, args ...any) (T, error) {
	var v T
	var doc string
	err := q.QueryRowContext(ctx, query, args...).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return v, core.ErrNotFound
	}
	if err != nil {
		return v, fmt.Errorf("get %s: %w", collection, err)
	}
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		slog.WarnContext(ctx, "Treating corrupt record as missing",
			"component", "storage", "collection", collection, "error", err)
		var zero T
		return zero, core.ErrNotFound
	}
	return v, nil
}
