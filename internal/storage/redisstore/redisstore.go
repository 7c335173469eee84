// Package redisstore keeps every collection in Redis hashes of JSON
// documents. Per-user index sets map a user to their transactions and goals,
// and the audit log is a list with the newest entry at the head.
package redisstore

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"financefam/internal/core"
	"financefam/internal/storage"
)

const (
	DefaultPrefix = "financefam"
	pingTimeout   = 10 * time.Second
	maxTxRetries  = 16
)

type Store struct {
	client *redis.Client
	prefix string
	owned  bool
}

var _ storage.Store = (*Store)(nil)

// Open parses a redis:// URL, connects and pings the server.
func Open(ctx context.Context, url, prefix string) (*Store, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.MinIdleConns = 2
	opt.ConnMaxIdleTime = 200 * time.Second

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	s := New(client, prefix)
	s.owned = true
	return s, nil
}

// New wraps an existing client. Close leaves the client open.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}

func (s *Store) key(collection string) string {
	return s.prefix + ":" + collection
}

func (s *Store) userIndex(collection, userID string) string {
	return s.prefix + ":" + collection + ":by-user:" + userID
}

// --- Users ---

func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	users, err := hashAll[core.User](ctx, s.client, s.key(storage.CollectionUsers), storage.CollectionUsers)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(users, func(a, b core.User) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return users, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (core.User, error) {
	return hashGet[core.User](ctx, s.client, s.key(storage.CollectionUsers), storage.CollectionUsers, id)
}

func (s *Store) UpsertUser(ctx context.Context, u core.User) error {
	return hashSet(ctx, s.client, s.key(storage.CollectionUsers), u.ID, u)
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.client.HDel(ctx, s.key(storage.CollectionUsers), id).Err()
}

// --- Admins ---

func (s *Store) ListAdmins(ctx context.Context) ([]core.Admin, error) {
	admins, err := hashAll[core.Admin](ctx, s.client, s.key(storage.CollectionAdmins), storage.CollectionAdmins)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(admins, func(a, b core.Admin) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return admins, nil
}

func (s *Store) GetAdmin(ctx context.Context, id string) (core.Admin, error) {
	return hashGet[core.Admin](ctx, s.client, s.key(storage.CollectionAdmins), storage.CollectionAdmins, id)
}

func (s *Store) UpsertAdmin(ctx context.Context, a core.Admin) error {
	return hashSet(ctx, s.client, s.key(storage.CollectionAdmins), a.ID, a)
}

func (s *Store) DeleteAdmin(ctx context.Context, id string) error {
	return s.client.HDel(ctx, s.key(storage.CollectionAdmins), id).Err()
}

// --- Transactions ---

func (s *Store) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	out, err := indexed[core.Transaction](ctx, s, storage.CollectionTransactions, userID)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b core.Transaction) int {
		return cmp.Or(a.Date.Compare(b.Date.Time), a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) InsertTransactions(ctx context.Context, txs []core.Transaction) error {
	docs := make([]string, len(txs))
	for i, t := range txs {
		doc, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode transaction %s: %w", t.ID, err)
		}
		docs[i] = string(doc)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, t := range txs {
			pipe.HSet(ctx, s.key(storage.CollectionTransactions), t.ID, docs[i])
			pipe.SAdd(ctx, s.userIndex(storage.CollectionTransactions, t.UserID), t.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert transactions: %w", err)
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	key := s.key(storage.CollectionTransactions)
	t, err := hashGet[core.Transaction](ctx, s.client, key, storage.CollectionTransactions, id)
	if errors.Is(err, core.ErrNotFound) {
		// Either absent or undecodable; drop the field in both cases.
		return s.client.HDel(ctx, key, id).Err()
	}
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, key, id)
		pipe.SRem(ctx, s.userIndex(storage.CollectionTransactions, t.UserID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return nil
}

// --- Goals ---

func (s *Store) ListGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	out, err := indexed[core.Goal](ctx, s, storage.CollectionGoals, userID)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b core.Goal) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) GetGoal(ctx context.Context, id string) (core.Goal, error) {
	return hashGet[core.Goal](ctx, s.client, s.key(storage.CollectionGoals), storage.CollectionGoals, id)
}

func (s *Store) InsertGoal(ctx context.Context, g core.Goal) error {
	doc, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode goal %s: %w", g.ID, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(storage.CollectionGoals), g.ID, string(doc))
		pipe.SAdd(ctx, s.userIndex(storage.CollectionGoals, g.UserID), g.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert goal %s: %w", g.ID, err)
	}
	return nil
}

func (s *Store) UpdateGoal(ctx context.Context, id string, fn storage.GoalUpdate) (core.Goal, error) {
	key := s.key(storage.CollectionGoals)
	var out core.Goal
	err := s.watch(ctx, key, func(tx *redis.Tx) error {
		g, err := hashGet[core.Goal](ctx, tx, key, storage.CollectionGoals, id)
		if err != nil {
			return err
		}
		if err := fn(&g); err != nil {
			return err
		}
		doc, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("encode goal %s: %w", id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, string(doc))
			return nil
		})
		out = g
		return err
	})
	if err != nil {
		return core.Goal{}, err
	}
	return out, nil
}

// --- Savings ---

func (s *Store) GetSavings(ctx context.Context, userID string) (core.Savings, error) {
	return hashGet[core.Savings](ctx, s.client, s.key(storage.CollectionSavings), storage.CollectionSavings, userID)
}

func (s *Store) UpdateSavings(ctx context.Context, userID string, fn storage.SavingsUpdate) (core.Savings, error) {
	key := s.key(storage.CollectionSavings)
	var out core.Savings
	err := s.watch(ctx, key, func(tx *redis.Tx) error {
		sv, err := hashGet[core.Savings](ctx, tx, key, storage.CollectionSavings, userID)
		if errors.Is(err, core.ErrNotFound) {
			sv = core.NewSavings(userID)
		} else if err != nil {
			return err
		}
		if err := fn(&sv); err != nil {
			return err
		}
		doc, err := json.Marshal(sv)
		if err != nil {
			return fmt.Errorf("encode savings %s: %w", userID, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, userID, string(doc))
			return nil
		})
		out = sv
		return err
	})
	if err != nil {
		return core.Savings{}, err
	}
	return out, nil
}

// --- Logs ---

func (s *Store) ListLogs(ctx context.Context) ([]core.LogEntry, error) {
	raw, err := s.client.LRange(ctx, s.key(storage.CollectionLogs), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	out := make([]core.LogEntry, 0, len(raw))
	for i, doc := range raw {
		var e core.LogEntry
		if err := json.Unmarshal([]byte(doc), &e); err != nil {
			slog.WarnContext(ctx, "Skipping corrupt record",
				"component", "storage", "collection", storage.CollectionLogs, "index", i, "error", err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) PrependLog(ctx context.Context, e core.LogEntry) error {
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode log entry: %w", err)
	}
	return s.client.LPush(ctx, s.key(storage.CollectionLogs), string(doc)).Err()
}

// --- helpers ---

// watch runs fn under WATCH on key and retries when another client wrote
// the key between the read and the EXEC.
func (s *Store) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		slog.DebugContext(ctx, "Optimistic transaction conflict, retrying",
			"component", "storage", "key", key, "attempt", i+1)
	}
	return fmt.Errorf("update %s: too many concurrent writers", key)
}

// indexed loads the documents of collection listed in the user's index set.
// Ids whose document is gone are ignored.
func indexed[T any](ctx context.Context, s *Store, collection, userID string) ([]T, error) {
	ids, err := s.client.SMembers(ctx, s.userIndex(collection, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s index: %w", collection, err)
	}
	if len(ids) == 0 {
		return []T{}, nil
	}
	vals, err := s.client.HMGet(ctx, s.key(collection), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", collection, err)
	}
	raw := make(map[string]string, len(vals))
	for i, v := range vals {
		if doc, ok := v.(string); ok {
			raw[ids[i]] = doc
		}
	}
	return decodeAll[T](ctx, collection, raw), nil
}

// hashCmds is the subset of commands shared by *redis.Client and *redis.Tx.
type hashCmds interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

func hashAll[T any](ctx context.Context, c hashCmds, key, collection string) ([]T, error) {
	raw, err := c.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return decodeAll[T](ctx, collection, raw), nil
}

// hashGet reads one field. A missing or corrupt document reads as ErrNotFound.
func hashGet[T any](ctx context.Context, c hashCmds, key, collection, id string) (T, error) {
	var v T
	doc, err := c.HGet(ctx, key, id).Result()
	if errors.Is(err, redis.Nil) {
		return v, core.ErrNotFound
	}
	if err != nil {
		return v, fmt.Errorf("get %s %s: %w", collection, id, err)
	}
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		slog.WarnContext(ctx, "Treating corrupt record as missing",
			"component", "storage", "collection", collection, "id", id, "error", err)
		var zero T
		return zero, core.ErrNotFound
	}
	return v, nil
}

func hashSet(ctx context.Context, c hashCmds, key, id string, v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", id, err)
	}
	return c.HSet(ctx, key, id, string(doc)).Err()
}

func decodeAll[T any](ctx context.Context, collection string, raw map[string]string) []T {
	out := make([]T, 0, len(raw))
	for id, doc := range raw {
		var v T
		if err := json.Unmarshal([]byte(doc), &v); err != nil {
			slog.WarnContext(ctx, "Skipping corrupt record",
				"component", "storage", "collection", collection, "id", id, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}
