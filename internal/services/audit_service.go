package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"financefam/internal/core"
	"financefam/internal/storage"
)

// Audit actions recorded for admin mutations.
const (
	ActionCreatedUser  = "Created user"
	ActionDeletedUser  = "Deleted user"
	ActionCreatedAdmin = "Created admin"
	ActionDeletedAdmin = "Deleted admin"
)

type AuditService struct {
	store storage.LogStore
	now   func() time.Time
	newID func() string
}

func NewAuditService(store storage.LogStore) *AuditService {
	return &AuditService{store: store, now: time.Now, newID: uuid.NewString}
}

// LogAction records action on target, attributed to the session admin.
func (s *AuditService) LogAction(ctx context.Context, sess core.Session, action, target string) error {
	e := core.LogEntry{
		ID:        s.newID(),
		Timestamp: s.now().UTC(),
		Action:    action,
		Target:    target,
		Actor:     sess.AuditActor(),
	}
	if err := s.store.PrependLog(ctx, e); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// ListLogs returns the audit log, newest first.
func (s *AuditService) ListLogs(ctx context.Context) ([]core.LogEntry, error) {
	logs, err := s.store.ListLogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return logs, nil
}
