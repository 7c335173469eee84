package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"financefam/internal/core"
	"financefam/internal/storage"
)

const (
	MsgGoalNotFound     = "Goal not found."
	MsgGoalInsufficient = "Insufficient goal balance!"
)

type GoalInput struct {
	UserID       string     `json:"userId" validate:"required"`
	Title        string     `json:"title" validate:"required,max=80"`
	TargetAmount core.Money `json:"targetAmount"`
}

// BalanceInput is one deposit or withdrawal on a goal or on savings.
type BalanceInput struct {
	Amount      core.Money     `json:"amount"`
	Direction   core.Direction `json:"type" validate:"required,oneof=deposit withdraw"`
	Observation string         `json:"observation" validate:"max=200"`
}

type GoalService struct {
	store     storage.GoalStore
	publisher Publisher
	validator *Validator

	now   func() time.Time
	newID func() string
}

func NewGoalService(store storage.GoalStore, publisher Publisher, v *Validator) *GoalService {
	return &GoalService{
		store:     store,
		publisher: publisher,
		validator: v,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (s *GoalService) AddGoal(ctx context.Context, in GoalInput) (core.Goal, error) {
	if err := s.validator.Struct(in); err != nil {
		return core.Goal{}, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return core.Goal{}, invalid(core.ErrEmptyTitle)
	}
	if err := in.TargetAmount.Validate(); err != nil {
		return core.Goal{}, invalid(err)
	}

	g := core.Goal{
		ID:           s.newID(),
		UserID:       in.UserID,
		Title:        title,
		TargetAmount: in.TargetAmount,
		History:      []core.HistoryEntry{},
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.InsertGoal(ctx, g); err != nil {
		return core.Goal{}, fmt.Errorf("save goal: %w", err)
	}
	slog.InfoContext(ctx, "Goal created", "component", "goal", "user_id", g.UserID, "goal_id", g.ID)
	return g, nil
}

func (s *GoalService) ListGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	goals, err := s.store.ListGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return goals, nil
}

// UpdateGoalBalance applies a deposit or withdrawal and records it in the
// goal history in the same store update. A user session may only move its
// own goals.
func (s *GoalService) UpdateGoalBalance(ctx context.Context, sess core.Session, goalID string, in BalanceInput) (core.Goal, error) {
	if err := s.validator.Struct(in); err != nil {
		return core.Goal{}, err
	}
	mv := core.Movement{
		Amount:      in.Amount,
		Direction:   in.Direction,
		Observation: in.Observation,
		Actor:       sess.GoalActor(),
		At:          s.now().UTC(),
		EntryID:     s.newID(),
	}

	g, err := s.store.UpdateGoal(ctx, goalID, func(g *core.Goal) error {
		if !canAccess(sess, g.UserID) {
			return core.ErrNotFound
		}
		return g.Apply(mv)
	})
	switch {
	case errors.Is(err, core.ErrNotFound):
		return core.Goal{}, core.NewDomainError(core.ErrNotFound, MsgGoalNotFound)
	case errors.Is(err, core.ErrInsufficientBalance):
		return core.Goal{}, core.NewDomainError(core.ErrInsufficientBalance, MsgGoalInsufficient)
	case isInvalid(err):
		return core.Goal{}, invalid(err)
	case err != nil:
		return core.Goal{}, fmt.Errorf("update goal %s: %w", goalID, err)
	}

	slog.InfoContext(ctx, "Goal balance updated",
		"component", "goal",
		"goal_id", g.ID,
		"direction", mv.Direction,
		"amount_cents", mv.Amount.Cents,
		"actor", mv.Actor)
	publish(ctx, s.publisher, core.Event{
		Type:       core.EventGoalUpdated,
		UserID:     g.UserID,
		EntityID:   g.ID,
		Amount:     mv.Amount,
		OccurredAt: mv.At,
	})
	return g, nil
}

// GoalHistory returns the movements of a goal, newest first.
func (s *GoalService) GoalHistory(ctx context.Context, sess core.Session, goalID string) ([]core.HistoryEntry, error) {
	g, err := s.store.GetGoal(ctx, goalID)
	if errors.Is(err, core.ErrNotFound) || (err == nil && !canAccess(sess, g.UserID)) {
		return nil, core.NewDomainError(core.ErrNotFound, MsgGoalNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get goal %s: %w", goalID, err)
	}
	return core.Newest(g.History, 0), nil
}

// canAccess confines a plain user session to its own records.
func canAccess(sess core.Session, ownerID string) bool {
	if sess.IsUser() && !sess.IsAdmin() {
		return sess.User.ID == ownerID
	}
	return true
}
