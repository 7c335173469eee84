package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"financefam/internal/core"
	"financefam/internal/storage"
)

const (
	MsgSavingsInsufficient = "Insufficient balance!"
	// RecentHistorySize is how many savings movements the overview shows.
	RecentHistorySize = 5
)

type SavingsService struct {
	store     storage.SavingsStore
	publisher Publisher
	validator *Validator

	now   func() time.Time
	newID func() string
}

func NewSavingsService(store storage.SavingsStore, publisher Publisher, v *Validator) *SavingsService {
	return &SavingsService{
		store:     store,
		publisher: publisher,
		validator: v,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// GetSavings returns the stored record, or an unsaved zero record when the
// user never moved money.
func (s *SavingsService) GetSavings(ctx context.Context, userID string) (core.Savings, error) {
	sv, err := s.store.GetSavings(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return core.NewSavings(userID), nil
	}
	if err != nil {
		return core.Savings{}, fmt.Errorf("get savings: %w", err)
	}
	return sv, nil
}

func (s *SavingsService) UpdateSavings(ctx context.Context, sess core.Session, userID string, in BalanceInput) (core.Savings, error) {
	if err := s.validator.Struct(in); err != nil {
		return core.Savings{}, err
	}
	mv := core.Movement{
		Amount:      in.Amount,
		Direction:   in.Direction,
		Observation: in.Observation,
		Actor:       sess.SavingsActor(),
		At:          s.now().UTC(),
		EntryID:     s.newID(),
	}

	sv, err := s.store.UpdateSavings(ctx, userID, func(sv *core.Savings) error {
		return sv.Apply(mv)
	})
	switch {
	case errors.Is(err, core.ErrInsufficientBalance):
		return core.Savings{}, core.NewDomainError(core.ErrInsufficientBalance, MsgSavingsInsufficient)
	case isInvalid(err):
		return core.Savings{}, invalid(err)
	case err != nil:
		return core.Savings{}, fmt.Errorf("update savings: %w", err)
	}

	slog.InfoContext(ctx, "Savings updated",
		"component", "savings",
		"user_id", userID,
		"direction", mv.Direction,
		"amount_cents", mv.Amount.Cents,
		"actor", mv.Actor)
	publish(ctx, s.publisher, core.Event{
		Type:       core.EventSavingsUpdated,
		UserID:     userID,
		EntityID:   userID,
		Amount:     mv.Amount,
		OccurredAt: mv.At,
	})
	return sv, nil
}

// RecentSavingsHistory returns up to n movements, newest first.
func (s *SavingsService) RecentSavingsHistory(ctx context.Context, userID string, n int) ([]core.HistoryEntry, error) {
	sv, err := s.GetSavings(ctx, userID)
	if err != nil {
		return nil, err
	}
	return core.Newest(sv.History, n), nil
}
