package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"financefam/internal/core"
	"financefam/internal/storage"
)

// MaxRecurrence bounds how many monthly copies one request can create.
const MaxRecurrence = 600

type TransactionInput struct {
	UserID      string               `json:"userId" validate:"required"`
	Type        core.TransactionType `json:"type" validate:"required,oneof=income expense"`
	Amount      core.Money           `json:"amount"`
	Category    string               `json:"category" validate:"required,max=60"`
	Description string               `json:"description" validate:"max=200"`
	// Date defaults to today and Time to the current HH:MM.
	Date       core.Date `json:"date"`
	Time       string    `json:"time" validate:"omitempty,datetime=15:04"`
	Recurrence string    `json:"recurrence" validate:"max=16"`
}

// LedgerService records income and expenses and summarizes them per month.
type LedgerService struct {
	store     storage.TransactionStore
	publisher Publisher
	validator *Validator

	receiptMax int64
	now        func() time.Time
	newID      func() string
}

func NewLedgerService(store storage.TransactionStore, publisher Publisher, v *Validator) *LedgerService {
	return &LedgerService{
		store:      store,
		publisher:  publisher,
		validator:  v,
		receiptMax: DefaultReceiptMaxBytes,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

func (s *LedgerService) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// AddTransaction stores the transaction and, for a recurrence count N > 1,
// N-1 monthly copies. All records are written together. The first record
// is returned.
func (s *LedgerService) AddTransaction(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	return s.add(ctx, in, "")
}

func (s *LedgerService) add(ctx context.Context, in TransactionInput, receiptURL string) (core.Transaction, error) {
	if err := s.validator.Struct(in); err != nil {
		return core.Transaction{}, err
	}

	now := s.now()
	if in.Date.IsZero() {
		in.Date = core.DateOf(now)
	}
	if in.Time == "" {
		in.Time = now.Format("15:04")
	}

	base := core.Transaction{
		ID:          s.newID(),
		UserID:      in.UserID,
		Type:        in.Type,
		Amount:      in.Amount,
		Category:    strings.TrimSpace(in.Category),
		Description: in.Description,
		Date:        in.Date,
		Time:        in.Time,
		Recurrence:  strings.TrimSpace(in.Recurrence),
		ReceiptURL:  receiptURL,
		CreatedAt:   now.UTC(),
	}
	if err := base.Validate(); err != nil {
		return core.Transaction{}, invalid(err)
	}

	n := recurrenceCount(ctx, base.Recurrence)
	txs := make([]core.Transaction, n)
	txs[0] = base
	for i := 1; i < n; i++ {
		t := base
		t.ID = s.newID()
		t.Date = base.Date.AddMonths(i)
		txs[i] = t
	}

	if err := s.store.InsertTransactions(ctx, txs); err != nil {
		return core.Transaction{}, fmt.Errorf("save transactions: %w", err)
	}

	slog.InfoContext(ctx, "Transaction added",
		"component", "ledger",
		"user_id", base.UserID,
		"transaction_id", base.ID,
		"type", base.Type,
		"amount_cents", base.Amount.Cents,
		"count", n)

	publish(ctx, s.publisher, core.Event{
		Type:       core.EventTransactionCreated,
		UserID:     base.UserID,
		EntityID:   base.ID,
		Amount:     base.Amount,
		Count:      n,
		OccurredAt: base.CreatedAt,
	})
	return base, nil
}

// recurrenceCount turns the recurrence field into the number of records to
// create. The leading run of digits is the count, so "3 months" and "3.5"
// both mean 3. Anything without a positive leading integer yields a single
// record.
func recurrenceCount(ctx context.Context, r string) int {
	r = strings.TrimSpace(r)
	if r == "" || r == core.RecurrenceNone {
		return 1
	}
	digits := r[:len(r)-len(strings.TrimLeft(r, "0123456789"))]
	n, err := strconv.Atoi(digits)
	if errors.Is(err, strconv.ErrRange) {
		return MaxRecurrence
	}
	if err != nil || n < 1 {
		slog.DebugContext(ctx, "Malformed recurrence count, recording once", "component", "ledger", "recurrence", r)
		return 1
	}
	return min(n, MaxRecurrence)
}

// DeleteTransaction removes a single record of userID. Recurring siblings
// stay. An id that is absent or owned by someone else is a no-op.
func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, id string) error {
	txs, err := s.ListTransactions(ctx, userID)
	if err != nil {
		return err
	}
	if !slices.ContainsFunc(txs, func(t core.Transaction) bool { return t.ID == id }) {
		slog.DebugContext(ctx, "Transaction not found for user, nothing to delete",
			"component", "ledger", "user_id", userID, "transaction_id", id)
		return nil
	}

	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction deleted", "component", "ledger", "user_id", userID, "transaction_id", id)
	publish(ctx, s.publisher, core.Event{
		Type:       core.EventTransactionDeleted,
		UserID:     userID,
		EntityID:   id,
		OccurredAt: s.now().UTC(),
	})
	return nil
}

func (s *LedgerService) MonthSummary(ctx context.Context, userID string, year, month int) (core.MonthSummary, error) {
	if month < 1 || month > 12 {
		return core.MonthSummary{}, invalid(core.ErrInvalidMonth)
	}
	txs, err := s.ListTransactions(ctx, userID)
	if err != nil {
		return core.MonthSummary{}, err
	}
	return core.Summarize(txs, year, month), nil
}
