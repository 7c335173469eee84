package core

import (
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	Deposit  Direction = "deposit"
	Withdraw Direction = "withdraw"

	// RecurrenceNone marks a transaction that is recorded exactly once.
	RecurrenceNone = "none"
)

type (
	TransactionType string

	// Direction of a balance movement on a goal or on savings.
	Direction string

	User struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Role      string    `json:"role"`
		CreatedAt time.Time `json:"createdAt"`
	}

	Admin struct {
		ID        string    `json:"id"`
		Username  string    `json:"username"`
		Password  string    `json:"password"`
		CreatedAt time.Time `json:"createdAt"`
	}

	Transaction struct {
		ID          string          `json:"id"`
		UserID      string          `json:"userId"`
		Type        TransactionType `json:"type"`
		Amount      Money           `json:"amount"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		Date        Date            `json:"date"`
		Time        string          `json:"time"`
		Recurrence  string          `json:"recurrence,omitempty"`
		ReceiptURL  string          `json:"receiptUrl,omitempty"`
		CreatedAt   time.Time       `json:"createdAt"`
	}

	// HistoryEntry is one balance movement. Entries are append-only.
	HistoryEntry struct {
		ID          string    `json:"id"`
		Type        Direction `json:"type"`
		Amount      Money     `json:"amount"`
		Date        time.Time `json:"date"`
		Observation string    `json:"observation"`
		Actor       string    `json:"actor"`
	}

	Goal struct {
		ID            string         `json:"id"`
		UserID        string         `json:"userId"`
		Title         string         `json:"title"`
		TargetAmount  Money          `json:"targetAmount"`
		CurrentAmount Money          `json:"currentAmount"`
		History       []HistoryEntry `json:"history"`
		CreatedAt     time.Time      `json:"createdAt"`
	}

	// Savings is the single running balance of a user.
	Savings struct {
		UserID  string         `json:"userId"`
		Amount  Money          `json:"amount"`
		History []HistoryEntry `json:"history"`
	}

	LogEntry struct {
		ID        string    `json:"id"`
		Timestamp time.Time `json:"timestamp"`
		Action    string    `json:"action"`
		Target    string    `json:"target"`
		Actor     string    `json:"actor"`
	}
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (d Direction) Valid() bool {
	return d == Deposit || d == Withdraw
}

// IsRecurring reports whether the transaction asked for more than one occurrence.
func (t Transaction) IsRecurring() bool {
	r := strings.TrimSpace(t.Recurrence)
	return r != "" && r != RecurrenceNone
}

// Signed returns the amount with the sign implied by the transaction type.
func (t Transaction) Signed() Money {
	if t.Type == Expense {
		return Money{Cents: -t.Amount.Cents}
	}
	return t.Amount
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	return t.Date.Validate()
}

// Progress returns the completion percentage of the goal, capped at 100.
func (g Goal) Progress() float64 {
	if g.TargetAmount.Cents <= 0 {
		return 0
	}
	p := float64(g.CurrentAmount.Cents) / float64(g.TargetAmount.Cents) * 100
	if p > 100 {
		return 100
	}
	return p
}

// Clone returns a copy of the goal that shares no history backing array.
func (g Goal) Clone() Goal {
	g.History = cloneHistory(g.History)
	return g
}

func (s Savings) Clone() Savings {
	s.History = cloneHistory(s.History)
	return s
}

// NewSavings returns the zero-balance record used before the first movement.
func NewSavings(userID string) Savings {
	return Savings{UserID: userID, History: []HistoryEntry{}}
}

// Newest returns up to n history entries, most recent first.
// A non-positive n returns the whole history.
func Newest(history []HistoryEntry, n int) []HistoryEntry {
	if n <= 0 || n > len(history) {
		n = len(history)
	}
	out := make([]HistoryEntry, 0, n)
	for i := len(history) - 1; i >= len(history)-n; i-- {
		out = append(out, history[i])
	}
	return out
}

func cloneHistory(h []HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, len(h))
	copy(out, h)
	return out
}
