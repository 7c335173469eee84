package core

import (
	"cmp"
	"slices"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string          `json:"name"`
	Type   TransactionType `json:"type"`
	Amount Money           `json:"amount"`
}

// MonthSummary is the ledger of one user for a specific year+month.
type MonthSummary struct {
	Year         int              `json:"year"`
	Month        int              `json:"month"` // 1-12
	TotalIncome  Money            `json:"totalIncome"`
	TotalExpense Money            `json:"totalExpense"`
	Balance      Money            `json:"balance"`
	ByCategory   []CategoryAmount `json:"byCategory"`
	Transactions []Transaction    `json:"transactions"`
}

// Summarize filters txs to the calendar month of their Date and aggregates
// them. Transactions come back newest date first.
func Summarize(txs []Transaction, year, month int) MonthSummary {
	s := MonthSummary{
		Year:         year,
		Month:        month,
		ByCategory:   []CategoryAmount{},
		Transactions: []Transaction{},
	}

	type key struct {
		name string
		typ  TransactionType
	}
	byCat := map[key]int{}

	for _, t := range txs {
		if !t.Date.In(year, month) {
			continue
		}
		s.Transactions = append(s.Transactions, t)
		switch t.Type {
		case Income:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
		case Expense:
			s.TotalExpense = s.TotalExpense.Add(t.Amount)
		}
		k := key{t.Category, t.Type}
		if i, ok := byCat[k]; ok {
			s.ByCategory[i].Amount = s.ByCategory[i].Amount.Add(t.Amount)
			continue
		}
		byCat[k] = len(s.ByCategory)
		s.ByCategory = append(s.ByCategory, CategoryAmount{Name: t.Category, Type: t.Type, Amount: t.Amount})
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpense)

	slices.SortStableFunc(s.Transactions, func(a, b Transaction) int {
		return b.Date.Compare(a.Date.Time)
	})
	slices.SortStableFunc(s.ByCategory, func(a, b CategoryAmount) int {
		if c := cmp.Compare(b.Amount.Cents, a.Amount.Cents); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return s
}
