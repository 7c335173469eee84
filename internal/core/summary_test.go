package core

import "testing"

func TestSummarize(t *testing.T) {
	txs := []Transaction{
		{ID: "a", Type: Income, Amount: Money{Cents: 300000}, Category: "Salary", Date: NewDate(2024, 3, 5)},
		{ID: "b", Type: Expense, Amount: Money{Cents: 4550}, Category: "Food", Date: NewDate(2024, 3, 20)},
		{ID: "c", Type: Expense, Amount: Money{Cents: 1000}, Category: "Food", Date: NewDate(2024, 3, 1)},
		{ID: "d", Type: Expense, Amount: Money{Cents: 9999}, Category: "Food", Date: NewDate(2024, 4, 1)},
		{ID: "e", Type: Expense, Amount: Money{Cents: 2000}, Category: "Rent", Date: NewDate(2023, 3, 10)},
	}

	s := Summarize(txs, 2024, 3)
	if s.TotalIncome.Cents != 300000 || s.TotalExpense.Cents != 5550 || s.Balance.Cents != 294450 {
		t.Fatalf("unexpected totals: %+v", s)
	}
	if len(s.Transactions) != 3 {
		t.Fatalf("expected 3 transactions in month, got %d", len(s.Transactions))
	}
	if s.Transactions[0].ID != "b" || s.Transactions[2].ID != "c" {
		t.Fatalf("transactions not sorted newest first: %v, %v", s.Transactions[0].ID, s.Transactions[2].ID)
	}
	if len(s.ByCategory) != 2 || s.ByCategory[0].Name != "Salary" || s.ByCategory[1].Amount.Cents != 5550 {
		t.Fatalf("unexpected categories: %+v", s.ByCategory)
	}
}

func TestSummarizeEmptyMonth(t *testing.T) {
	s := Summarize(nil, 2024, 1)
	if s.Balance.Cents != 0 || s.Transactions == nil || s.ByCategory == nil {
		t.Fatalf("empty month should have zero totals and empty slices: %+v", s)
	}
}
