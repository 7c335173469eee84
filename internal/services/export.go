package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"financefam/internal/core"
)

const (
	sheetTransactions = "Transactions"
	sheetSummary      = "Summary"
	// Built-in number format "#,##0.00".
	numFmtAmount = 4
)

// ExportMonth writes the month's transactions and totals as an XLSX workbook.
func (s *LedgerService) ExportMonth(ctx context.Context, userID string, year, month int, w io.Writer) error {
	sum, err := s.MonthSummary(ctx, userID, year, month)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeTransactionSheet(f, sum); err != nil {
		return fmt.Errorf("write transactions sheet: %w", err)
	}
	if err := writeSummarySheet(f, sum); err != nil {
		return fmt.Errorf("write summary sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	slog.InfoContext(ctx, "Month exported",
		"component", "ledger", "operation", "export",
		"user_id", userID, "year", year, "month", month, "count", len(sum.Transactions))
	return nil
}

func writeTransactionSheet(f *excelize.File, sum core.MonthSummary) error {
	if err := f.SetSheetName("Sheet1", sheetTransactions); err != nil {
		return err
	}
	header := []any{"Date", "Time", "Type", "Category", "Description", "Amount"}
	if err := f.SetSheetRow(sheetTransactions, "A1", &header); err != nil {
		return err
	}
	for i, t := range sum.Transactions {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{t.Date.String(), t.Time, string(t.Type), t.Category, t.Description, t.Signed().Float()}
		if err := f.SetSheetRow(sheetTransactions, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheetTransactions, "D", "E", 24); err != nil {
		return err
	}
	if len(sum.Transactions) == 0 {
		return nil
	}
	return styleAmounts(f, sheetTransactions, "F2", fmt.Sprintf("F%d", len(sum.Transactions)+1))
}

func writeSummarySheet(f *excelize.File, sum core.MonthSummary) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return err
	}
	rows := [][]any{
		{"Period", fmt.Sprintf("%04d-%02d", sum.Year, sum.Month)},
		{"Total income", sum.TotalIncome.Float()},
		{"Total expense", sum.TotalExpense.Float()},
		{"Balance", sum.Balance.Float()},
		{},
		{"Category", "Type", "Amount"},
	}
	for _, c := range sum.ByCategory {
		rows = append(rows, []any{c.Name, string(c.Type), c.Amount.Float()})
	}
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if err := f.SetSheetRow(sheetSummary, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheetSummary, "A", "A", 18); err != nil {
		return err
	}
	if err := styleAmounts(f, sheetSummary, "B2", "B4"); err != nil {
		return err
	}
	if len(sum.ByCategory) > 0 {
		return styleAmounts(f, sheetSummary, "C7", fmt.Sprintf("C%d", len(rows)))
	}
	return nil
}

func styleAmounts(f *excelize.File, sheet, from, to string) error {
	style, err := f.NewStyle(&excelize.Style{NumFmt: numFmtAmount})
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, from, to, style)
}
