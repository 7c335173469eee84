package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"financefam/internal/core"
)

const DefaultReceiptMaxBytes = 5 << 20

// WithReceiptLimit sets the largest receipt AddTransactionWithReceipt accepts.
func (s *LedgerService) WithReceiptLimit(n int64) *LedgerService {
	if n > 0 {
		s.receiptMax = n
	}
	return s
}

// AddTransactionWithReceipt reads the receipt completely before anything is
// stored. A failed read stores nothing. A nil or empty receipt records the
// transaction without one.
func (s *LedgerService) AddTransactionWithReceipt(ctx context.Context, in TransactionInput, receipt io.Reader) (core.Transaction, error) {
	url, err := s.receiptDataURL(ctx, receipt)
	if err != nil {
		return core.Transaction{}, err
	}
	return s.add(ctx, in, url)
}

// receiptDataURL encodes the receipt as a data: URL with a sniffed media type.
func (s *LedgerService) receiptDataURL(ctx context.Context, r io.Reader) (string, error) {
	if r == nil {
		return "", nil
	}
	data, err := io.ReadAll(io.LimitReader(r, s.receiptMax+1))
	if err != nil {
		slog.WarnContext(ctx, "Failed to read receipt", "component", "ledger", "error", err)
		return "", core.NewDomainError(core.ErrReceiptUnreadable, "Could not read the receipt file.")
	}
	if int64(len(data)) > s.receiptMax {
		return "", core.NewDomainError(core.ErrReceiptTooLarge,
			fmt.Sprintf("Receipt must be at most %d KB.", s.receiptMax/1024))
	}
	if len(data) == 0 {
		return "", nil
	}

	mt := strings.ReplaceAll(mimetype.Detect(data).String(), " ", "")
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
