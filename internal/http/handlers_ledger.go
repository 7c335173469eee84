package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"financefam/internal/core"
	"financefam/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// parseYearMonth reads ?year=&month=, defaulting to the current month.
// Range checks are left to the ledger.
func (s *Server) parseYearMonth(r *http.Request) (year, month int, err error) {
	now := s.now()
	year, month = now.Year(), int(now.Month())

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			return 0, 0, core.NewDomainError(core.ErrValidation, "year must be a number")
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			return 0, 0, core.NewDomainError(core.ErrValidation, "month must be a number")
		}
	}
	return year, month, nil
}

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request, sess core.Session) {
	year, month, err := s.parseYearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.svc.Ledger.MonthSummary(r.Context(), sess.User.ID, year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sum)
}

// handleAddTransaction accepts a JSON body, or a multipart form whose
// optional "receipt" file is stored with the transaction.
func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request, sess core.Session) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var in services.TransactionInput
		if !decodeJSON(w, r, &in) {
			return
		}
		in.UserID = sess.User.ID
		tx, err := s.svc.Ledger.AddTransaction(r.Context(), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, tx)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(formAllowance); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, err)
			return
		}
		writeMessage(w, http.StatusBadRequest, "Invalid multipart form.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	in, err := transactionFromForm(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in.UserID = sess.User.ID

	var receipt io.Reader
	file, _, err := r.FormFile("receipt")
	switch {
	case err == nil:
		defer file.Close()
		receipt = file
	case !errors.Is(err, http.ErrMissingFile):
		writeMessage(w, http.StatusBadRequest, "Invalid receipt upload.")
		return
	}

	tx, err := s.svc.Ledger.AddTransactionWithReceipt(r.Context(), in, receipt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, tx)
}

func transactionFromForm(r *http.Request) (services.TransactionInput, error) {
	in := services.TransactionInput{
		Type:        core.TransactionType(strings.TrimSpace(r.FormValue("type"))),
		Category:    r.FormValue("category"),
		Description: r.FormValue("description"),
		Time:        strings.TrimSpace(r.FormValue("time")),
		Recurrence:  strings.TrimSpace(r.FormValue("recurrence")),
	}
	amount, err := core.ParseMoney(r.FormValue("amount"))
	if err != nil {
		return in, core.NewDomainError(core.ErrInvalidAmount, "Amount must be a decimal number.")
	}
	in.Amount = amount
	if v := strings.TrimSpace(r.FormValue("date")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return in, core.NewDomainError(core.ErrInvalidDate, "Date must be a valid calendar date.")
		}
		in.Date = d
	}
	return in, nil
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, sess core.Session) {
	if err := s.svc.Ledger.DeleteTransaction(r.Context(), sess.User.ID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Transaction deleted.")
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, sess core.Session) {
	year, month, err := s.parseYearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Buffer the workbook so a failure can still be reported as JSON.
	var buf bytes.Buffer
	if err := s.svc.Ledger.ExportMonth(r.Context(), sess.User.ID, year, month, &buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="transactions-%04d-%02d.xlsx"`, year, month))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
