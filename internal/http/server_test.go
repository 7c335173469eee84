package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"financefam/internal/cache"
	"financefam/internal/core"
	"financefam/internal/services"
	"financefam/internal/storage/memory"
)

const receiptLimit = 64

type harness struct {
	t     *testing.T
	srv   *Server
	store *memory.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	if err := store.UpsertUser(ctx, core.User{ID: "u-ana", Name: "Ana", Role: "parent"}); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertUser(ctx, core.User{ID: "u-bruno", Name: "Bruno", Role: "child"}); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertAdmin(ctx, core.Admin{ID: "a-root", Username: "root", Password: "secret"}); err != nil {
		t.Fatal(err)
	}

	v := services.NewValidator()
	audit := services.NewAuditService(store)
	svc := Services{
		Ledger:  services.NewLedgerService(store, nil, v).WithReceiptLimit(receiptLimit),
		Goals:   services.NewGoalService(store, nil, v),
		Savings: services.NewSavingsService(store, nil, v),
		Admin:   services.NewAdminService(store, store, audit, v),
		Audit:   audit,
		Auth:    services.NewAuthService(store, store, cache.NewLRUCache[core.Session](100, time.Hour)),
	}
	srv := NewServer(":0", svc, Options{AdminLoginPerMinute: 3, ReceiptMaxBytes: receiptLimit})
	srv.now = func() time.Time { return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC) }
	t.Cleanup(srv.loginLimiter.Stop)
	return &harness{t: t, srv: srv, store: store}
}

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (h *harness) serve(req *http.Request, token string) (*httptest.ResponseRecorder, response) {
	h.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.srv.Handler.ServeHTTP(rr, req)

	var resp response
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			h.t.Fatalf("decode %s %s: %v (%s)", req.Method, req.URL, err, rr.Body.String())
		}
	}
	return rr, resp
}

func (h *harness) do(method, path, token string, body any) (*httptest.ResponseRecorder, response) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return h.serve(req, token)
}

func (h *harness) login(userID string) string {
	h.t.Helper()
	rr, resp := h.do(http.MethodPost, "/api/sessions/user", "", map[string]string{"userId": userID})
	if rr.Code != http.StatusCreated {
		h.t.Fatalf("login %s: %d %s", userID, rr.Code, resp.Message)
	}
	var sess struct{ Token string }
	_ = json.Unmarshal(resp.Data, &sess)
	return sess.Token
}

func (h *harness) loginAdmin() string {
	h.t.Helper()
	rr, resp := h.do(http.MethodPost, "/api/sessions/admin", "", map[string]string{"username": "root", "password": "secret"})
	if rr.Code != http.StatusCreated {
		h.t.Fatalf("admin login: %d %s", rr.Code, resp.Message)
	}
	var sess struct{ Token string }
	_ = json.Unmarshal(resp.Data, &sess)
	return sess.Token
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rr, resp := h.do(http.MethodGet, "/healthz", "", nil)
	if rr.Code != http.StatusOK || !resp.Success {
		t.Fatalf("healthz = %d %+v", rr.Code, resp)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing middleware headers: %v", rr.Header())
	}
}

func TestSessionRequirements(t *testing.T) {
	h := newHarness(t)
	user := h.login("u-ana")
	admin := h.loginAdmin()

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token", http.MethodGet, "/api/transactions", "", http.StatusUnauthorized},
		{"unknown token", http.MethodGet, "/api/transactions", "bogus", http.StatusUnauthorized},
		{"admin on user route", http.MethodGet, "/api/savings", admin, http.StatusForbidden},
		{"user on admin route", http.MethodGet, "/api/logs", user, http.StatusForbidden},
		{"user route", http.MethodGet, "/api/goals", user, http.StatusOK},
		{"admin route", http.MethodGet, "/api/admins", admin, http.StatusOK},
		{"public user list", http.MethodGet, "/api/users", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr, resp := h.do(tt.method, tt.path, tt.token, nil); rr.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rr.Code, tt.want, resp.Message)
			}
		})
	}

	if rr, resp := h.do(http.MethodPost, "/api/sessions/user", "", map[string]string{"userId": "ghost"}); rr.Code != http.StatusNotFound || resp.Message != services.MsgUserNotFound {
		t.Errorf("unknown user login = %d %q", rr.Code, resp.Message)
	}
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	token := h.login("u-ana")

	if rr, _ := h.do(http.MethodDelete, "/api/sessions", token, nil); rr.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rr.Code)
	}
	if rr, _ := h.do(http.MethodGet, "/api/goals", token, nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("token still valid after logout: %d", rr.Code)
	}
	if rr, _ := h.do(http.MethodDelete, "/api/sessions", token, nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("second logout status = %d", rr.Code)
	}
}

func TestTransactions(t *testing.T) {
	h := newHarness(t)
	token := h.login("u-ana")

	rr, resp := h.do(http.MethodPost, "/api/transactions", token, map[string]string{
		"type": "expense", "amount": "12.50", "category": "Food", "date": "2024-03-10", "recurrence": "2",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add status = %d %s", rr.Code, resp.Message)
	}
	var tx core.Transaction
	if err := json.Unmarshal(resp.Data, &tx); err != nil {
		t.Fatal(err)
	}
	if tx.UserID != "u-ana" || tx.Amount.Cents != 1250 {
		t.Errorf("created = %+v", tx)
	}

	_, resp = h.do(http.MethodGet, "/api/transactions?year=2024&month=3", token, nil)
	var sum core.MonthSummary
	if err := json.Unmarshal(resp.Data, &sum); err != nil {
		t.Fatal(err)
	}
	if sum.TotalExpense.Cents != 1250 || len(sum.Transactions) != 1 {
		t.Errorf("march summary = %+v", sum)
	}
	_, resp = h.do(http.MethodGet, "/api/transactions?year=2024&month=4", token, nil)
	_ = json.Unmarshal(resp.Data, &sum)
	if len(sum.Transactions) != 1 {
		t.Errorf("recurring copy missing from april: %+v", sum)
	}

	// Another user's token cannot delete it.
	other := h.login("u-bruno")
	h.do(http.MethodDelete, "/api/transactions/"+tx.ID, other, nil)
	if txs, _ := h.store.ListTransactions(context.Background(), "u-ana"); len(txs) != 2 {
		t.Fatalf("foreign delete removed a record: %d left", len(txs))
	}
	if rr, _ := h.do(http.MethodDelete, "/api/transactions/"+tx.ID, token, nil); rr.Code != http.StatusOK {
		t.Errorf("delete status = %d", rr.Code)
	}
	if txs, _ := h.store.ListTransactions(context.Background(), "u-ana"); len(txs) != 1 {
		t.Errorf("after delete %d records left", len(txs))
	}
}

func TestTransactionErrors(t *testing.T) {
	h := newHarness(t)
	token := h.login("u-ana")

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"malformed json", "/api/transactions", `{"type":`, http.StatusBadRequest},
		{"zero amount", "/api/transactions", map[string]string{"type": "expense", "amount": "0", "category": "Food"}, http.StatusUnprocessableEntity},
		{"bad type", "/api/transactions", map[string]string{"type": "gift", "amount": "1", "category": "Food"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, resp := h.do(http.MethodPost, tt.path, token, tt.body)
			if rr.Code != tt.want || resp.Success || resp.Message == "" {
				t.Errorf("status = %d %+v, want %d", rr.Code, resp, tt.want)
			}
		})
	}

	for _, q := range []string{"?month=13", "?year=abc"} {
		if rr, _ := h.do(http.MethodGet, "/api/transactions"+q, token, nil); rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("GET %s status = %d", q, rr.Code)
		}
	}
}

func multipartRequest(t *testing.T, fields map[string]string, receipt []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if receipt != nil {
		fw, err := mw.CreateFormFile("receipt", "receipt.png")
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(receipt)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestTransactionReceiptUpload(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 24)...)
	fields := map[string]string{"type": "expense", "amount": "4,20", "category": "Pharmacy", "date": "2024-03-02"}

	tests := []struct {
		name       string
		fields     map[string]string
		receipt    []byte
		want       int
		wantPrefix string
	}{
		{"with receipt", fields, png, http.StatusCreated, "data:image/png;base64,"},
		{"without receipt", fields, nil, http.StatusCreated, ""},
		{"receipt over limit", fields, append(png, make([]byte, receiptLimit)...), http.StatusRequestEntityTooLarge, ""},
		{"bad amount", map[string]string{"type": "expense", "amount": "abc", "category": "X"}, nil, http.StatusUnprocessableEntity, ""},
		{"bad date", map[string]string{"type": "expense", "amount": "1", "category": "X", "date": "2024-02-30"}, nil, http.StatusUnprocessableEntity, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			token := h.login("u-ana")
			rr, resp := h.serve(multipartRequest(t, tt.fields, tt.receipt), token)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.want, resp.Message)
			}
			if tt.want != http.StatusCreated {
				return
			}
			var tx core.Transaction
			_ = json.Unmarshal(resp.Data, &tx)
			if tx.Amount.Cents != 420 || !strings.HasPrefix(tx.ReceiptURL, tt.wantPrefix) || (tt.wantPrefix == "" && tx.ReceiptURL != "") {
				t.Errorf("transaction = %+v", tx)
			}
		})
	}
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	token := h.login("u-ana")
	h.do(http.MethodPost, "/api/transactions", token, map[string]string{"type": "income", "amount": "100", "category": "Salary", "date": "2024-03-01"})

	rr, _ := h.do(http.MethodGet, "/api/transactions/export?year=2024&month=3", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != xlsxContentType {
		t.Errorf("Content-Type = %q", rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "transactions-2024-03.xlsx") {
		t.Errorf("Content-Disposition = %q", rr.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")) {
		t.Error("body is not a zip archive")
	}
}

func TestGoals(t *testing.T) {
	h := newHarness(t)
	token := h.login("u-ana")

	rr, resp := h.do(http.MethodPost, "/api/goals", token, map[string]string{"title": "Bike", "targetAmount": "300"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add goal = %d %s", rr.Code, resp.Message)
	}
	var g core.Goal
	_ = json.Unmarshal(resp.Data, &g)
	balance := "/api/goals/" + g.ID + "/balance"

	if rr, resp := h.do(http.MethodPost, balance, token, map[string]string{"amount": "50", "type": "deposit"}); rr.Code != http.StatusOK {
		t.Fatalf("deposit = %d %s", rr.Code, resp.Message)
	}
	rr, resp = h.do(http.MethodPost, balance, token, map[string]string{"amount": "100", "type": "withdraw"})
	if rr.Code != http.StatusConflict || resp.Message != services.MsgGoalInsufficient {
		t.Errorf("overdraw = %d %q", rr.Code, resp.Message)
	}
	if rr, resp := h.do(http.MethodPost, "/api/goals/nope/balance", token, map[string]string{"amount": "1", "type": "deposit"}); rr.Code != http.StatusNotFound || resp.Message != services.MsgGoalNotFound {
		t.Errorf("missing goal = %d %q", rr.Code, resp.Message)
	}
	if rr, _ := h.do(http.MethodPost, balance, h.login("u-bruno"), map[string]string{"amount": "1", "type": "deposit"}); rr.Code != http.StatusNotFound {
		t.Errorf("foreign goal = %d", rr.Code)
	}
	for i := 0; i < 2; i++ {
		rr, resp := h.do(http.MethodPost, balance, token, map[string]string{"amount": "50000000000000000", "type": "deposit"})
		if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(resp.Message, "at most") {
			t.Errorf("oversized deposit %d = %d %q", i, rr.Code, resp.Message)
		}
	}

	// Admins may move any goal and read its history.
	admin := h.loginAdmin()
	if rr, _ := h.do(http.MethodPost, balance, admin, map[string]string{"amount": "5", "type": "deposit"}); rr.Code != http.StatusOK {
		t.Fatalf("admin deposit = %d", rr.Code)
	}
	_, resp = h.do(http.MethodGet, "/api/goals/"+g.ID+"/history", admin, nil)
	var history []core.HistoryEntry
	_ = json.Unmarshal(resp.Data, &history)
	if len(history) != 2 || history[0].Actor != "root" || history[1].Actor != "Ana" {
		t.Errorf("history = %+v", history)
	}
}

func TestSavings(t *testing.T) {
	h := newHarness(t)
	token := h.login("u-ana")

	_, resp := h.do(http.MethodGet, "/api/savings", token, nil)
	if !strings.Contains(string(resp.Data), `"amount":"0.00"`) {
		t.Errorf("fresh savings = %s", resp.Data)
	}

	rr, resp := h.do(http.MethodPost, "/api/savings/balance", token, map[string]string{"amount": "10", "type": "withdraw"})
	if rr.Code != http.StatusConflict || resp.Message != services.MsgSavingsInsufficient {
		t.Errorf("withdraw from empty = %d %q", rr.Code, resp.Message)
	}
	for i := 0; i < 6; i++ {
		if rr, _ := h.do(http.MethodPost, "/api/savings/balance", token, map[string]string{"amount": "10", "type": "deposit"}); rr.Code != http.StatusOK {
			t.Fatalf("deposit %d = %d", i, rr.Code)
		}
	}

	_, resp = h.do(http.MethodGet, "/api/savings", token, nil)
	var view struct {
		Amount  core.Money          `json:"amount"`
		History []core.HistoryEntry `json:"history"`
		Recent  []core.HistoryEntry `json:"recentHistory"`
	}
	_ = json.Unmarshal(resp.Data, &view)
	if view.Amount.Cents != 6000 || len(view.History) != 6 || len(view.Recent) != services.RecentHistorySize {
		t.Errorf("savings view = %+v", view)
	}
}

func TestAdminEndpoints(t *testing.T) {
	h := newHarness(t)
	admin := h.loginAdmin()

	rr, resp := h.do(http.MethodPost, "/api/admins", admin, map[string]string{"username": "maria", "password": "hunter22"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add admin = %d %s", rr.Code, resp.Message)
	}
	if strings.Contains(rr.Body.String(), "hunter22") || strings.Contains(rr.Body.String(), "password") {
		t.Errorf("password leaked: %s", rr.Body.String())
	}
	rr, _ = h.do(http.MethodGet, "/api/admins", admin, nil)
	if strings.Contains(rr.Body.String(), "secret") {
		t.Errorf("password leaked in list: %s", rr.Body.String())
	}
	if rr, _ := h.do(http.MethodPost, "/api/admins", admin, map[string]string{"username": "Maria", "password": "other1"}); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("duplicate admin = %d", rr.Code)
	}

	rr, resp = h.do(http.MethodPost, "/api/users", admin, map[string]string{"name": "Carla", "role": "child"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add user = %d %s", rr.Code, resp.Message)
	}
	var u core.User
	_ = json.Unmarshal(resp.Data, &u)
	if rr, _ := h.do(http.MethodDelete, "/api/users/"+u.ID, admin, nil); rr.Code != http.StatusOK {
		t.Errorf("delete user = %d", rr.Code)
	}

	_, resp = h.do(http.MethodGet, "/api/logs", admin, nil)
	var logs []core.LogEntry
	_ = json.Unmarshal(resp.Data, &logs)
	if len(logs) != 3 || logs[0].Action != services.ActionDeletedUser || logs[2].Action != services.ActionCreatedAdmin || logs[0].Actor != "root" {
		t.Errorf("logs = %+v", logs)
	}
}

func TestAdminLoginRateLimited(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 3; i++ {
		rr, resp := h.do(http.MethodPost, "/api/sessions/admin", "", map[string]string{"username": "root", "password": "wrong"})
		if rr.Code != http.StatusUnauthorized || resp.Message != services.MsgInvalidCredentials {
			t.Fatalf("attempt %d = %d %q", i+1, rr.Code, resp.Message)
		}
	}
	rr, _ := h.do(http.MethodPost, "/api/sessions/admin", "", map[string]string{"username": "root", "password": "secret"})
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Errorf("fourth attempt = %d", rr.Code)
	}
	// User login is not limited.
	h.login("u-ana")
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.NewDomainError(core.ErrNotFound, "x"), http.StatusNotFound},
		{core.NewDomainError(core.ErrInsufficientBalance, "x"), http.StatusConflict},
		{core.NewDomainError(core.ErrInvalidCredentials, "x"), http.StatusUnauthorized},
		{core.NewDomainError(core.ErrReceiptUnreadable, "x"), http.StatusBadRequest},
		{core.NewDomainError(core.ErrReceiptTooLarge, "x"), http.StatusRequestEntityTooLarge},
		{core.NewDomainError(core.ErrValidation, "x"), http.StatusUnprocessableEntity},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusOf(tt.err); got != tt.want {
			t.Errorf("statusOf(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
