// Package http serves the FinanceFam JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"financefam/internal/middleware/ratelimit"
	"financefam/internal/middleware/security"
	"financefam/internal/middleware/trace"
	"financefam/internal/services"
)

// Services are the operations the API exposes.
type Services struct {
	Ledger  *services.LedgerService
	Goals   *services.GoalService
	Savings *services.SavingsService
	Admin   *services.AdminService
	Audit   *services.AuditService
	Auth    *services.AuthService
}

type Options struct {
	AdminLoginPerMinute int
	// ReceiptMaxBytes bounds multipart uploads; the form fields get a
	// small allowance on top.
	ReceiptMaxBytes int64
}

type Server struct {
	http.Server
	svc          Services
	resolver     *security.Resolver
	tracer       *trace.Middleware
	loginLimiter *ratelimit.Limiter
	maxUpload    int64
	now          func() time.Time

	shutdownOnce sync.Once
}

const (
	maxJSONBody    = 1 << 20
	formAllowance  = 64 << 10
	defaultReceipt = services.DefaultReceiptMaxBytes
)

func NewServer(addr string, svc Services, opts Options) *Server {
	if opts.ReceiptMaxBytes <= 0 {
		opts.ReceiptMaxBytes = defaultReceipt
	}
	resolver := security.NewResolver()
	s := &Server{
		svc:          svc,
		resolver:     resolver,
		tracer:       trace.NewMiddleware(resolver.ClientIP),
		loginLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.AdminLoginPerMinute}),
		maxUpload:    opts.ReceiptMaxBytes + formAllowance,
		now:          time.Now,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(security.Headers(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)

	loginLimit := s.loginLimiter.Middleware(s.resolver.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusTooManyRequests, "Too many login attempts. Please try again later.")
	})
	mux.HandleFunc("POST /api/sessions/user", s.handleLoginUser)
	mux.Handle("POST /api/sessions/admin", loginLimit(http.HandlerFunc(s.handleLoginAdmin)))
	mux.HandleFunc("DELETE /api/sessions", s.handleLogout)

	mux.HandleFunc("GET /api/users", s.handleListUsers)
	mux.HandleFunc("POST /api/users", s.requireAdmin(s.handleAddUser))
	mux.HandleFunc("DELETE /api/users/{id}", s.requireAdmin(s.handleDeleteUser))
	mux.HandleFunc("GET /api/admins", s.requireAdmin(s.handleListAdmins))
	mux.HandleFunc("POST /api/admins", s.requireAdmin(s.handleAddAdmin))
	mux.HandleFunc("DELETE /api/admins/{id}", s.requireAdmin(s.handleDeleteAdmin))
	mux.HandleFunc("GET /api/logs", s.requireAdmin(s.handleListLogs))

	mux.HandleFunc("GET /api/transactions", s.requireUser(s.handleMonthSummary))
	mux.HandleFunc("POST /api/transactions", s.requireUser(s.handleAddTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.requireUser(s.handleDeleteTransaction))
	mux.HandleFunc("GET /api/transactions/export", s.requireUser(s.handleExport))

	mux.HandleFunc("GET /api/goals", s.requireUser(s.handleListGoals))
	mux.HandleFunc("POST /api/goals", s.requireUser(s.handleAddGoal))
	mux.HandleFunc("POST /api/goals/{id}/balance", s.requireAny(s.handleGoalBalance))
	mux.HandleFunc("GET /api/goals/{id}/history", s.requireAny(s.handleGoalHistory))

	mux.HandleFunc("GET /api/savings", s.requireUser(s.handleGetSavings))
	mux.HandleFunc("POST /api/savings/balance", s.requireUser(s.handleSavingsBalance))
}

// Shutdown stops the login limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.loginLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics exposes the request counters of the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "ok"})
}
