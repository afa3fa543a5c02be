// Package http serves the finanzas JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/middleware/ratelimit"
	"finanzas/internal/middleware/security"
	"finanzas/internal/middleware/trace"
	"finanzas/internal/projection"
	"finanzas/internal/services"
	"finanzas/internal/storage"
)

// Ledger is the write side of the API.
type Ledger interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error

	CreateCard(ctx context.Context, c core.Card) (core.Card, error)
	GetCard(ctx context.Context, id string) (core.Card, error)
	ListCards(ctx context.Context) ([]core.Card, error)
	UpdateCard(ctx context.Context, c core.Card) (core.Card, error)
	DeleteCard(ctx context.Context, id string) error

	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	GetBudget(ctx context.Context, id string) (core.Budget, error)
	ListBudgets(ctx context.Context) ([]core.Budget, error)
	UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	DeleteBudget(ctx context.Context, id string) error
}

// Dashboard is the read side computed from snapshots.
type Dashboard interface {
	CardWindow(ctx context.Context, cardID string, today core.Date, radius int) ([]projection.DayPoint, error)
	CardCycles(ctx context.Context, cardID string, today core.Date) ([]projection.BillingCycle, error)
	CardSpend(ctx context.Context, cardID string, today core.Date) (projection.CycleSpendSummary, error)
	CardSummary(ctx context.Context) (projection.CardSummary, error)
	Upcoming(ctx context.Context, today core.Date, days int) ([]projection.UpcomingPayment, error)
	NextOccurrence(ctx context.Context, txID string, today core.Date) (services.NextPayment, error)
	Overview(ctx context.Context, year, month int) (core.MonthOverview, error)
	BudgetStatus(ctx context.Context, year, month int) ([]projection.BudgetProgress, error)
}

// Pinger reports whether a dependency is ready to serve.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the server settings.
type Config struct {
	Addr                string
	RateLimitPerMinute  int
	Location            *time.Location // "today" when a request does not say
	WindowRadiusDays    int
	UpcomingHorizonDays int
}

type Server struct {
	http.Server
	cfg       Config
	ledger    Ledger
	dashboard Dashboard
	ready     Pinger
	logger    *log.Logger
	limiter   *ratelimit.Limiter
	detector  *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// A nil ready checker makes /readyz always succeed.
func NewServer(cfg Config, ledger Ledger, dashboard Dashboard, ready Pinger, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	s := &Server{
		cfg:       cfg,
		ledger:    ledger,
		dashboard: dashboard,
		ready:     ready,
		logger:    logger.WithComponent(log.ComponentHTTP),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector:  security.NewDetector(logger),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:           cfg.Addr,
		Handler:        s.middleware(mux),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16, // 64KB
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/cards", s.handleListCards)
	mux.HandleFunc("POST /api/cards", s.handleCreateCard)
	mux.HandleFunc("GET /api/cards/summary", s.handleCardSummary)
	mux.HandleFunc("GET /api/cards/{id}", s.handleGetCard)
	mux.HandleFunc("PUT /api/cards/{id}", s.handleUpdateCard)
	mux.HandleFunc("DELETE /api/cards/{id}", s.handleDeleteCard)
	mux.HandleFunc("GET /api/cards/{id}/window", s.handleCardWindow)
	mux.HandleFunc("GET /api/cards/{id}/cycles", s.handleCardCycles)
	mux.HandleFunc("GET /api/cards/{id}/spend", s.handleCardSpend)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /api/transactions/{id}/next", s.handleNextOccurrence)
	mux.HandleFunc("GET /api/recurring/upcoming", s.handleUpcoming)

	mux.HandleFunc("GET /api/budgets", s.handleListBudgets)
	mux.HandleFunc("POST /api/budgets", s.handleCreateBudget)
	mux.HandleFunc("GET /api/budgets/status", s.handleBudgetStatus)
	mux.HandleFunc("GET /api/budgets/{id}", s.handleGetBudget)
	mux.HandleFunc("PUT /api/budgets/{id}", s.handleUpdateBudget)
	mux.HandleFunc("DELETE /api/budgets/{id}", s.handleDeleteBudget)

	mux.HandleFunc("GET /api/overview", s.handleOverview)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
}

// middleware wraps h, outermost first: logger, request id, access log,
// security headers, scan detection, then the write rate limit.
func (s *Server) middleware(h http.Handler) http.Handler {
	tracer := trace.NewMiddleware()
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	isWrite := func(r *http.Request) bool {
		return r.Method != http.MethodGet && r.Method != http.MethodHead
	}
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
	}

	chain := []func(http.Handler) http.Handler{
		log.Middleware(s.logger),
		tracer.Middleware,
		log.RequestIDMiddleware(trace.FromRequest),
		log.AccessLog(s.detector.ClientIP),
		headers.Middleware,
		s.detector.Middleware,
		s.limiter.Middleware(s.detector.ClientIP, isWrite, onLimit),
	}
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "not ready"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
