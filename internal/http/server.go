// Package http serves the ledger's JSON API, the gateway webhook and
// statement downloads.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"tesouraria/internal/cache"
	"tesouraria/internal/core"
	"tesouraria/internal/intake"
	"tesouraria/internal/log"
	"tesouraria/internal/middleware/ratelimit"
	"tesouraria/internal/middleware/security"
	"tesouraria/internal/middleware/trace"
	"tesouraria/internal/services"
	"tesouraria/internal/sheets"
)

// Pinger reports whether the ledger store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the routes. Guard and Exporter may be nil.
type Deps struct {
	Ledger     *services.LedgerService
	Aggregator *services.Aggregator
	Reports    *services.ReportService
	Guard      *intake.Guard
	Store      Pinger
	Exporter   sheets.StatementWriter
	Logger     *log.Logger
}

type Options struct {
	// APIRateLimit is requests per minute per client IP.
	APIRateLimit int
	// SummaryCacheTTL of zero disables the dashboard cache.
	SummaryCacheTTL time.Duration
}

type Server struct {
	http.Server
	deps   Deps
	logger *log.Logger

	limiter      *ratelimit.Limiter
	summaryCache cache.Cache[core.Summary]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		deps:         deps,
		logger:       logger,
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.APIRateLimit}),
		cacheManager: cache.NewManager(logger),
	}

	if opts.SummaryCacheTTL > 0 {
		lru := cache.NewLRUCache[core.Summary](24, opts.SummaryCacheTTL)
		s.summaryCache = lru
		s.cacheManager.Register(lru)
		s.cacheManager.StartCleanup(time.Minute)
		if deps.Ledger != nil {
			deps.Ledger.OnChange(lru.Purge)
		}
	}

	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(trace.NewMiddleware(s.logger, clientIP).Middleware)
	r.Use(chimw.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	// The gateway is always acknowledged, so deliveries bypass the limiter.
	r.Post("/webhooks/mercadopago", s.handleWebhook)
	r.Post("/webhook/mercadopago", s.handleWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(clientIP, s.rateLimited))
		r.Use(chimw.AllowContentType("application/json"))

		r.Get("/dashboard", s.handleDashboard)
		r.Get("/summary", s.handleSummary)

		r.Get("/members", s.handleListMembers)
		r.Post("/members", s.handleCreateMember)
		r.Delete("/members", s.handleDeleteMember)
		r.Delete("/members/{id}", s.handleDeleteMember)

		r.Get("/transactions", s.handleListTransactions)
		r.Post("/transactions", s.handleTransactionAction)
		r.Post("/transactions/manual", s.handleManualTransaction)
		r.Post("/transactions/{id}/confirm", s.handleConfirmTransaction)

		r.Get("/expenses", s.handleListExpenses)
		r.Post("/expenses", s.handleCreateExpense)
		r.Delete("/expenses", s.handleDeleteExpense)
		r.Delete("/expenses/{id}", s.handleDeleteExpense)

		r.Post("/reports", s.handleReport)
		r.Post("/report/final", s.handleReport)
	})

	return r
}

// clientIP is the remote address after chi's RealIP rewrite.
func clientIP(r *http.Request) string {
	return r.RemoteAddr
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, clientIP(r),
		log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
}

// Shutdown stops the background sweepers, then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
