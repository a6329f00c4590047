package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"spendguard/internal/auth"
	"spendguard/internal/budget"
	"spendguard/internal/cache"
	"spendguard/internal/core"
	"spendguard/internal/ledger"
	applog "spendguard/internal/log"
	"spendguard/internal/middleware/ratelimit"
	"spendguard/internal/middleware/security"
	"spendguard/internal/middleware/trace"
)

// BudgetService is the part of budget.Service the handlers call.
type BudgetService interface {
	Admit(ctx context.Context, owner string, req budget.AdmissionRequest) (budget.Decision, error)
	SetLimits(ctx context.Context, owner string, limits []budget.LimitInput) error
	ListLimits(ctx context.Context, owner string) ([]core.CategoryLimit, error)
	MonthReport(ctx context.Context, owner string, year, month int) (budget.Report, error)
	ListTransactions(ctx context.Context, owner string, year, month int) ([]core.Transaction, error)
	InferCategory(ctx context.Context, owner, payee string) (string, error)
}

var _ BudgetService = (*budget.Service)(nil)

// Options wires a Server.
type Options struct {
	Budget   BudgetService
	Verifier *auth.Verifier
	Logger   *applog.Logger
	// Alerts serves the limit alert audit trail. Nil disables the route.
	Alerts ledger.AlertRecorder

	CORSOrigins        []string
	RateLimitPerMinute int
	ReportCacheTTL     time.Duration
	ReportCacheSize    int

	// Ready reports whether backing services are reachable. Nil means always ready.
	Ready func(context.Context) error
}

type Server struct {
	*http.Server

	budget   BudgetService
	verifier *auth.Verifier
	alerts   ledger.AlertRecorder
	logger   *applog.Logger
	ready    func(context.Context) error

	reports  *cache.LRUCache[budget.Report]
	caches   *cache.Manager
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	ttl := opts.ReportCacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	size := opts.ReportCacheSize
	if size <= 0 {
		size = 256
	}

	s := &Server{
		budget:   opts.Budget,
		verifier: opts.Verifier,
		alerts:   opts.Alerts,
		logger:   logger,
		ready:    opts.Ready,
		reports:  cache.NewLRUCache[budget.Report](size, ttl),
		caches:   cache.NewManager(logger.WithComponent(applog.ComponentCache).Slog()),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)
	s.caches.Register(s.reports)
	s.caches.StartCleanup(5 * time.Minute)

	s.Server = &http.Server{
		Addr:              addr,
		Handler:           s.routes(opts.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(applog.Middleware(s.logger, trace.RequestID))
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders: []string{trace.HeaderRequestID, "Retry-After"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { NotFoundError().Write(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) { MethodNotAllowedError().Write(w) })

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.verifier, s.rejectUnauthenticated))
		r.Use(s.limiter.Middleware(s.rateKey, func(w http.ResponseWriter, _ *http.Request) {
			TooManyRequestsError().Write(w)
		}, http.MethodPost, http.MethodPut))

		r.Post("/auth/logout", s.handleLogout)

		r.Route("/api", func(r chi.Router) {
			r.Post("/transactions", s.handleAdmit)
			r.Get("/transactions", s.handleListTransactions)
			r.Put("/limits", s.handleSetLimits)
			r.Get("/limits", s.handleListLimits)
			r.Get("/analytics", s.handleAnalytics)
			r.Get("/categories/infer", s.handleInferCategory)
			if s.alerts != nil {
				r.Get("/alerts", s.handleListAlerts)
			}
		})
	})
	return r
}

// rateKey limits writes per owner, falling back to the client IP.
func (s *Server) rateKey(r *http.Request) string {
	if owner := auth.Owner(r.Context()); owner != "" {
		return "owner:" + owner
	}
	return "ip:" + s.detector.ExtractClientIP(r)
}

func (s *Server) rejectUnauthenticated(w http.ResponseWriter, r *http.Request, err error) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).WarnContext(r.Context(),
		"Authentication failed",
		applog.FieldPath, r.URL.Path,
		applog.FieldError, err.Error())
	UnauthorizedError().Write(w)
}

// invalidateReports drops cached reports after owner's data changed.
func (s *Server) invalidateReports(owner string) {
	s.reports.DeletePrefix(reportPrefix(owner))
}

// Shutdown stops background routines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Stats exposes request counters for diagnostics.
type Stats struct {
	Requests           trace.Metrics
	Security           security.DetectionMetrics
	RateLimited        int64
	ActiveRateLimitKey int
	CachedReports      int
}

func (s *Server) Stats() Stats {
	return Stats{
		Requests:           s.tracer.Metrics(),
		Security:           s.detector.Metrics(),
		RateLimited:        s.limiter.Rejected(),
		ActiveRateLimitKey: s.limiter.ActiveClients(),
		CachedReports:      s.reports.Size(),
	}
}
