package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finreport/internal/amqp"
	"finreport/internal/log"
	"finreport/internal/middleware/ratelimit"
	"finreport/internal/middleware/security"
	"finreport/internal/middleware/trace"
	"finreport/internal/report"
	"finreport/internal/seed"
	"finreport/internal/store"
)

const (
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
	readyTimeout      = 3 * time.Second
)

// Invalidator drops cached reports after a user's data changed.
type Invalidator interface {
	Invalidate(userID string) int
}

// Deps are the collaborators behind the API. Publisher, Seeder,
// Invalidator and Ready may be nil; the matching endpoints degrade to 503
// or skip the step.
type Deps struct {
	Reports     report.Builder
	Invalidator Invalidator
	History     store.ReportHistory
	Settings    store.ReportSettings
	Seeder      *seed.Seeder
	Publisher   amqp.Publisher
	Ready       func(ctx context.Context) error
	Logger      *log.Logger
}

type Options struct {
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	deps    Deps
	logger  *log.Logger
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
	now     func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector(logger)
	s := &Server{
		deps:    deps,
		logger:  logger,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:  trace.NewMiddleware(detector.ExtractClientIP, logger),
		now:     time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/reports", s.handleGetReport)
	api.HandleFunc("POST /api/reports/requests", s.handleRequestReport)
	api.HandleFunc("GET /api/reports/history", s.handleHistory)
	api.HandleFunc("GET /api/reports/settings", s.handleGetSettings)
	api.HandleFunc("PUT /api/reports/settings", s.handleUpdateSettings)
	api.HandleFunc("POST /api/seed", s.handleSeed)

	rateKey := func(r *http.Request) string {
		if userID := r.Header.Get(log.UserIDHeader); userID != "" {
			return "user:" + userID
		}
		return "ip:" + detector.ExtractClientIP(r)
	}
	mux.Handle("/api/", chain(api,
		s.requireUser,
		s.limiter.Middleware(rateKey, func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded. Please try again later.")
		}),
	))

	s.Server = http.Server{
		Addr: addr,
		Handler: chain(mux,
			s.tracer.Middleware,
			log.Middleware(logger, trace.RequestIDFromRequest),
			security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
			detector.Middleware,
		),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

// chain wraps h so that the first middleware is the outermost.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Shutdown gracefully shuts down the server and the limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// Metrics exposes request counters for the debug log on shutdown.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userID(r); !ok {
			writeError(w, http.StatusUnauthorized, "missing_user", "Missing or invalid "+log.UserIDHeader+" header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
			writeError(w, http.StatusServiceUnavailable, "not_ready", "Backend not reachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
