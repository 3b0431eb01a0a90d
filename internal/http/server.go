package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"moneyboard/internal/auth"
	"moneyboard/internal/log"
	authmw "moneyboard/internal/middleware/auth"
	"moneyboard/internal/middleware/ratelimit"
	"moneyboard/internal/middleware/security"
	"moneyboard/internal/middleware/trace"
	"moneyboard/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options wires the server to its services and middleware settings.
type Options struct {
	Addr         string
	Transactions *services.TransactionService
	Tasks        *services.TaskService
	Tokens       authmw.TokenValidator
	RateLimit    ratelimit.Config
	Logger       *log.Logger

	// Ready reports whether dependencies can serve traffic. Nil means
	// always ready.
	Ready func(context.Context) error
	// TrustedProxies are CIDRs whose X-Forwarded-For is believed, on top
	// of loopback and private ranges.
	TrustedProxies []string
}

type Server struct {
	http.Server
	txs      *services.TransactionService
	tasks    *services.TaskService
	ready    func(context.Context) error
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. Call Shutdown to release the rate limiter.
func NewServer(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		txs:      opts.Transactions,
		tasks:    opts.Tasks,
		ready:    opts.Ready,
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: detector,
		tracer:   trace.NewMiddleware(logger, detector.ExtractClientIP),
		now:      time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(detector.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no such endpoint").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(authmw.Middleware(opts.Tokens, writeError))
		r.Use(s.limiter.Middleware(s.rateKey, func(w http.ResponseWriter, r *http.Request) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r))
			TooManyRequestsError().Write(w)
		}))

		r.Get("/transactions", s.handleListTransactions)
		r.Post("/transactions", s.handleCreateTransaction)
		r.Patch("/transactions/{ref}", s.handleUpdateTransaction)
		r.Delete("/transactions/{ref}", s.handleDeleteTransaction)
		r.Delete("/transactions/{ref}/series", s.handleDeleteSeries)

		r.Get("/insights", s.handleInsights)
		r.Get("/categories", s.handleCategories)

		r.Get("/tasks", s.handleBoard)
		r.Post("/tasks", s.handleCreateTask)
		r.Patch("/tasks/{id}", s.handleUpdateTask)
		r.Delete("/tasks/{id}", s.handleDeleteTask)
		r.Post("/tasks/{id}/move", s.handleMoveTask)
		r.Post("/tasks/{id}/calendar", s.handleAddToCalendar)
	})

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// rateKey buckets signed-in callers by owner and everyone else by IP.
func (s *Server) rateKey(r *http.Request) string {
	if owner, ok := auth.PrincipalFromContext(r.Context()); ok {
		return "owner:" + owner
	}
	return "ip:" + s.detector.ExtractClientIP(r)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Stats reports request counters for the shutdown log.
func (s *Server) Stats() (requests, suspicious, rateLimited int64) {
	return s.tracer.TotalRequests(), s.detector.SuspiciousRequests(), s.limiter.GetMetrics().TotalHits
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

// StoreReady adapts a store with a Ping method into a readiness check.
// Stores without one are always ready.
func StoreReady(store any) func(context.Context) error {
	p, ok := store.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return p.Ping
}
