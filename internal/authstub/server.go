// ABOUTME: Development stand-in for the NDA portal auth service
// ABOUTME: Wires chi routes, CSRF, rate limiting, logging and metrics around the auth handlers

package authstub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jschulte/usmax-nda-sub000/internal/cache"
	"github.com/jschulte/usmax-nda-sub000/internal/client"
	"github.com/jschulte/usmax-nda-sub000/internal/config"
	"github.com/jschulte/usmax-nda-sub000/internal/metrics"
	"github.com/jschulte/usmax-nda-sub000/internal/middleware"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"
)

// ChallengeSoftwareToken is the only MFA challenge this service issues
const ChallengeSoftwareToken = "SOFTWARE_TOKEN_MFA"

const shutdownTimeout = 10 * time.Second

// Server is the dev auth service
type Server struct {
	cfg      config.DevServer
	clock    clock.WithTicker
	users    *UserStore
	sessions *SessionStore
	cache    *cache.Cache
	limiter  *middleware.AttemptLimiter
	metrics  *metrics.Metrics
	router   chi.Router

	records    []UserRecord
	bcryptCost int
}

// Option configures a Server
type Option func(*Server)

// WithClock injects the time source for sessions, challenges and lockouts
func WithClock(c clock.WithTicker) Option {
	return func(s *Server) {
		s.clock = c
	}
}

// WithUsers replaces the user directory
func WithUsers(records []UserRecord) Option {
	return func(s *Server) {
		s.records = records
	}
}

// WithBcryptCost sets the password hashing cost
func WithBcryptCost(cost int) Option {
	return func(s *Server) {
		s.bcryptCost = cost
	}
}

// New builds the server. Users come from WithUsers, else cfg.UsersFile,
// else DefaultUsers.
func New(cfg config.DevServer, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		clock:      clock.RealClock{},
		metrics:    metrics.New(),
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.records == nil {
		if cfg.UsersFile != "" {
			records, err := LoadUserRecords(cfg.UsersFile)
			if err != nil {
				return nil, err
			}
			s.records = records
		} else {
			s.records = DefaultUsers()
		}
	}

	users, err := NewUserStore(s.records, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}
	s.users = users
	s.cache = cache.New(cfg.SessionTTL, cache.WithClock(s.clock))
	s.sessions = NewSessionStore(s.cache, s.clock)

	if cfg.RateLimitEnabled {
		s.limiter = middleware.NewAttemptLimiter(cfg.RateLimitAuth, time.Minute, middleware.WithLimiterClock(s.clock))
	}

	s.router = s.routes()
	slog.Info("Dev auth service configured",
		"users", users.Len(),
		"session_ttl", cfg.SessionTTL,
		"mfa_attempts", cfg.MFAAttempts,
		"rate_limit", cfg.RateLimitEnabled,
	)
	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's collectors
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Close releases background resources
func (s *Server) Close() {
	s.cache.Close()
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	csrf := middleware.CSRF(s.sessions.CSRFToken)
	limit := middleware.LimitAttempts(s.limiter, middleware.RemoteHost, s.metrics.RecordRateLimited)

	r.Get(client.PathHealth, s.chain(client.PathHealth, s.handleHealth))
	r.Get(client.PathMe, s.chain(client.PathMe, s.handleMe))
	r.Post(client.PathLogin, s.chain(client.PathLogin, s.handleLogin, limit))
	r.Post(client.PathMFAVerify, s.chain(client.PathMFAVerify, s.handleVerifyMFA, limit))
	r.Post(client.PathRefresh, s.chain(client.PathRefresh, s.handleRefresh, csrf))
	r.Post(client.PathLogout, s.chain(client.PathLogout, s.handleLogout, csrf))
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	return r
}

// chain wraps h with logging and latency metrics, then route-specific middleware
func (s *Server) chain(route string, h http.HandlerFunc, extra ...middleware.Middleware) http.HandlerFunc {
	mws := append([]middleware.Middleware{middleware.LogRequest, s.observe(route)}, extra...)
	return middleware.Chain(h, mws...)
}

func (s *Server) observe(route string) middleware.Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next(w, r)
			s.metrics.ObserveRequest(route, time.Since(start))
		}
	}
}

// ListenAndServe serves on cfg.Addr until ctx is canceled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Dev auth service listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("Dev auth service shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
