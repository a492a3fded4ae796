package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	api "github.com/GriffinCanCode/agentsh/internal/api/http"
	"github.com/GriffinCanCode/agentsh/internal/api/middleware"
	"github.com/GriffinCanCode/agentsh/internal/domain/job"
	"github.com/GriffinCanCode/agentsh/internal/domain/session"
	"github.com/GriffinCanCode/agentsh/internal/infrastructure/config"
	"github.com/GriffinCanCode/agentsh/internal/infrastructure/logging"
	"github.com/GriffinCanCode/agentsh/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/agentsh/internal/providers/shell"
	"github.com/GriffinCanCode/agentsh/internal/runtime/launcher"
	"github.com/GriffinCanCode/agentsh/internal/runtime/safety"
)

// JanitorSchedule is the cron spec of the retention sweep.
const JanitorSchedule = "@every 1m"

// shutdownTimeout bounds draining HTTP requests and killing children.
const shutdownTimeout = 15 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	jobs     *job.Manager
	sessions *session.Manager
	provider *shell.Provider
	janitor  *cron.Cron
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
	registry *prometheus.Registry
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing agentsh",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("exec_shell", cfg.Exec.Shell),
		zap.String("session_shell", cfg.Session.Shell),
	)

	// Initialize metrics first (needed by other components)
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	filter, err := newFilter(cfg.Exec.PolicyFile)
	if err != nil {
		return nil, err
	}
	if cfg.Exec.PolicyFile != "" {
		logger.Info("Loaded safety policy", zap.String("path", cfg.Exec.PolicyFile))
	}

	env := launcher.EnvPolicy{Strip: cfg.Exec.StripEnv, Patterns: cfg.Exec.StripEnvVars}
	jobs := job.NewManager(job.Config{
		Shell:          cfg.Exec.Shell,
		DefaultTimeout: cfg.Exec.DefaultTimeout,
		KillGrace:      cfg.Exec.KillGrace,
		Retention:      cfg.Exec.Retention,
		MaxRetained:    cfg.Exec.MaxRetained,
		Env:            env,
	}, filter, logger.Named("jobs"), metrics)

	scfg := session.DefaultConfig()
	scfg.Shell = cfg.Session.Shell
	scfg.Cols = cfg.Session.Cols
	scfg.Rows = cfg.Session.Rows
	scfg.MaxSessions = cfg.Session.Max
	scfg.DefaultTimeout = cfg.Exec.DefaultTimeout
	scfg.KillGrace = cfg.Exec.KillGrace
	scfg.IdleTimeout = cfg.Session.IdleTimeout
	scfg.Retention = cfg.Exec.Retention
	scfg.Env = env
	sessions := session.NewManager(scfg, filter, logger.Named("sessions"), metrics)

	provider := shell.NewProvider(jobs, sessions, cfg.Exec.MaxOutputLines, logger.Named("shell"), metrics)

	s := &Server{
		jobs:     jobs,
		sessions: sessions,
		provider: provider,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		registry: registry,
	}
	s.router = s.newRouter()
	s.http = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.janitor = cron.New()
	if _, err := s.janitor.AddFunc(JanitorSchedule, s.sweep); err != nil {
		return nil, fmt.Errorf("schedule janitor: %w", err)
	}

	logger.Info("Server initialized successfully")
	return s, nil
}

func newFilter(policyFile string) (*safety.Filter, error) {
	policy, err := safety.LoadPolicy(policyFile)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return safety.Default(), nil
	}
	filter, err := safety.New(policy)
	if err != nil {
		return nil, fmt.Errorf("safety policy %s: %w", policyFile, err)
	}
	return filter, nil
}

func (s *Server) newRouter() *gin.Engine {
	cfg := s.config
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID(s.logger.Named("http")))
	router.Use(monitoring.Middleware(s.metrics))
	if len(cfg.Server.CORSOrigins) > 0 {
		s.logger.Info("CORS enabled", zap.Strings("origins", cfg.Server.CORSOrigins))
		router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins...)))
	}
	if cfg.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	api.NewHandlers(s.provider, s.jobs, s.sessions, s.logger.Named("api")).Register(router, s.registry)
	return router
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// sweep applies retention to both registries.
func (s *Server) sweep() {
	now := time.Now()
	jobs := s.jobs.Reap(now)
	sessions := s.sessions.Reap(now)
	if jobs+sessions > 0 {
		s.logger.Info("Janitor sweep",
			zap.Int("jobs_reaped", jobs),
			zap.Int("sessions_reaped", sessions),
		)
	}
}

// Run serves HTTP until ctx is cancelled or the listener fails, then shuts
// down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.janitor.Start()
	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(serveErr, s.Close(shutdownCtx))
}

// Close gracefully shuts down the server. Every job and session is killed
// while HTTP drains, so blocking tool calls in flight return instead of
// holding up the shutdown.
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	<-s.janitor.Stop().Done()

	var g errgroup.Group
	g.Go(func() error {
		if err := s.http.Shutdown(ctx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})
	g.Go(func() error { return s.jobs.Shutdown(ctx) })
	g.Go(func() error { return s.sessions.Shutdown(ctx) })
	err := g.Wait()
	if err != nil {
		s.logger.Error("Shutdown incomplete", zap.Error(err))
	}

	// Sync logger before exit
	_ = s.logger.Sync()
	return err
}
