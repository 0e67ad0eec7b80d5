package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/toolrc/internal/api/http"
	"github.com/GriffinCanCode/toolrc/internal/api/middleware"
	"github.com/GriffinCanCode/toolrc/internal/api/ws"
	"github.com/GriffinCanCode/toolrc/internal/catalog"
	"github.com/GriffinCanCode/toolrc/internal/infrastructure/config"
	"github.com/GriffinCanCode/toolrc/internal/infrastructure/logging"
	"github.com/GriffinCanCode/toolrc/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/toolrc/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/toolrc/internal/sandbox"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	config  *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
	sandbox *sandbox.Manager
	catalog *catalog.Catalog
	ws      *ws.Handler
	router  *gin.Engine
	http    *http.Server

	closeOnce sync.Once
	closeErr  error
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, version string) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return newServer(cfg, version, logger)
}

func newServer(cfg *config.Config, version string, logger *logging.Logger) (*Server, error) {
	logger.Info("Initializing toolrc server",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.Duration("eval_timeout", cfg.Sandbox.EvalTimeout),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("toolrc", logger.Named("trace").Logger)

	cat, err := loadCatalog(cfg.Catalog, logger)
	if err != nil {
		tracer.Close()
		return nil, err
	}

	sb, err := sandbox.NewManager(sandbox.Config{
		EvalTimeout:   cfg.Sandbox.EvalTimeout,
		MaxCallStack:  cfg.Sandbox.MaxCallStack,
		EnableConsole: cfg.Sandbox.Console,
	}, logger.Named("sandbox").Logger, sandbox.WithMetrics(metrics))
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to start sandbox: %w", err)
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.UseRawPath = true

	router.Use(middleware.Recovery(logger.Logger))
	router.Use(middleware.RequestID())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(middleware.Logger(logger.Named("http").Logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.Server.CORSOrigins...)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := apihttp.NewHandlers(sb, cat, metrics, tracer, logger.Named("api").Logger, version)
	wsHandler := ws.NewHandler(sb, logger.Named("ws").Logger, metrics, tracer)
	handlers.Routes(router, wsHandler.HandleConnection)

	logger.Info("Server initialized successfully", zap.Int("tools", cat.Len()))

	return &Server{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		sandbox: sb,
		catalog: cat,
		ws:      wsHandler,
		router:  router,
		http: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func loadCatalog(cfg config.CatalogConfig, logger *logging.Logger) (*catalog.Catalog, error) {
	if cfg.Dir == "" {
		return catalog.New(), nil
	}
	cat, err := catalog.Load(cfg.Dir, cfg.Pattern)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Tools directory not found, catalog is empty", zap.String("dir", cfg.Dir))
		return catalog.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tools: %w", err)
	}
	logger.Info("Loaded tools", zap.String("dir", cfg.Dir), zap.Int("count", cat.Len()))
	return cat, nil
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sandbox returns the sandbox behind the API
func (s *Server) Sandbox() *sandbox.Manager {
	return s.sandbox
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Close()
	}
}

// Close drains connections and releases the sandbox. It is safe to call
// more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Info("Shutting down server...")

		// hijacked WebSocket connections are not tracked by Shutdown
		s.ws.Close()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP shutdown failed", zap.Error(err))
			s.closeErr = fmt.Errorf("failed to shut down http server: %w", err)
		}

		s.sandbox.Destroy()
		s.tracer.Close()
		s.logger.Info("Server stopped")
		_ = s.logger.Sync()
	})
	return s.closeErr
}
