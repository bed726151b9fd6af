package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/rotor/pkg/config"
	"mercator-hq/rotor/pkg/credentials"
	"mercator-hq/rotor/pkg/proxy"
	"mercator-hq/rotor/pkg/proxy/handlers"
	"mercator-hq/rotor/pkg/proxy/middleware"
	"mercator-hq/rotor/pkg/security/auth"
	rotortls "mercator-hq/rotor/pkg/security/tls"
	"mercator-hq/rotor/pkg/telemetry/health"
	"mercator-hq/rotor/pkg/telemetry/metrics"

	"github.com/go-chi/chi/v5"
)

// proxiedMethods are the methods accepted under the path prefix.
var proxiedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
}

// Deps are the components the server routes to.
type Deps struct {
	Store    credentials.Store
	Executor *proxy.Executor
	UserKeys *auth.UserKeyValidator
	Health   *health.Checker

	// Metrics may be nil when metrics are disabled.
	Metrics *metrics.Collector

	Version health.VersionInfo
}

// Server is the rotor HTTP server.
type Server struct {
	config     *config.ProxyConfig
	metricsCfg *config.MetricsConfig
	deps       Deps
	handler    http.Handler
	logger     *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	running    bool
}

// New creates a server and builds its router.
func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		config:     &cfg.Proxy,
		metricsCfg: &cfg.Telemetry.Metrics,
		deps:       deps,
		logger:     slog.Default().With("component", "server"),
	}
	s.handler = s.routes()
	return s
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// routes builds the router. Middleware is applied outermost first.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.CORSMiddleware(s.corsConfig()))

	var observer proxy.Observer
	if s.deps.Metrics != nil {
		observer = s.deps.Metrics
	}
	proxyHandler := handlers.NewProxyHandler(s.deps.Executor, observer, s.config.PathPrefix, s.config.MaxBodyBytes)
	for _, method := range proxiedMethods {
		r.Method(method, s.config.PathPrefix+"/*", proxyHandler)
	}

	admin := handlers.NewAdminHandler(s.deps.Store)
	r.Group(func(r chi.Router) {
		r.Use(auth.NewBasicAuthMiddleware(s.deps.UserKeys).Handle)
		r.Get("/admin/keys", admin.ListKeys)
		r.Post("/add_key", admin.AddKey)
		r.Post("/toggle_key/{key}/{action}", admin.ToggleKey)
	})

	r.Get("/health", s.deps.Health.LivenessHandler())
	r.Get("/ready", s.deps.Health.ReadinessHandler())
	r.Get("/version", health.VersionHandler(s.deps.Version.Version, s.deps.Version.Commit, s.deps.Version.BuildTime))
	if s.deps.Metrics != nil && s.metricsCfg.Enabled {
		r.Handle(s.metricsCfg.Path, s.deps.Metrics.Handler())
	}

	return r
}

func (s *Server) corsConfig() *middleware.CORSConfig {
	return &middleware.CORSConfig{
		Enabled:          s.config.CORS.Enabled,
		AllowedOrigins:   s.config.CORS.AllowedOrigins,
		AllowedMethods:   s.config.CORS.AllowedMethods,
		AllowedHeaders:   s.config.CORS.AllowedHeaders,
		ExposedHeaders:   s.config.CORS.ExposedHeaders,
		MaxAge:           s.config.CORS.MaxAge,
		AllowCredentials: s.config.CORS.AllowCredentials,
	}
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	tlsConfig, reloader, err := rotortls.ServerConfig(&s.config.TLS)
	if err != nil {
		return fmt.Errorf("failed to configure TLS: %w", err)
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	if reloader != nil {
		go func() {
			if err := reloader.Watch(ctx); err != nil {
				s.logger.Error("certificate watcher stopped", "error", err)
			}
		}()
	}

	return s.serve(ctx, ln, tlsConfig)
}

// Serve serves plain HTTP on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	return s.serve(ctx, ln, nil)
}

func (s *Server) serve(ctx context.Context, ln net.Listener, tlsConfig *tls.Config) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		_ = ln.Close()
		return errors.New("server is already running")
	}
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		MaxHeaderBytes:    s.config.MaxHeaderBytes,
		TLSConfig:         tlsConfig,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	srv := s.httpServer
	s.running = true
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting proxy server",
			"address", ln.Addr().String(),
			"path_prefix", s.config.PathPrefix,
			"tls_enabled", tlsConfig != nil,
		)

		var err error
		if tlsConfig != nil {
			err = srv.ServeTLS(ln, "", "")
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.WithoutCancel(ctx))
	case err, ok := <-errCh:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		if ok {
			return err
		}
		return nil
	}
}

// Shutdown stops accepting connections and waits up to the configured
// shutdown timeout for in-flight requests, streams included.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	running := s.running
	s.running = false
	s.mu.Unlock()

	if !running || srv == nil {
		return nil
	}

	s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		_ = srv.Close()
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.logger.Info("proxy server stopped")
	return nil
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
