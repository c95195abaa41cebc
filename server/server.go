package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/bookingplatform/logger"
	"github.com/kbukum/bookingplatform/metrics"
	"github.com/kbukum/bookingplatform/server/endpoint"
	"github.com/kbukum/bookingplatform/server/middleware"
)

// Server is an HTTP server backed by Gin, served over HTTP/1.1 and h2c.
// Extra http.Handlers can be mounted next to Gin on the same port.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	mux        *http.ServeMux
	config     Config
	log        *logger.Logger
	listener   net.Listener
}

// New creates a Server. No middleware is applied yet.
func New(cfg Config, log *logger.Logger) *Server {
	cfg.ApplyDefaults()
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	mux := http.NewServeMux()
	mux.Handle("/", engine)

	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          120 * time.Second,
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Address(),
			Handler:      h2c.NewHandler(mux, h2s),
			ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
			IdleTimeout:  time.Duration(cfg.IdleTimeout) * time.Second,
		},
		engine: engine,
		mux:    mux,
		config: cfg,
		log:    log.WithComponent("http-server"),
	}
}

// GinEngine returns the Gin engine for route registration.
func (s *Server) GinEngine() *gin.Engine {
	return s.engine
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Handle mounts an http.Handler next to Gin.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
	s.log.Debug("Handler mounted", map[string]interface{}{"pattern": pattern})
}

// Start binds the port and serves in the background. It returns once the
// listener is bound.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Server error", map[string]interface{}{logger.FieldError: err.Error()})
		}
	}()

	s.log.Info("HTTP server started", map[string]interface{}{"addr": listener.Addr().String()})
	return nil
}

// Stop gracefully shuts down the server with a 5-second deadline.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Server shutdown error", map[string]interface{}{logger.FieldError: err.Error()})
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.log.Info("HTTP server shut down")
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// ApplyMiddleware installs recovery, request-id, CORS, metrics, body-size
// limit and request logging, in that order.
func (s *Server) ApplyMiddleware(m *metrics.Metrics) {
	s.engine.Use(middleware.Recovery(s.log))
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.CORS(s.config.CORS))
	s.engine.Use(middleware.Metrics(m))
	if s.config.MaxBodySize != "" {
		s.engine.Use(middleware.BodySizeLimit(s.config.MaxBodySize))
	}
	s.engine.Use(middleware.RequestLogger(s.log))
	s.engine.NoRoute(func(c *gin.Context) {
		RespondNotFound(c, c.Request.Method+" "+c.Request.URL.Path)
	})
}

// RegisterDefaultEndpoints registers /health, /alive and /metrics.
func (s *Server) RegisterDefaultEndpoints(serviceName, version string, checker endpoint.HealthChecker, m *metrics.Metrics) {
	s.engine.GET("/health", endpoint.Health(serviceName, version, checker))
	s.engine.GET("/alive", endpoint.Liveness(serviceName))
	s.engine.GET("/metrics", endpoint.Metrics(m))
}

// ApplyDefaults applies the middleware stack and registers default endpoints.
func (s *Server) ApplyDefaults(serviceName, version string, checker endpoint.HealthChecker, m *metrics.Metrics) {
	s.ApplyMiddleware(m)
	s.RegisterDefaultEndpoints(serviceName, version, checker, m)
}
