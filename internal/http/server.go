// Package http exposes the front desk over a JSON API with server-sent
// event streams for supervisors and callers.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/frontdesk/internal/desk"
	"github.com/fyrsmithlabs/frontdesk/internal/logging"
	"github.com/fyrsmithlabs/frontdesk/internal/notify"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server provides HTTP endpoints for frontdesk.
type Server struct {
	echo     *echo.Echo
	desk     *desk.Service
	events   notify.Subscriber
	logger   *logging.Logger
	config   *Config
	registry *prometheus.Registry
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// Heartbeat is the interval between SSE keep-alive comments.
	Heartbeat time.Duration
}

const defaultHeartbeat = 30 * time.Second

// NewServer creates a new HTTP server.
func NewServer(d *desk.Service, events notify.Subscriber, logger *logging.Logger, cfg *Config) (*Server, error) {
	if d == nil {
		return nil, fmt.Errorf("desk service cannot be nil")
	}
	if events == nil {
		return nil, fmt.Errorf("event subscriber cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 10000,
		}
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	metrics := NewHTTPMetrics(logger.Underlying())

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(metrics.MetricsMiddleware())
	e.Use(requestLogger(logger))

	s := &Server{
		echo:     e,
		desk:     d,
		events:   events,
		logger:   logger,
		config:   cfg,
		registry: newPromRegistry(d, logger),
	}
	s.registerRoutes()
	return s, nil
}

// requestLogger puts a request-scoped logger and request id on the context
// and logs each request once it completes.
func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
			ctx = logging.WithLogger(ctx, logger)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				// Let the error handler set the final status before logging.
				c.Error(err)
			}

			logger.Info(ctx, "http request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	}
}

func newPromRegistry(d *desk.Service, logger *logging.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "frontdesk",
			Name:      "help_requests_pending",
			Help:      "Help requests waiting for a supervisor.",
		}, func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			n, err := d.PendingCount(ctx)
			if err != nil {
				logger.Warn(ctx, "failed to count pending help requests", zap.Error(err))
				return 0
			}
			return float64(n)
		}),
	)
	return reg
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/questions", s.handleAsk)

	v1.GET("/help-requests", s.handleListRequests)
	v1.GET("/help-requests/:id", s.handleGetRequest)
	v1.POST("/help-requests/:id/respond", s.handleRespond)
	v1.POST("/help-requests/:id/unresolved", s.handleUnresolved)

	v1.GET("/knowledge", s.handleListKnowledge)
	v1.POST("/knowledge", s.handleAddKnowledge)
	v1.PUT("/knowledge/:id", s.handleUpdateKnowledge)
	v1.DELETE("/knowledge/:id", s.handleDeleteKnowledge)

	v1.POST("/calls", s.handleStartCall)
	v1.GET("/calls", s.handleListCalls)
	v1.GET("/calls/:sessionId", s.handleGetCall)
	v1.POST("/calls/:sessionId/end", s.handleEndCall)
	v1.POST("/calls/:sessionId/transcript", s.handleAppendTranscript)

	v1.GET("/events/supervisors", s.handleSupervisorEvents)
	v1.GET("/events/callers/:callerId", s.handleCallerEvents)
}

// Handler returns the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
