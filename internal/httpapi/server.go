// Package httpapi exposes the solve pipeline over HTTP: a REST surface
// for task lifecycle, an SSE stream for progress, and a WebSocket
// endpoint for duplex chat.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/coderforge/solverd/internal/agent"
	"github.com/coderforge/solverd/internal/events"
	"github.com/coderforge/solverd/internal/task"
)

// Options carries the server's runtime settings.
type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Server is the HTTP front of the service.
type Server struct {
	opts        Options
	echo        *echo.Echo
	manager     *task.Manager
	distributor *events.Distributor
	chat        *agent.Chat
	logger      *zap.Logger
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(opts Options, manager *task.Manager, distributor *events.Distributor, chat *agent.Chat, logger *zap.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8000"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))

	s := &Server{
		opts:        opts,
		echo:        e,
		manager:     manager,
		distributor: distributor,
		chat:        chat,
		logger:      logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api/v1")
	api.POST("/solve", s.handleSolve)
	api.GET("/solve/task/:id", s.handleTaskStatus)
	api.DELETE("/solve/task/:id", s.handleCancel)
	api.GET("/events/:id", s.handleEvents)
	api.GET("/chat/ws", s.handleChatWS)
}

// requestLogger logs one structured line per completed request.
func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("request",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))
			return err
		}
	}
}

// Start runs the server and blocks until ctx is cancelled, then shuts
// down gracefully. Returns http.ErrServerClosed on clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.echo.Start(s.opts.Addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()

		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
