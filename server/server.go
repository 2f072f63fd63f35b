package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/recollect/internal/observability"
	"github.com/hrygo/recollect/internal/profile"
	"github.com/hrygo/recollect/plugin/ai"
	"github.com/hrygo/recollect/plugin/ai/memory"
	"github.com/hrygo/recollect/server/middleware"
	"github.com/hrygo/recollect/store"
)

// Server exposes the fact store to its collaborators over HTTP. The chat
// transport, prompt assembly and extraction all live elsewhere; they talk to
// this API as fact producers and consumers.
type Server struct {
	echoServer *echo.Echo
	profile    *profile.Profile
	store      *store.Store
	memory     *memory.Service
	embedder   ai.Embedder

	rateLimiter *rateLimiterHandle
}

type rateLimiterHandle struct {
	limiter *middleware.RateLimiter
	cancel  context.CancelFunc
}

// NewServer creates the HTTP server. embedder may be nil; facts submitted
// without an embedding are then stored content-only.
func NewServer(profile *profile.Profile, st *store.Store, mem *memory.Service, embedder ai.Embedder) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echoServer: e,
		profile:    profile,
		store:      st,
		memory:     mem,
		embedder:   embedder,
	}

	e.Use(echomw.Recover())
	e.Use(requestIDMiddleware())

	limiter := middleware.NewRateLimiter(10, 20)
	e.Use(limiter.Middleware())
	cleanupCtx, cancel := context.WithCancel(context.Background())
	go limiter.StartCleanup(cleanupCtx, 5*time.Minute)
	s.rateLimiter = &rateLimiterHandle{limiter: limiter, cancel: cancel}

	s.registerRoutes(e)

	return s
}

func (s *Server) registerRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")

	g.POST("/facts", s.rememberFact)
	g.POST("/facts/search", s.searchFacts)
	g.POST("/facts/used", s.markFactsUsed)
	g.GET("/facts", s.listFacts)
	g.GET("/facts/:id", s.getFact)
	g.DELETE("/facts/:id", s.forgetFact)

	e.GET("/healthz", func(c echo.Context) error {
		if err := s.store.GetDriver().GetDB().PingContext(c.Request().Context()); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "database unreachable")
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	slog.Info("server started", slog.String("address", address), slog.String("mode", s.profile.Mode))
	if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops background cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.cancel()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.echoServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server gracefully", slog.String("error", err.Error()))
		return err
	}

	slog.Info("server shutdown complete")
	return nil
}

// requestIDMiddleware attaches a request-scoped logger to the request
// context so handlers and the service layer share one request id.
func requestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqCtx := observability.NewRequestContext(slog.Default())
			ctx := observability.WithRequestContext(c.Request().Context(), reqCtx)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Response().Header().Set("X-Request-Id", reqCtx.RequestID)

			err := next(c)

			// The error handler has not run yet, so the response status is
			// derived from the error when there is one.
			status := c.Response().Status
			if httpErr, ok := err.(*echo.HTTPError); ok {
				status = httpErr.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}
			reqCtx.Info("request completed",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Request().URL.Path),
				slog.Int("status", status),
				slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
			return err
		}
	}
}
