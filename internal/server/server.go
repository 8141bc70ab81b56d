// Package server exposes the HTTP API: report upload, record CRUD,
// exports, stats, auth and operational endpoints.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/surgidocs/opreport-tracker/internal/blob"
	"github.com/surgidocs/opreport-tracker/internal/common"
	"github.com/surgidocs/opreport-tracker/internal/export"
	"github.com/surgidocs/opreport-tracker/internal/pipeline"
	"github.com/surgidocs/opreport-tracker/internal/reconcile"
	"github.com/surgidocs/opreport-tracker/internal/repository"
	"github.com/surgidocs/opreport-tracker/internal/stats"
)

type Server struct {
	echo   *echo.Echo
	logger *slog.Logger

	auth    common.AuthConfig
	repo    repository.OperationRepository
	proc    *pipeline.Processor
	rec     *reconcile.Reconciler
	media   blob.Store
	exports *export.Service
	stats   *stats.Service
}

type Deps struct {
	Auth    common.AuthConfig
	Repo    repository.OperationRepository
	Proc    *pipeline.Processor
	Rec     *reconcile.Reconciler
	Media   blob.Store
	Exports *export.Service
	Stats   *stats.Service
}

func New(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:  logger,
		auth:    deps.Auth,
		repo:    deps.Repo,
		proc:    deps.Proc,
		rec:     deps.Rec,
		media:   deps.Media,
		exports: deps.Exports,
		stats:   deps.Stats,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(s.requestLogger())

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/api/auth/login", s.handleLogin)

	api := e.Group("/api", s.jwtMiddleware())
	api.POST("/operations/upload", s.handleUpload)
	api.GET("/operations", s.handleList)
	api.GET("/operations/export/csv", s.handleExportCSV)
	api.GET("/operations/export/xlsx", s.handleExportXLSX)
	api.GET("/operations/:id", s.handleGet)
	api.PATCH("/operations/:id", s.handlePatch)
	api.DELETE("/operations/:id", s.handleDelete)
	api.GET("/operations/:id/media/:page", s.handleMedia)
	api.GET("/stats", s.handleStats)

	s.echo = e
	return s
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	s.logger.Info("server.listening", "addr", addr)
	err := s.echo.Start(addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server.shutdown")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			req := c.Request()
			s.logger.Info("http.request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", c.Response().Status,
				"req_id", c.Response().Header().Get(echo.HeaderXRequestID),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return err
		}
	}
}
