// Package server exposes the renderer over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/linuxmatters/greetgif/internal/config"
	"github.com/linuxmatters/greetgif/internal/errdefs"
	"github.com/linuxmatters/greetgif/internal/pipeline"
	"github.com/linuxmatters/greetgif/internal/template"
	"golang.org/x/sync/semaphore"
)

// Server wires the HTTP routes to a template repository and a renderer.
type Server struct {
	Echo *echo.Echo

	repo        template.Repository
	renderer    *pipeline.Renderer
	cfg         config.ServerConfig
	previewText string
	renders     *semaphore.Weighted
}

func New(repo template.Repository, renderer *pipeline.Renderer, cfg config.ServerConfig, previewText string) *Server {
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = config.RenderTimeout
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = config.MaxUploadSize
	}
	if cfg.MaxRenders <= 0 {
		cfg.MaxRenders = config.MaxRenders
	}
	if previewText == "" {
		previewText = config.DefaultPreviewText
	}

	s := &Server{
		Echo:        echo.New(),
		repo:        repo,
		renderer:    renderer,
		cfg:         cfg,
		previewText: previewText,
		renders:     semaphore.NewWeighted(int64(cfg.MaxRenders)),
	}
	s.Echo.HideBanner = true
	s.setupMiddleware()
	s.routes()
	return s
}

func (s *Server) setupMiddleware() {
	e := s.Echo
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			c.Logger().Infof("%s %s -> %d (%s)", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dB", s.cfg.MaxUploadSize)))
}

func (s *Server) routes() {
	e := s.Echo
	e.GET("/healthz", s.handleHealth)

	api := e.Group("/api")
	api.GET("/templates", s.handleListTemplates)
	api.GET("/templates/:id", s.handleGetTemplate)
	api.GET("/templates/:id/preview", s.handlePreview)
	api.GET("/templates/:id/thumbnail", s.handleThumbnail)
	api.POST("/render", s.handleRender)
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

// withRender runs fn under the render timeout once a render slot is free.
func (s *Server) withRender(c echo.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), s.cfg.RenderTimeout)
	defer cancel()
	if err := s.renders.Acquire(ctx, 1); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "renderer busy")
	}
	defer s.renders.Release(1)
	return fn(ctx)
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := statusOf(err)
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{"error": msg})
}

// statusOf maps an error to its HTTP status and client message. Internal
// failures are not described to the client.
func statusOf(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code, fmt.Sprint(he.Message)
	case errdefs.IsNotFound(err):
		return http.StatusNotFound, err.Error()
	case errdefs.IsAsset(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "render timed out"
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}
