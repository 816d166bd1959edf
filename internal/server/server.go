// Package server is the thin HTTP adapter over the session engine: it
// translates requests into engine calls and structured error payloads into
// HTTP responses. No session logic lives here.
package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/pickframe/pickframe/internal/engine"
)

// SessionService is the engine surface the HTTP layer drives.
type SessionService interface {
	CreateSession(ctx context.Context, pickingConfig json.RawMessage, requestID string) (*engine.CreateResult, error)
	GetStatus(sessionID string) (*engine.Snapshot, bool)
	DeleteSession(ctx context.Context, sessionID string) error
}

// SlideshowService starts or re-triggers the slideshow loop.
type SlideshowService interface {
	Start()
}

// ViewerService kills the external viewer (screensaver off).
type ViewerService interface {
	Stop() error
}

// DisplayService forces the physical display on or off.
type DisplayService interface {
	Power(on bool) error
}

type Server struct {
	echo      *echo.Echo
	sessions  SessionService
	slideshow SlideshowService
	viewer    ViewerService
	display   DisplayService
	logger    *slog.Logger
}

// NewServer assembles the echo application with all routes registered.
func NewServer(sessions SessionService, slideshow SlideshowService, viewer ViewerService, display DisplayService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())

	srv := &Server{
		echo:      e,
		sessions:  sessions,
		slideshow: slideshow,
		viewer:    viewer,
		display:   display,
		logger:    logger,
	}

	srv.registerRoutes()

	return srv
}

// Start begins serving on addr. Blocks until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
