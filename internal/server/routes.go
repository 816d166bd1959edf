package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Session API
	s.echo.POST("/api/sessions", s.handleCreateSession)
	s.echo.GET("/api/sessions/:id", s.handleGetSession)
	s.echo.DELETE("/api/sessions/:id", s.handleDeleteSession)

	// Display and screensaver toggles
	s.echo.GET("/display", s.handleDisplay)
	s.echo.GET("/screensaver", s.handleScreensaver)
}
