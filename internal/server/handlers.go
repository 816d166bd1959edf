package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pickframe/pickframe/internal/auth"
	"github.com/pickframe/pickframe/internal/picker"
)

// createSessionRequest is the POST /api/sessions body. The picking config
// is forwarded opaquely to the remote service.
type createSessionRequest struct {
	PickingConfig json.RawMessage `json:"pickingConfig,omitempty"`
	RequestID     string          `json:"requestId,omitempty"`
}

// errorBody is the structured failure payload every handler returns.
// Raw transport errors never reach the boundary.
type errorBody struct {
	Message    string          `json:"message"`
	Status     string          `json:"status,omitempty"`
	StatusCode int             `json:"statusCode,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
}

func (s *Server) handleCreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Message: "invalid request body"})
	}

	result, err := s.sessions.CreateSession(c.Request().Context(), req.PickingConfig, req.RequestID)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusCreated, result)
}

func (s *Server) handleGetSession(c echo.Context) error {
	snap, ok := s.sessions.GetStatus(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody{Message: "session not found"})
	}

	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	if err := s.sessions.DeleteSession(c.Request().Context(), c.Param("id")); err != nil {
		return s.writeError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDisplay(c echo.Context) error {
	cmd := c.QueryParam("cmd")
	if cmd != "on" && cmd != "off" {
		return c.String(http.StatusBadRequest, "Invalid command")
	}

	if err := s.display.Power(cmd == "on"); err != nil {
		s.logger.Warn("display power toggle failed",
			slog.String("cmd", cmd),
			slog.String("error", err.Error()),
		)

		return c.JSON(http.StatusInternalServerError, errorBody{Message: err.Error()})
	}

	return c.String(http.StatusOK, fmt.Sprintf("Display turned %s", cmd))
}

func (s *Server) handleScreensaver(c echo.Context) error {
	switch c.QueryParam("cmd") {
	case "on":
		s.slideshow.Start()
		return c.String(http.StatusOK, "Screensaver turned on")
	case "off":
		if err := s.viewer.Stop(); err != nil {
			return c.JSON(http.StatusInternalServerError, errorBody{Message: err.Error()})
		}

		return c.String(http.StatusOK, "Screensaver turned off")
	default:
		return c.String(http.StatusBadRequest, "Invalid command")
	}
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps engine/client failures to structured HTTP responses:
// remote API errors keep their status and code behind a 502, credential
// configuration problems are a 503, anything else a 500.
func (s *Server) writeError(c echo.Context, err error) error {
	var apiErr *picker.APIError
	if errors.As(err, &apiErr) {
		return c.JSON(http.StatusBadGateway, errorBody{
			Message:    apiErr.Message,
			Status:     apiErr.Status,
			StatusCode: apiErr.StatusCode,
			Details:    apiErr.Details,
		})
	}

	if errors.Is(err, auth.ErrCredentialConfig) {
		return c.JSON(http.StatusServiceUnavailable, errorBody{Message: err.Error()})
	}

	return c.JSON(http.StatusInternalServerError, errorBody{Message: err.Error()})
}
