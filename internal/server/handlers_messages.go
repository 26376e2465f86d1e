package server

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// handleMessages returns the full history, most recent first. This is
// how a freshly connected client primes its view before the stream
// starts emitting.
func (s *Server) handleMessages(c echo.Context) error {
	messages, err := s.store.ListAll(c.Request().Context())
	if err != nil {
		slog.Error("Failed to fetch messages", "error", err)
		return c.JSON(http.StatusInternalServerError, "Error fetching messages")
	}
	return c.JSON(http.StatusOK, messages)
}
