package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// maintenanceMiddleware answers 503 while the runtime maintenance
// switch is on. Health and metrics stay reachable so operators can
// still see the instance. Without Redis the middleware is inert, and a
// Redis failure fails open rather than taking the chat down.
func (s *Server) maintenanceMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.maintenance == nil {
			return next(c)
		}

		path := c.Request().URL.Path
		if strings.HasPrefix(path, "/health/") || path == "/metrics" {
			return next(c)
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
		enabled, err := s.maintenance.Enabled(ctx)
		cancel()
		if err != nil {
			slog.Warn("Maintenance check failed", "error", err)
			return next(c)
		}
		if enabled {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "maintenance"})
		}

		return next(c)
	}
}
