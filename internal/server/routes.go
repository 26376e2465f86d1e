package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/ChafterInnovations/Kutter/internal/errors"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (never behind maintenance)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Auth surface
	authGroup := s.echo.Group("/auth", apperrors.Middleware())
	authGroup.POST("/register", s.handleRegister)
	authGroup.GET("/verify", s.handleVerify)
	authGroup.POST("/login", s.handleLogin)
	authGroup.POST("/logout", s.handleLogout)

	// Chat core
	s.echo.GET("/ws", s.handleWebSocket, apperrors.Middleware())
	s.echo.GET("/messages", s.handleMessages)
}
