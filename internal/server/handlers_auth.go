package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ChafterInnovations/Kutter/internal/auth"
	"github.com/ChafterInnovations/Kutter/internal/domain"
	apperrors "github.com/ChafterInnovations/Kutter/internal/errors"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if err := s.validate.Struct(&req); err != nil {
		return apperrors.ValidationError("invalid registration data")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return apperrors.InternalError("failed to hash password", err)
	}

	user, err := s.users.Create(c.Request().Context(), req.Email, req.Username, hash)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return apperrors.ConflictError("email or username already taken")
		}
		return apperrors.InternalError("failed to create user", err)
	}

	verifyToken, err := s.authenticator.IssueVerification(user.Email)
	if err != nil {
		return apperrors.InternalError("failed to issue verification token", err)
	}

	verifyURL := fmt.Sprintf("%s/auth/verify?token=%s", s.config.BaseURL, url.QueryEscape(verifyToken))
	if err := s.mailer.SendVerification(user.Email, user.Username, verifyURL); err != nil {
		// The account exists; the user can request the mail again later.
		slog.Error("Failed to send verification mail", "email", user.Email, "error", err)
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"status":   "registered",
		"username": user.Username,
	})
}

func (s *Server) handleVerify(c echo.Context) error {
	token := c.QueryParam("token")
	claims, err := s.authenticator.VerifyClaims(token)
	if err != nil || claims.Purpose != auth.PurposeVerification || claims.Subject == "" {
		return apperrors.UnauthorizedError("invalid verification token")
	}

	if err := s.users.MarkVerified(c.Request().Context(), claims.Subject); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return apperrors.NotFoundError("account not found")
		}
		return apperrors.InternalError("failed to verify account", err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "verified"})
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if err := s.validate.Struct(&req); err != nil {
		return apperrors.ValidationError("invalid login data")
	}

	user, err := s.users.GetByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return apperrors.UnauthorizedError("invalid email or password")
		}
		return apperrors.InternalError("failed to load user", err)
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return apperrors.UnauthorizedError("invalid email or password")
	}
	if !user.Verified {
		return apperrors.ForbiddenError("account not verified")
	}

	token, err := s.authenticator.Issue(user.Email, user.Username)
	if err != nil {
		return apperrors.InternalError("failed to issue token", err)
	}

	c.SetCookie(s.tokenCookie(token, 24*time.Hour))
	return c.JSON(http.StatusOK, map[string]string{
		"status":   "ok",
		"username": user.Username,
	})
}

func (s *Server) handleLogout(c echo.Context) error {
	cookie, err := c.Cookie(tokenCookieName)
	if err == nil && cookie.Value != "" && s.revocation != nil {
		if claims, err := s.authenticator.VerifyClaims(cookie.Value); err == nil && claims.ID != "" && claims.ExpiresAt != nil {
			ttl := claims.ExpiresAt.Time.Sub(s.clock.Now())
			revokeCtx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
			if err := s.revocation.Revoke(revokeCtx, claims.ID, ttl); err != nil {
				slog.Warn("Failed to revoke token on logout", "error", err)
			}
			cancel()
		}
	}

	expired := s.tokenCookie("", 0)
	expired.MaxAge = -1
	c.SetCookie(expired)
	return c.JSON(http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) tokenCookie(value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
}
