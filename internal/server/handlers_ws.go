package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/ChafterInnovations/Kutter/internal/auth"
	"github.com/ChafterInnovations/Kutter/internal/chat"
	"github.com/ChafterInnovations/Kutter/internal/domain"
	apperrors "github.com/ChafterInnovations/Kutter/internal/errors"
	"github.com/ChafterInnovations/Kutter/internal/metrics"
)

const tokenCookieName = "token"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers enforce CORS before the upgrade; the cookie-borne token
	// is the actual gate here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket authenticates the upgrade request, upgrades it, and
// runs the session actor until the client goes away.
func (s *Server) handleWebSocket(c echo.Context) error {
	cookie, err := c.Cookie(tokenCookieName)
	if err != nil || cookie.Value == "" {
		metrics.SessionsRejectedTotal.Inc()
		return apperrors.UnauthorizedError("missing credential")
	}

	claims, err := s.authenticator.VerifyClaims(cookie.Value)
	if err != nil || claims.Purpose != auth.PurposeSession || claims.Subject == "" {
		metrics.SessionsRejectedTotal.Inc()
		return apperrors.UnauthorizedError("invalid credential")
	}

	if s.revocation != nil && claims.ID != "" {
		revokeCtx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
		revoked, err := s.revocation.IsRevoked(revokeCtx, claims.ID)
		cancel()
		if err != nil {
			// Fail open: revocation is best effort, the token itself
			// was already verified.
			slog.Warn("Revocation check failed", "error", err)
		} else if revoked {
			metrics.SessionsRejectedTotal.Inc()
			return apperrors.UnauthorizedError("credential revoked")
		}
	}

	identity := domain.Identity{
		AuthorID:   claims.Subject,
		AuthorName: claims.Username,
	}
	if claims.ExpiresAt != nil {
		identity.Expiry = claims.ExpiresAt.Time
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the handshake error to the client.
		slog.Warn("WebSocket upgrade failed", "error", err)
		return nil
	}

	metrics.SessionsOpenedTotal.Inc()
	slog.Info("Session opened", "author_id", identity.AuthorID)

	session := chat.NewSession(conn, identity, s.store, s.bus, s.clock)
	session.Run(c.Request().Context())
	return nil
}
