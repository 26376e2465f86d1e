// Package server wires the HTTP edge: routing, CORS, static files, the
// auth surface, the maintenance switch, and the websocket upgrade that
// hands connections to the chat session actor.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ChafterInnovations/Kutter/internal/auth"
	"github.com/ChafterInnovations/Kutter/internal/bus"
	"github.com/ChafterInnovations/Kutter/internal/config"
	"github.com/ChafterInnovations/Kutter/internal/domain"
	"github.com/ChafterInnovations/Kutter/internal/mailer"
	"github.com/ChafterInnovations/Kutter/internal/redis"
)

// postgresPinger is the minimal interface the readiness check needs.
type postgresPinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo          *echo.Echo
	config        *config.Config
	store         domain.MessageStore
	users         domain.UserRepository
	authenticator *auth.Authenticator
	bus           *bus.Bus
	mailer        mailer.Mailer
	clock         clockwork.Clock
	validate      *validator.Validate

	db          postgresPinger
	redisClient *goredis.Client
	maintenance *redis.MaintenanceStore
	revocation  *redis.RevocationStore

	startTime time.Time
}

// NewServer builds the Echo application. redisClient may be nil, in
// which case the maintenance switch and logout revocation are disabled.
func NewServer(cfg *config.Config, store domain.MessageStore, users domain.UserRepository, authenticator *auth.Authenticator, b *bus.Bus, m mailer.Mailer, clock clockwork.Clock, db postgresPinger, redisClient *goredis.Client) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:          e,
		config:        cfg,
		store:         store,
		users:         users,
		authenticator: authenticator,
		bus:           b,
		mailer:        m,
		clock:         clock,
		validate:      validator.New(),
		db:            db,
		redisClient:   redisClient,
		startTime:     clock.Now(),
	}

	if redisClient != nil {
		srv.maintenance = redis.NewMaintenanceStore(redisClient)
		srv.revocation = redis.NewRevocationStore(redisClient)
	}

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderAccept, echo.HeaderContentType},
		AllowCredentials: true,
		MaxAge:           3600,
	}))
	e.Use(srv.maintenanceMiddleware)

	srv.registerRoutes()

	// The static frontend is the fallthrough: anything no route claims
	// is tried against the static dir, with index.html at the root.
	e.Use(middleware.StaticWithConfig(middleware.StaticConfig{
		Root:  cfg.StaticDir,
		Index: "index.html",
	}))

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
