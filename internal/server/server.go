// Package server exposes the HTTP and WebSocket surface: the restaurant
// API, session-cookie auth, health and metrics endpoints, and the
// live-update socket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Gwagwa94/Votooveto/internal/config"
	"github.com/Gwagwa94/Votooveto/internal/domain"
	"github.com/Gwagwa94/Votooveto/internal/websocket"
)

const sessionMaxAgeDays = 7

// voteService is the surface of app.Service the handlers use.
type voteService interface {
	List(ctx context.Context, viewerID uuid.UUID) (*domain.Listing, error)
	Create(ctx context.Context, actorID uuid.UUID, name, url string) (*domain.Restaurant, error)
	Vote(ctx context.Context, actorID, restaurantID uuid.UUID, dir domain.Direction, delta int, origin string) (domain.Budget, error)
	ResetVotes(ctx context.Context) (int64, error)
}

type Server struct {
	echo         *echo.Echo
	config       *config.Config
	app          voteService
	users        domain.UserRepository
	hub          *websocket.Hub
	sessionStore *sessions.CookieStore
	redisClient  *goredis.Client
	pool         *pgxpool.Pool
	startTime    time.Time
}

func NewServer(cfg *config.Config, app voteService, users domain.UserRepository, hub *websocket.Hub, redisClient *goredis.Client, pool *pgxpool.Pool) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * sessionMaxAgeDays,
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	}

	srv := &Server{
		echo:         e,
		config:       cfg,
		app:          app,
		users:        users,
		hub:          hub,
		sessionStore: sessionStore,
		redisClient:  redisClient,
		pool:         pool,
		startTime:    time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
