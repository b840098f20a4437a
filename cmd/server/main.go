package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Gwagwa94/Votooveto/internal/app"
	"github.com/Gwagwa94/Votooveto/internal/config"
	"github.com/Gwagwa94/Votooveto/internal/database"
	"github.com/Gwagwa94/Votooveto/internal/logging"
	"github.com/Gwagwa94/Votooveto/internal/redis"
	"github.com/Gwagwa94/Votooveto/internal/server"
	"github.com/Gwagwa94/Votooveto/internal/websocket"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

// runEventBridge forwards Redis Pub/Sub change events into the WebSocket hub
// so every instance fans updates out to its own connected clients.
func runEventBridge(ctx context.Context, pubsub *redis.PubSub, hub *websocket.Hub) func() {
	sub := pubsub.Subscribe(ctx)

	go func() {
		for event := range sub.Ch {
			hub.BroadcastEvent(event)
		}
	}()

	return sub.Close
}

func runGracefulShutdown(srv *server.Server, hub *websocket.Hub, stopBridge func()) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopBridge()
		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(context.Background(), cfg)
	defer func() { _ = redisClient.Close() }()

	voteStore := redis.NewVoteStore(redisClient)
	pubsub := redis.NewPubSub(redisClient)
	userRepo := database.NewUserRepo(pool)

	caps := app.Caps{
		Upvotes:   cfg.MaxUpvotesPerUser,
		Downvotes: cfg.MaxDownvotesPerUser,
	}
	appSvc := app.NewService(voteStore, pubsub, clock, caps)

	hub := websocket.NewHub()
	stopBridge := runEventBridge(context.Background(), pubsub, hub)

	srv := server.NewServer(cfg, appSvc, userRepo, hub, redisClient, pool)

	done := runGracefulShutdown(srv, hub, stopBridge)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
