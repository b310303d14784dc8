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
	"github.com/liveshop/liveshop/internal/config"
	"github.com/liveshop/liveshop/internal/database"
	"github.com/liveshop/liveshop/internal/engine"
	"github.com/liveshop/liveshop/internal/logging"
	"github.com/liveshop/liveshop/internal/metrics"
	"github.com/liveshop/liveshop/internal/redis"
	"github.com/liveshop/liveshop/internal/server"
	"github.com/liveshop/liveshop/internal/version"
	"github.com/liveshop/liveshop/internal/ws"
	goredis "github.com/redis/go-redis/v9"
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

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(cfg *config.Config, srv *server.Server, eng *engine.Engine, hub *ws.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Engine first so no more broadcasts are produced, then the hub
		// closes the remaining client connections.
		eng.Stop()
		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	info := version.Get()
	metrics.BuildInfo.WithLabelValues(info.Version, info.Commit, info.GoVersion).Set(1)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", info.Version)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(context.Background(), cfg)
	defer func() { _ = redisClient.Close() }()

	sessionRepo := database.NewSessionRepo(pool)
	productRepo := database.NewProductRepo(pool)

	reactionLimiter := redis.NewReactionRateLimiter(redisClient, clock, cfg.ReactionsPerWindow, cfg.ReactionWindow)

	hub := ws.NewHub(clock)
	eng := engine.New(sessionRepo, hub, reactionLimiter, clock, cfg.MaxClientsPerSession)

	srv := server.NewServer(cfg, sessionRepo, productRepo, eng, hub, pool, redisClient)

	done := runGracefulShutdown(cfg, srv, eng, hub)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
