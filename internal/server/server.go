// Package server hosts the REST API and the WebSocket entry point.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/liveshop/liveshop/internal/config"
	"github.com/liveshop/liveshop/internal/domain"
	"github.com/liveshop/liveshop/internal/engine"
	apperrors "github.com/liveshop/liveshop/internal/errors"
	"github.com/liveshop/liveshop/internal/ws"
	goredis "github.com/redis/go-redis/v9"
)

// postgresPinger is the minimal surface needed for readiness checks.
type postgresPinger interface {
	Ping(ctx context.Context) error
}

// redisPinger is the minimal surface needed for readiness checks.
type redisPinger interface {
	Ping(ctx context.Context) *goredis.StatusCmd
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	sessions  domain.SessionRepository
	products  domain.ProductRepository
	engine    *engine.Engine
	hub       *ws.Hub
	limits    *ConnectionLimits
	db        postgresPinger
	rdb       redisPinger
	startTime time.Time
}

func NewServer(cfg *config.Config, sessions domain.SessionRepository, products domain.ProductRepository, eng *engine.Engine, hub *ws.Hub, db postgresPinger, rdb redisPinger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:     e,
		config:   cfg,
		sessions: sessions,
		products: products,
		engine:   eng,
		hub:      hub,
		limits: NewConnectionLimits(
			cfg.MaxWebSocketConnections,
			cfg.MaxConnectionsPerIP,
			cfg.ConnectionRatePerSecond,
			cfg.ConnectionBurst,
		),
		db:        db,
		rdb:       rdb,
		startTime: time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
