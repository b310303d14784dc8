package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/version", s.handleVersion)

	// Session management
	s.echo.GET("/api/sessions", s.handleListSessions)
	s.echo.POST("/api/sessions", s.handleCreateSession)
	s.echo.GET("/api/sessions/live", s.handleGetLiveSession)
	s.echo.GET("/api/sessions/:id", s.handleGetSession)
	s.echo.DELETE("/api/sessions/:id", s.handleDeleteSession)
	s.echo.PATCH("/api/sessions/:id/status", s.handleUpdateSessionStatus)
	s.echo.PATCH("/api/sessions/:id/analytics", s.handleUpdateSessionAnalytics)

	// Product catalog
	s.echo.GET("/api/products", s.handleListProducts)
	s.echo.POST("/api/products", s.handleCreateProduct)
	s.echo.GET("/api/products/:id", s.handleGetProduct)
	s.echo.PUT("/api/products/:id", s.handleUpdateProduct)
	s.echo.DELETE("/api/products/:id", s.handleDeleteProduct)

	// Realtime entry point
	s.echo.GET("/ws", s.handleWebSocket)
}
