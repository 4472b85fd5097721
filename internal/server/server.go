// Package server hosts the HTTP API: module routes, health, and the
// websocket event bridge.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mantonx/playra/internal/config"
	"github.com/mantonx/playra/internal/events"
	"github.com/mantonx/playra/internal/logger"
	"github.com/mantonx/playra/internal/modules/modulemanager"
)

// Server is the HTTP front of the engine.
type Server struct {
	cfg      config.ServerConfig
	eventBus events.EventBus
	http     *http.Server
}

// New builds the router and wires module routes into it.
func New(cfg config.ServerConfig, registry *modulemanager.ModuleRegistry, eventBus events.EventBus) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS middleware for development
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	s := &Server{
		cfg:      cfg,
		eventBus: eventBus,
	}

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"service": "playra",
			})
		})
		api.GET("/events", s.handleEventsSocket)
		api.GET("/events/recent", s.handleRecentEvents)
		api.GET("/events/stats", s.handleEventStats)
	}

	registry.RegisterRoutes(r)

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Start serves HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	logger.Info("HTTP server listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleRecentEvents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": s.eventBus.RecentEvents()})
}

func (s *Server) handleEventStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.eventBus.GetStats())
}
