// Package api exposes the orchestration core over HTTP: a REST surface for
// submitting, inspecting and cancelling transactions, a health and metrics
// endpoint pair, and a WebSocket stream of lifecycle and connectivity events.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
	"github.com/kamalbuilds/polyflow-ai-sub001/eventbus"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Core is the orchestration surface the API exposes.
type Core interface {
	// Submit validates an operation request and queues it for execution.
	Submit(ctx context.Context, request *types.OperationRequest) (string, error)

	// GetStatus returns a point-in-time snapshot of a transaction.
	GetStatus(transactionID string) (*types.Transaction, error)

	// Cancel cancels a transaction cooperatively.
	Cancel(transactionID string) error

	// HealthStatus returns the current per-chain connectivity snapshot.
	HealthStatus() map[uint64]bool
}

// Server is the HTTP API server.
type Server struct {
	router *gin.Engine
	server *http.Server
	core   Core
	bus    *eventbus.Bus
	logger *logrus.Logger
}

// Config holds the HTTP server configuration.
//
// Fields:
// - Addr: the listen address, host:port.
// - Core: the orchestration core to expose.
// - Bus: the event bus backing the WebSocket stream.
// - Logger: the logger instance for server operations.
type Config struct {
	Addr   string
	Core   Core
	Bus    *eventbus.Bus
	Logger *logrus.Logger
}

// NewServer creates a new HTTP server with all routes registered.
//
// Parameters:
// - cfg: the server configuration.
//
// Returns:
// - *Server: the server, ready to Start.
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))

	s := &Server{
		router: router,
		core:   cfg.Core,
		bus:    cfg.Bus,
		logger: cfg.Logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	return s
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/transactions", s.handleSubmitTransaction)
		v1.GET("/transactions/:id", s.handleGetTransaction)
		v1.POST("/transactions/:id/cancel", s.handleCancelTransaction)
		v1.GET("/ws", s.handleStream)
	}
}

// Start starts the HTTP server and blocks until it stops listening.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "failed to start HTTP server")
	}

	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// up to the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "failed to shutdown HTTP server")
	}

	return nil
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
			"clientIP": c.ClientIP(),
		}).Info("HTTP request")
	}
}
