package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/biomarker-insight-server/internal/config"
	"github.com/biomarker-insight-server/internal/database"
	"github.com/biomarker-insight-server/internal/domain"
	"github.com/biomarker-insight-server/internal/middleware"
	"github.com/biomarker-insight-server/internal/reference"
	"github.com/biomarker-insight-server/internal/service"
)

// Server represents the HTTP server
type Server struct {
	configManager *config.Manager
	log           *logrus.Logger
	evaluator     *service.Evaluator
	reference     *reference.Store
	history       domain.HistoryRepository
	db            *database.DB
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance. The history repository may
// be nil when the deployment runs without persistence; the history routes
// then answer 503. The database pool is optional and only feeds the health
// endpoint's connectivity check.
func NewServer(
	configManager *config.Manager,
	logger *logrus.Logger,
	evaluator *service.Evaluator,
	ref *reference.Store,
	history domain.HistoryRepository,
	db *database.DB,
) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestID())

	server := &Server{
		configManager: configManager,
		log:           logger,
		evaluator:     evaluator,
		reference:     ref,
		history:       history,
		db:            db,
		router:        router,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Start starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetConfig().Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("starting server: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/reports/evaluate", s.handleEvaluateReport)
		v1.GET("/users/:id/insights", s.handleUserInsights)
		v1.GET("/users/:id/history/:code", s.handleCodeHistory)
		v1.POST("/admin/reference/reload", s.handleReferenceReload)
	}
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
