package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/proxsync/proxsync/pkg/api/handlers"
	"github.com/proxsync/proxsync/pkg/auth"
	"github.com/proxsync/proxsync/pkg/config"
	"github.com/proxsync/proxsync/pkg/database"
	"github.com/proxsync/proxsync/pkg/log"
)

// Server represents the API server
type Server struct {
	config      *config.Config
	db          *database.DB
	jwtManager  *auth.JWTManager
	connections *handlers.ConnectionHandlers
	syncs       *handlers.SyncHandlers
	logger      zerolog.Logger
	router      *gin.Engine
	httpServer  *http.Server
}

// NewServer creates a new API server instance
func NewServer(cfg *config.Config, db *database.DB, jwtManager *auth.JWTManager, connections handlers.ConnectionStore, syncer handlers.Syncer) *Server {
	server := &Server{
		config:      cfg,
		db:          db,
		jwtManager:  jwtManager,
		connections: handlers.NewConnectionHandlers(connections),
		syncs:       handlers.NewSyncHandlers(syncer),
		logger:      log.WithComponent("api"),
	}

	// Configure gin mode based on log level
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router = gin.New()

	// Global middleware
	s.router.Use(s.requestLogger())
	s.router.Use(s.errorHandlerMiddleware())
	s.router.Use(s.corsMiddleware())

	// Health endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/ready", s.readinessHandler)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		// Public endpoints (no authentication required)
		v1.GET("/health", s.healthHandler)
		v1.GET("/version", s.versionHandler)

		protected := v1.Group("/")
		protected.Use(auth.JWTMiddleware(s.jwtManager))
		{
			read := auth.RequirePermission(auth.PermissionRead)
			write := auth.RequirePermission(auth.PermissionWrite)
			sync := auth.RequirePermission(auth.PermissionSync)

			protected.GET("/connections", read, s.connections.ListConnections)
			protected.GET("/connections/:id", read, s.connections.GetConnection)
			protected.POST("/connections", write, s.connections.CreateConnection)
			protected.PUT("/connections/:id", write, s.connections.UpdateConnection)
			protected.DELETE("/connections/:id", write, s.connections.DeleteConnection)

			protected.POST("/connections/:id/sync", sync, s.syncs.SyncConnection)
			protected.POST("/sync", sync, s.syncs.SyncAll)
		}
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	address := fmt.Sprintf(":%d", s.config.API.Port)

	// Sync runs answer synchronously, so the write timeout is generous
	s.httpServer = &http.Server{
		Addr:         address,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	if s.config.API.TLSCert != "" && s.config.API.TLSKey != "" {
		if _, err := os.Stat(s.config.API.TLSCert); err != nil {
			return fmt.Errorf("TLS certificate file error: %w", err)
		}
		if _, err := os.Stat(s.config.API.TLSKey); err != nil {
			return fmt.Errorf("TLS key file error: %w", err)
		}

		s.logger.Info().Str("address", address).Msg("Starting HTTPS server")
		return s.httpServer.ListenAndServeTLS(s.config.API.TLSCert, s.config.API.TLSKey)
	}

	s.logger.Info().Str("address", address).Msg("Starting HTTP server")
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info().Msg("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// GetRouter returns the gin router (useful for testing)
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
