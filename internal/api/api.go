package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openfleet/fleettrack/internal/api/handler"
	"github.com/openfleet/fleettrack/internal/authz"
	"github.com/openfleet/fleettrack/internal/config"
	"github.com/openfleet/fleettrack/internal/database"
	"github.com/openfleet/fleettrack/internal/transport"
)

// Server is the FleetTrack API server.
type Server struct {
	cfg        *config.Config
	ginEngine  *gin.Engine
	httpServer *http.Server
}

// New creates a new API server.
func New(cfg *config.Config, db database.DB, debug bool) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required")
	}

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	ginEngine := gin.Default()

	resolver := authz.New(db, authz.PolicyFromConfig(cfg.Auth))
	transportResolver := transport.New(db, cfg.Transport)
	h := handler.New(db, resolver, transportResolver)

	ginEngine.GET("/health", h.Health)

	v1 := ginEngine.Group("/api/v1", requireAPIKey(cfg.APIKey))
	{
		v1.GET("/accounts/:account/users/:user/groups", h.GetUserGroups)
		v1.GET("/accounts/:account/users/:user/groups/explicit", h.GetExplicitUserGroups)
		v1.PUT("/accounts/:account/users/:user/groups", h.SetUserGroups)
		v1.GET("/accounts/:account/users/:user/devices", h.GetUserDevices)
		v1.GET("/accounts/:account/users/:user/devices/default", h.GetDefaultDevice)
		v1.GET("/accounts/:account/users/:user/devices/:device/authorized", h.GetDeviceAuthorized)
		v1.GET("/transports/:uniqueid/device", h.GetTransportDevice)
	}

	return &Server{
		cfg:       cfg,
		ginEngine: ginEngine,
		httpServer: &http.Server{
			Addr:              cfg.Listen,
			Handler:           ginEngine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// requireAPIKey rejects requests without the configured API key.
func requireAPIKey(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-API-Key") != apiKey {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// Run starts the API server and blocks until it stops.
func (s *Server) Run() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
