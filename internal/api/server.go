// Package api provides the HTTP API server for Dockhand.
// It uses Echo framework to serve REST endpoints and WebSocket connections
// for running container and Compose-stack operations across managed hosts.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"evalgo.org/dockhand/internal/auth"
	"evalgo.org/dockhand/internal/compose"
	"evalgo.org/dockhand/internal/config"
	"evalgo.org/dockhand/internal/credentials"
	"evalgo.org/dockhand/internal/docker"
	"evalgo.org/dockhand/internal/pool"
	"evalgo.org/dockhand/internal/storage"
	"evalgo.org/dockhand/internal/transport"
	"evalgo.org/dockhand/internal/validation"
)

// Server represents the Dockhand API server.
type Server struct {
	echo        *echo.Echo
	storage     *storage.Storage
	config      *config.Config
	pool        *pool.Pool
	dockerExec  *docker.Executor
	composeExec *compose.Executor
	validator   *validation.Validator
	wsHub       *Hub
	authMiddle  *auth.Middleware
}

// debugLog logs a message only if debug mode is enabled in config
func (s *Server) debugLog(format string, args ...interface{}) {
	if s.config.Server.Debug {
		log.Printf(format, args...)
	}
}

// New creates a new API server instance. It wires the credential store,
// transport factory, connection pool, and both executors on top of storage.
func New(cfg *config.Config, store *storage.Storage) *Server {
	e := echo.New()

	// Configure Echo
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Server.Debug

	// Set custom error handler
	e.HTTPErrorHandler = HTTPErrorHandler

	creds := credentials.NewStore(cfg.Credentials.Path)
	factory := transport.NewFactory(creds, cfg.Docker.ConnectTimeout)
	connPool := pool.New(store, factory, pool.Options{
		ProbeTimeout: cfg.Docker.ConnectTimeout,
		IdleTimeout:  cfg.Docker.IdleTimeout,
	})

	hub := NewHub()
	authMiddle := auth.NewMiddleware(cfg)

	server := &Server{
		echo:        e,
		storage:     store,
		config:      cfg,
		pool:        connPool,
		dockerExec:  docker.NewExecutor(connPool, cfg.Docker.CommandTimeout),
		composeExec: compose.NewExecutor(connPool, store, store, cfg.Docker.CommandTimeout, cfg.Docker.StackDir),
		validator:   validation.New(),
		wsHub:       hub,
		authMiddle:  authMiddle,
	}

	// Start WebSocket hub in background
	go hub.Run()

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	// Logger middleware
	s.echo.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${time_rfc3339}] ${status} ${method} ${uri} (${latency_human})\n",
	}))

	// Recover middleware
	s.echo.Use(middleware.Recover())

	// Security headers middleware
	s.echo.Use(SecurityHeaders)

	// CORS middleware
	if len(s.config.Security.AllowedOrigins) > 0 {
		s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: s.config.Security.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}

	// Request ID middleware
	s.echo.Use(middleware.RequestID())

	// Rate limiting
	if s.config.Security.RateLimit > 0 {
		s.echo.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(
			rate.Limit(s.config.Security.RateLimit),
		)))
	}

	// Content-Type validation middleware for API routes
	s.echo.Use(ValidateContentType)

	// Accept header validation middleware
	s.echo.Use(ValidateAcceptHeader)
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/", s.healthCheck)

	// API v1 group
	v1 := s.echo.Group("/api/v1")

	// Host routes
	hosts := v1.Group("/hosts")
	hosts.Use(ValidateQueryParams)
	hosts.GET("", s.listHosts, s.authMiddle.RequireRead)
	hosts.GET("/:id", s.getHost, ValidateIDFormat, s.authMiddle.RequireRead)
	hosts.POST("", s.createHost, s.authMiddle.RequireWrite)
	hosts.PUT("/:id", s.updateHost, ValidateIDFormat, s.authMiddle.RequireWrite)
	hosts.DELETE("/:id", s.deleteHost, ValidateIDFormat, s.authMiddle.RequireWrite)

	// Container routes, always scoped to one host
	hosts.GET("/:id/containers", s.listContainers, ValidateIDFormat, s.authMiddle.RequireRead)
	hosts.GET("/:id/containers/:cid/status", s.containerStatus, ValidateIDFormat, s.authMiddle.RequireRead)
	hosts.POST("/:id/containers/:cid/start", s.startContainer, ValidateIDFormat, s.authMiddle.RequireWrite)

	// Stack routes
	hosts.POST("/:id/stacks", s.createStack, ValidateIDFormat, s.authMiddle.RequireWrite)
	hosts.GET("/:id/stacks", s.listHostStacks, ValidateIDFormat, s.authMiddle.RequireRead)

	stacks := v1.Group("/stacks")
	stacks.Use(ValidateQueryParams)
	stacks.GET("", s.listStacks, s.authMiddle.RequireRead)
	stacks.GET("/:id", s.getStack, ValidateIDFormat, s.authMiddle.RequireRead)
	stacks.DELETE("/:id", s.deleteStack, ValidateIDFormat, s.authMiddle.RequireWrite)
	stacks.POST("/:id/up", s.stackUp, ValidateIDFormat, s.authMiddle.RequireWrite)
	stacks.POST("/:id/down", s.stackDown, ValidateIDFormat, s.authMiddle.RequireWrite)
	stacks.POST("/:id/restart", s.stackRestartService, ValidateIDFormat, s.authMiddle.RequireWrite)
	stacks.GET("/:id/ps", s.stackPS, ValidateIDFormat, s.authMiddle.RequireRead)

	// WebSocket routes
	ws := v1.Group("/ws")
	ws.GET("/events", s.HandleWebSocket, s.authMiddle.RequireRead)
	ws.GET("/stats", s.GetWebSocketStats, s.authMiddle.RequireRead)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	fmt.Printf("Starting Dockhand API Server\n")
	fmt.Printf("   Address: http://%s\n", addr)
	fmt.Printf("   Database: %s\n", s.config.CouchDB.Database)
	fmt.Printf("   Debug: %v\n", s.config.Server.Debug)
	fmt.Println()

	// Configure server timeouts
	s.echo.Server.ReadTimeout = s.config.Server.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.Server.WriteTimeout

	if s.config.Server.TLSEnabled {
		return s.echo.StartTLS(addr, s.config.Server.TLSCert, s.config.Server.TLSKey)
	}

	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server, the connection pool, and the
// storage connection.
func (s *Server) Shutdown(ctx context.Context) error {
	fmt.Println("\nShutting down Dockhand API Server...")

	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	s.pool.Close()

	if err := s.storage.Close(); err != nil {
		return fmt.Errorf("error closing storage: %w", err)
	}

	fmt.Println("Server shutdown complete")
	return nil
}

// healthCheck handles health check requests.
func (s *Server) healthCheck(c echo.Context) error {
	hosts, err := s.storage.ListHosts(c.Request().Context(), nil)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"error":   "database connection failed",
			"details": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"service":     "dockhand",
		"hosts":       len(hosts),
		"connections": s.pool.Count(),
	})
}

// broadcastEvent broadcasts a fleet event to all WebSocket clients.
func (s *Server) broadcastEvent(eventType EventType, data interface{}) {
	if err := s.wsHub.BroadcastEvent(Event{Type: eventType, Data: data}); err != nil {
		log.Printf("ERROR: Failed to broadcast event: %v", err)
	}
}

// ServeHTTP allows Server to implement http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
