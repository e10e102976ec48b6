// Package http provides the HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application
// service calls; workflow semantics live entirely below it.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mgallego/colegio-intranet/internal/application/service"
	"github.com/mgallego/colegio-intranet/internal/domain/role"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config              ServerConfig
	httpServer          *http.Server
	router              *gin.Engine
	requestService      service.RequestService
	taskService         service.TaskService
	adminService        service.WorkflowAdminService
	notificationService service.NotificationService
	logger              Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	requestService service.RequestService,
	taskService service.TaskService,
	adminService service.WorkflowAdminService,
	notificationService service.NotificationService,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config:              config,
		router:              router,
		requestService:      requestService,
		taskService:         taskService,
		adminService:        adminService,
		notificationService: notificationService,
		logger:              logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.requestService, s.taskService, s.adminService,
		s.notificationService, s.logger)

	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api")
	api.Use(actorMiddleware())
	{
		// Requests
		api.POST("/requests", handlers.CreateRequest)
		api.GET("/requests", handlers.ListRequests)
		api.GET("/requests/:id", handlers.GetRequest)
		api.DELETE("/requests/:id", handlers.CancelRequest)
		api.GET("/requests/:id/transitions", handlers.GetRequestTransitions)
		api.POST("/requests/:id/transition", handlers.TransitionRequest)
		api.GET("/requests/:id/history", handlers.GetRequestHistory)
		api.POST("/requests/:id/documents", handlers.AttachDocument)

		// Tasks
		api.POST("/tasks", handlers.CreateTask)
		api.GET("/tasks", handlers.ListTasks)
		api.GET("/tasks/:id", handlers.GetTask)
		api.GET("/tasks/:id/transitions", handlers.GetTaskTransitions)
		api.POST("/tasks/:id/transition", handlers.TransitionTask)
		api.GET("/tasks/:id/history", handlers.GetTaskHistory)
		api.POST("/tasks/:id/complete-assignment", handlers.CompleteAssignment)

		// Notifications
		api.GET("/notifications", handlers.ListNotifications)
		api.POST("/notifications/:id/read", handlers.MarkNotificationRead)

		// Workflow authoring, admin only
		admin := api.Group("/admin/workflows")
		admin.Use(adminOnlyMiddleware())
		{
			admin.POST("", handlers.CreateWorkflow)
			admin.GET("", handlers.ListWorkflows)
			admin.GET("/:id", handlers.GetWorkflow)
			admin.POST("/:id/states", handlers.AddState)
			admin.DELETE("/:id/states/:stateID", handlers.DeleteState)
			admin.POST("/:id/transitions", handlers.AddTransition)
			admin.DELETE("/:id/transitions/:transitionID", handlers.DeleteTransition)
		}
	}
}

const (
	actorKey = "actor"

	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

// actorMiddleware resolves the acting user from the trusted headers set by
// the intranet's auth front. Requests without a valid identity are rejected.
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromHeaders(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "Identidad de usuario no válida",
			})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// adminOnlyMiddleware gates the workflow authoring surface
func adminOnlyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := mustActor(c)
		if !role.CanManageRequests(actor.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, Response{
				Success: false,
				Error:   "No tienes permisos para administrar flujos de trabajo",
			})
			return
		}
		c.Next()
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
