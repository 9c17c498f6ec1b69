// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/deliverable-studio/backend/internal/export"
	"github.com/deliverable-studio/backend/internal/generate"
	"github.com/deliverable-studio/backend/internal/intake"
	"github.com/deliverable-studio/backend/internal/layout"
	"github.com/deliverable-studio/backend/internal/media"
	"github.com/deliverable-studio/backend/internal/session"
	"github.com/deliverable-studio/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Workspaces  *session.Manager
	Intake      *intake.Manager
	Storage     *storage.Manager
	Dashboard   ProjectStore
	Generator   generate.Generator
	Exports     *export.Registry
	Rules       *layout.Rules
	MaxFileSize int64
	Logger      *zap.Logger
	Version     string
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Dashboard DashboardHandler
	Workspace WorkspaceHandler
	Media     MediaHandler
	Layout    LayoutHandler
	Jobs      JobHandler
	Export    ExportHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Generator == nil {
		deps.Generator = generate.TemplateGenerator{}
	}
	if deps.Exports == nil {
		deps.Exports = export.DefaultRegistry()
	}
	if deps.Rules == nil {
		deps.Rules = layout.DefaultRules()
	}
	if deps.MaxFileSize <= 0 {
		deps.MaxFileSize = media.MaxFileSize
	}

	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.Storage, deps.Workspaces),
		Dashboard: NewDashboardHandler(deps.Dashboard),
		Workspace: NewWorkspaceHandler(deps.Workspaces, deps.Generator, deps.Logger),
		Media:     NewMediaHandler(deps.Workspaces, deps.Intake, deps.Storage, deps.Rules, deps.MaxFileSize),
		Layout:    NewLayoutHandler(deps.Workspaces, deps.Rules),
		Jobs:      NewJobHandler(deps.Intake, deps.Logger),
		Export:    NewExportHandler(deps.Workspaces, deps.Exports, deps.Storage, deps.Logger),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Dashboard routes
	dashGroup := apiGroup.Group("/dashboard/projects")
	dashGroup.GET("", handlers.Dashboard.HandleListProjects)
	dashGroup.POST("", handlers.Dashboard.HandleCreateProject)
	dashGroup.PUT("/:id/progress", handlers.Dashboard.HandleUpdateProgress)
	dashGroup.DELETE("/:id", handlers.Dashboard.HandleDeleteProject)

	// Workspace routes
	wsGroup := apiGroup.Group("/workspaces")
	wsGroup.POST("", handlers.Workspace.HandleCreateWorkspace)
	wsGroup.GET("/:id", handlers.Workspace.HandleGetWorkspace)
	wsGroup.DELETE("/:id", handlers.Workspace.HandleDeleteWorkspace)
	wsGroup.POST("/:id/generate", handlers.Workspace.HandleGenerateProject)
	wsGroup.PUT("/:id/project", handlers.Workspace.HandleSetProject)

	// Gallery routes
	wsGroup.POST("/:id/media", handlers.Media.HandleUploadMedia)
	wsGroup.GET("/:id/media", handlers.Media.HandleListMedia)
	wsGroup.DELETE("/:id/media", handlers.Media.HandleClearMedia)
	wsGroup.PUT("/:id/media/order", handlers.Media.HandleReorderMedia)
	wsGroup.PATCH("/:id/media/:mediaId", handlers.Media.HandleUpdateMedia)
	wsGroup.DELETE("/:id/media/:mediaId", handlers.Media.HandleDeleteMedia)
	wsGroup.GET("/:id/blobs/:ref", handlers.Media.HandleGetBlob)

	// Layout routes
	wsGroup.PUT("/:id/layout", handlers.Layout.HandleSetLayoutMode)
	wsGroup.GET("/:id/layout", handlers.Layout.HandleGetLayout)

	// Export routes
	wsGroup.GET("/:id/export/:format", handlers.Export.HandleExport)

	// Intake jobs
	apiGroup.GET("/jobs/:jobId", handlers.Jobs.HandleGetJob)
	apiGroup.GET("/ws/jobs/:jobId", handlers.Jobs.HandleJobStream)
}

// MiddlewareConfig holds the server options that affect middleware
type MiddlewareConfig struct {
	Logger         *zap.Logger
	RequestLogging bool
	EnableCORS     bool
	AllowOrigins   string
	BodyLimit      string
	Verbose        bool
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Use custom error handler
	e.HTTPErrorHandler = NewErrorHandler(logger, cfg.Verbose)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.RequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return path == "/api/health" || strings.HasPrefix(path, "/api/ws/")
		},
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency.Round(time.Microsecond)),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Info("request", fields...)
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if cfg.EnableCORS {
		origins := strings.Split(cfg.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 1 && origins[0] == "" {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:  origins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, HeaderUserID},
			ExposeHeaders: []string{echo.HeaderContentDisposition},
		}))
	}
}
