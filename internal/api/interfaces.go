// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/deliverable-studio/backend/internal/dashboard"
	"github.com/deliverable-studio/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// DashboardHandler handles the project list shown on the dashboard
type DashboardHandler interface {
	HandleListProjects(c echo.Context) error
	HandleCreateProject(c echo.Context) error
	HandleUpdateProgress(c echo.Context) error
	HandleDeleteProject(c echo.Context) error
}

// WorkspaceHandler handles workspace lifecycle and project content
type WorkspaceHandler interface {
	HandleCreateWorkspace(c echo.Context) error
	HandleGetWorkspace(c echo.Context) error
	HandleDeleteWorkspace(c echo.Context) error
	HandleGenerateProject(c echo.Context) error
	HandleSetProject(c echo.Context) error
}

// MediaHandler handles the workspace gallery
type MediaHandler interface {
	HandleUploadMedia(c echo.Context) error
	HandleListMedia(c echo.Context) error
	HandleUpdateMedia(c echo.Context) error
	HandleDeleteMedia(c echo.Context) error
	HandleClearMedia(c echo.Context) error
	HandleReorderMedia(c echo.Context) error
	HandleGetBlob(c echo.Context) error
}

// LayoutHandler handles auto/manual layout
type LayoutHandler interface {
	HandleSetLayoutMode(c echo.Context) error
	HandleGetLayout(c echo.Context) error
}

// JobHandler handles intake job status and the progress stream
type JobHandler interface {
	HandleGetJob(c echo.Context) error
	HandleJobStream(c echo.Context) error
}

// ExportHandler handles deliverable downloads
type ExportHandler interface {
	HandleExport(c echo.Context) error
}

// ProjectStore defines the dashboard storage used by the handlers.
// This allows mocking in tests
type ProjectStore interface {
	Create(ctx context.Context, in dashboard.NewProject) (models.Project, error)
	List(ctx context.Context, status models.ProjectStatus) ([]models.Project, error)
	UpdateProgress(ctx context.Context, id string, sub models.Subsections) (models.Project, error)
	SetStatus(ctx context.Context, id string, status models.ProjectStatus) (models.Project, error)
	Delete(ctx context.Context, id string) error
}
