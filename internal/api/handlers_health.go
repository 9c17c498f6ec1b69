// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/deliverable-studio/backend/internal/session"
	"github.com/deliverable-studio/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version    string
	storage    *storage.Manager
	workspaces *session.Manager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, store *storage.Manager, workspaces *session.Manager) HealthHandler {
	return &HealthHandlerImpl{
		version:    version,
		storage:    store,
		workspaces: workspaces,
	}
}

// HandleHealth returns server health status along with the active storage strategy
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	}
	if h.storage != nil {
		resp["storage"] = h.storage.StrategyName()
		resp["localBlobs"] = h.storage.Blobs().Len()
		resp["releasedBlobs"] = h.storage.Blobs().Released()
	}
	if h.workspaces != nil {
		resp["workspaces"] = h.workspaces.Len()
	}
	return c.JSON(http.StatusOK, resp)
}
