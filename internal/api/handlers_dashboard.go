// handlers_dashboard.go - Dashboard project list handlers
package api

import (
	"net/http"

	"github.com/deliverable-studio/backend/internal/dashboard"
	"github.com/deliverable-studio/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// DashboardHandlerImpl implements the DashboardHandler interface
type DashboardHandlerImpl struct {
	store ProjectStore
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(store ProjectStore) DashboardHandler {
	return &DashboardHandlerImpl{store: store}
}

// HandleListProjects returns projects, optionally filtered by ?status=
func (h *DashboardHandlerImpl) HandleListProjects(c echo.Context) error {
	status := models.ProjectStatus(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return NewBadRequestError("unknown status: "+string(status), nil)
	}

	projects, err := h.store.List(c.Request().Context(), status)
	if err != nil {
		return NewInternalError("failed to list projects", err)
	}
	return c.JSON(http.StatusOK, projects)
}

// HandleCreateProject adds a draft project
func (h *DashboardHandlerImpl) HandleCreateProject(c echo.Context) error {
	var req dashboard.NewProject
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	project, err := h.store.Create(c.Request().Context(), req)
	if err != nil {
		return fromDomainError("failed to create project", err)
	}
	return c.JSON(http.StatusCreated, project)
}

// HandleUpdateProgress sets the subsection flags and, optionally, review status
func (h *DashboardHandlerImpl) HandleUpdateProgress(c echo.Context) error {
	id := c.Param("id")
	var req updateProgressRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if req.Status != "" && !req.Status.Valid() {
		return NewBadRequestError("unknown status: "+string(req.Status), nil)
	}

	ctx := c.Request().Context()
	project, err := h.store.UpdateProgress(ctx, id, req.Subsections)
	if err != nil {
		return fromDomainError("project not found", err)
	}
	if req.Status != "" {
		if project, err = h.store.SetStatus(ctx, id, req.Status); err != nil {
			return fromDomainError("project not found", err)
		}
	}
	return c.JSON(http.StatusOK, project)
}

// HandleDeleteProject removes a project
func (h *DashboardHandlerImpl) HandleDeleteProject(c echo.Context) error {
	if err := h.store.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return fromDomainError("project not found", err)
	}
	return c.NoContent(http.StatusNoContent)
}

type updateProgressRequest struct {
	models.Subsections
	Status models.ProjectStatus `json:"status,omitempty"`
}
