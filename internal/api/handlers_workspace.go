// handlers_workspace.go - Workspace lifecycle and project content handlers
package api

import (
	"net/http"
	"strings"

	"github.com/deliverable-studio/backend/internal/generate"
	"github.com/deliverable-studio/backend/internal/models"
	"github.com/deliverable-studio/backend/internal/session"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// WorkspaceHandlerImpl implements the WorkspaceHandler interface
type WorkspaceHandlerImpl struct {
	access    *workspaceAccess
	generator generate.Generator
	logger    *zap.Logger
}

// NewWorkspaceHandler creates a new workspace handler
func NewWorkspaceHandler(workspaces *session.Manager, generator generate.Generator, logger *zap.Logger) WorkspaceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkspaceHandlerImpl{
		access:    &workspaceAccess{workspaces: workspaces},
		generator: generator,
		logger:    logger,
	}
}

// HandleCreateWorkspace starts an empty workspace for the caller
func (h *WorkspaceHandlerImpl) HandleCreateWorkspace(c echo.Context) error {
	var req createWorkspaceRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return NewBadRequestError("invalid JSON body", err)
		}
	}

	mgr := h.access.workspaces
	ws := mgr.Create(userID(c), models.ProjectData{Title: strings.TrimSpace(req.Title)})
	if req.Subject != "" || req.Idea != "" {
		brief := generate.Brief{Idea: req.Idea, Subject: req.Subject, Discipline: req.Discipline}
		if err := mgr.SetBrief(ws.ID, brief); err != nil {
			return fromDomainError("failed to create workspace", err)
		}
	}

	h.logger.Debug("workspace created", zap.String("workspace", ws.ID), zap.String("user", ws.UserID))
	return c.JSON(http.StatusCreated, ws.Summary())
}

// HandleGetWorkspace returns the workspace summary
func (h *WorkspaceHandlerImpl) HandleGetWorkspace(c echo.Context) error {
	ws, err := h.access.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ws.Summary())
}

// HandleDeleteWorkspace drops the workspace and releases its local media
func (h *WorkspaceHandlerImpl) HandleDeleteWorkspace(c echo.Context) error {
	ws, err := h.access.lookup(c)
	if err != nil {
		return err
	}
	h.access.workspaces.Delete(ws.ID)
	return c.NoContent(http.StatusNoContent)
}

// HandleGenerateProject builds project content from a brief and stores both
func (h *WorkspaceHandlerImpl) HandleGenerateProject(c echo.Context) error {
	ws, err := h.access.lookup(c)
	if err != nil {
		return err
	}

	var brief generate.Brief
	if err := c.Bind(&brief); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	project, err := h.generator.Generate(c.Request().Context(), brief)
	if err != nil {
		return fromDomainError("failed to generate project", err)
	}

	mgr := h.access.workspaces
	if err := mgr.SetBrief(ws.ID, brief); err != nil {
		return fromDomainError("failed to store brief", err)
	}
	if err := mgr.SetProject(ws.ID, project); err != nil {
		return fromDomainError("failed to store project", err)
	}
	return c.JSON(http.StatusOK, ws.Summary())
}

// HandleSetProject replaces the project content, e.g. after manual edits
func (h *WorkspaceHandlerImpl) HandleSetProject(c echo.Context) error {
	ws, err := h.access.lookup(c)
	if err != nil {
		return err
	}

	var project models.ProjectData
	if err := c.Bind(&project); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := h.access.workspaces.SetProject(ws.ID, project); err != nil {
		return fromDomainError("failed to store project", err)
	}
	return c.JSON(http.StatusOK, ws.Summary())
}

type createWorkspaceRequest struct {
	Title      string `json:"title"`
	Idea       string `json:"idea"`
	Subject    string `json:"subject"`
	Discipline string `json:"discipline"`
}
