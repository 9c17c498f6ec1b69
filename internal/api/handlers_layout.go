// handlers_layout.go - Auto/manual layout handlers
package api

import (
	"net/http"

	"github.com/deliverable-studio/backend/internal/layout"
	"github.com/deliverable-studio/backend/internal/models"
	"github.com/deliverable-studio/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// LayoutHandlerImpl implements the LayoutHandler interface
type LayoutHandlerImpl struct {
	access *workspaceAccess
	rules  *layout.Rules
}

// NewLayoutHandler creates a new layout handler
func NewLayoutHandler(workspaces *session.Manager, rules *layout.Rules) LayoutHandler {
	return &LayoutHandlerImpl{
		access: &workspaceAccess{workspaces: workspaces},
		rules:  rules,
	}
}

// HandleSetLayoutMode switches between auto and manual layout
func (h *LayoutHandlerImpl) HandleSetLayoutMode(c echo.Context) error {
	ws, err := h.access.lookup(c)
	if err != nil {
		return err
	}

	var req struct {
		Mode models.LayoutMode `json:"mode"`
	}
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := h.access.workspaces.SetMode(ws.ID, req.Mode); err != nil {
		return fromDomainError("failed to set layout mode", err)
	}
	return h.HandleGetLayout(c)
}

// HandleGetLayout returns the gallery in list order and, in auto mode,
// grouped by suggested report section
func (h *LayoutHandlerImpl) HandleGetLayout(c echo.Context) error {
	ws, err := h.access.lookup(c)
	if err != nil {
		return err
	}

	resp := layoutResponse{
		Mode:  ws.Mode(),
		Media: ws.Gallery.Items(),
	}
	if resp.Mode == models.LayoutModeAuto {
		resp.Groups = h.rules.GroupBySection(resp.Media)
	}
	return c.JSON(http.StatusOK, resp)
}

type layoutResponse struct {
	Mode   models.LayoutMode  `json:"mode"`
	Media  []models.MediaFile `json:"media"`
	Groups []layout.Group     `json:"groups,omitempty"`
}
