// handlers_export.go - Deliverable download handlers
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/deliverable-studio/backend/internal/export"
	"github.com/deliverable-studio/backend/internal/models"
	"github.com/deliverable-studio/backend/internal/session"
	"github.com/deliverable-studio/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// HeaderPageCount reports the number of pages or slides of an export
const HeaderPageCount = "X-Page-Count"

// ExportHandlerImpl implements the ExportHandler interface
type ExportHandlerImpl struct {
	access   *workspaceAccess
	registry *export.Registry
	storage  *storage.Manager
	logger   *zap.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(workspaces *session.Manager, registry *export.Registry, store *storage.Manager, logger *zap.Logger) ExportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportHandlerImpl{
		access:   &workspaceAccess{workspaces: workspaces},
		registry: registry,
		storage:  store,
		logger:   logger,
	}
}

// HandleExport renders the workspace as pdf, pptx or png and sends it as an
// attachment. Nothing is sent unless rendering succeeded as a whole.
func (h *ExportHandlerImpl) HandleExport(c echo.Context) error {
	ws, err := h.access.lookup(c)
	if err != nil {
		return err
	}

	format, err := export.ParseFormat(c.Param("format"))
	if err != nil {
		return NewBadRequestError("unsupported export format", err)
	}

	in := export.Input{
		Project: ws.Project(),
		Media:   ws.Gallery.Items(),
		Resolve: h.resolve,
	}

	start := time.Now()
	out, err := h.registry.Render(c.Request().Context(), format, in)
	if err != nil {
		h.logger.Warn("export failed",
			zap.String("workspace", ws.ID),
			zap.String("format", string(format)),
			zap.Error(err))
		return fromDomainError(fmt.Sprintf("failed to export %s", format), err)
	}

	h.logger.Info("export complete",
		zap.String("workspace", ws.ID),
		zap.String("format", string(format)),
		zap.Int("bytes", len(out.Data)),
		zap.Int("pages", out.Pages),
		zap.Duration("elapsed", time.Since(start)))

	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", out.FileName))
	header.Set(HeaderPageCount, strconv.Itoa(out.Pages))
	return c.Blob(http.StatusOK, out.ContentType, out.Data)
}

func (h *ExportHandlerImpl) resolve(ctx context.Context, m models.MediaFile) ([]byte, error) {
	return h.storage.Fetch(ctx, m.Src)
}
