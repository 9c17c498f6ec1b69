// handlers_media.go - Gallery upload, listing and ordering handlers
package api

import (
	"net/http"
	"strings"

	"github.com/deliverable-studio/backend/internal/intake"
	"github.com/deliverable-studio/backend/internal/layout"
	"github.com/deliverable-studio/backend/internal/models"
	"github.com/deliverable-studio/backend/internal/session"
	"github.com/deliverable-studio/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// MIMEMsgpack is the content type for binary media listings
const MIMEMsgpack = "application/msgpack"

// MediaHandlerImpl implements the MediaHandler interface
type MediaHandlerImpl struct {
	access      *workspaceAccess
	intake      *intake.Manager
	storage     *storage.Manager
	rules       *layout.Rules
	maxFileSize int64
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(workspaces *session.Manager, intakeMgr *intake.Manager, store *storage.Manager, rules *layout.Rules, maxFileSize int64) MediaHandler {
	if rules == nil {
		rules = layout.DefaultRules()
	}
	return &MediaHandlerImpl{
		access:      &workspaceAccess{workspaces: workspaces},
		intake:      intakeMgr,
		storage:     store,
		rules:       rules,
		maxFileSize: maxFileSize,
	}
}

// HandleUploadMedia accepts a multipart batch under "files" and starts an
// intake job. The whole batch is refused with 409 when it does not fit.
func (h *MediaHandlerImpl) HandleUploadMedia(c echo.Context) error {
	ws, err := h.access.lookup(c)
	if err != nil {
		return err
	}

	candidates, err := readCandidates(c, "files", h.maxFileSize)
	if err != nil {
		return err
	}

	job, err := h.intake.Start(c.Request().Context(), ws.ID, userID(c), candidates)
	if err != nil {
		return fromDomainError("failed to start intake", err)
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID,
		"status": job.Status,
		"files":  len(job.Files),
	})
}

// HandleListMedia returns the gallery in order, as JSON or MessagePack
func (h *MediaHandlerImpl) HandleListMedia(c echo.Context) error {
	ws, err := h.access.lookup(c)
	if err != nil {
		return err
	}

	resp := mediaListResponse{
		Media:     ws.Gallery.Items(),
		Max:       ws.Gallery.Max(),
		Remaining: ws.Gallery.Remaining(),
		Mode:      ws.Mode(),
	}

	if wantsMsgpack(c) {
		data, err := msgpack.Marshal(resp)
		if err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		return c.Blob(http.StatusOK, MIMEMsgpack, data)
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleDeleteMedia removes one entry and releases its local reference
func (h *MediaHandlerImpl) HandleDeleteMedia(c echo.Context) error {
	ws, err := h.access.lookup(c)
	if err != nil {
		return err
	}

	mediaID := c.Param("mediaId")
	if _, err := ws.Gallery.Remove(mediaID); err != nil {
		return fromDomainError("media not found: "+mediaID, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleReorderMedia moves one entry ({from,to}) or applies a full order ({ids})
func (h *MediaHandlerImpl) HandleReorderMedia(c echo.Context) error {
	ws, err := h.access.lookup(c)
	if err != nil {
		return err
	}

	var req reorderRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	var items []models.MediaFile
	switch {
	case len(req.IDs) > 0:
		items, err = ws.Gallery.Reorder(req.IDs)
	case req.From != nil && req.To != nil:
		items, err = ws.Gallery.Move(*req.From, *req.To)
	default:
		return NewValidationError("from/to")
	}
	if err != nil {
		return fromDomainError("failed to reorder media", err)
	}
	return c.JSON(http.StatusOK, items)
}

// HandleUpdateMedia edits the caption and alt text of one entry. The
// suggested section follows the new caption.
func (h *MediaHandlerImpl) HandleUpdateMedia(c echo.Context) error {
	ws, err := h.access.lookup(c)
	if err != nil {
		return err
	}

	var req updateMediaRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Caption == nil && req.AltText == nil {
		return NewValidationError("caption/altText")
	}

	mediaID := c.Param("mediaId")
	updated, err := ws.Gallery.Update(mediaID, func(m *models.MediaFile) {
		if req.Caption != nil {
			m.Caption = strings.TrimSpace(*req.Caption)
		}
		if req.AltText != nil {
			m.AltText = strings.TrimSpace(*req.AltText)
		}
		m.Section = h.rules.Classify(m.DisplayCaption())
	})
	if err != nil {
		return fromDomainError("media not found: "+mediaID, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// HandleClearMedia removes every entry and releases their local references
func (h *MediaHandlerImpl) HandleClearMedia(c echo.Context) error {
	ws, err := h.access.lookup(c)
	if err != nil {
		return err
	}

	released := ws.Gallery.Clear()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"released":  released,
		"remaining": ws.Gallery.Remaining(),
	})
}

// HandleGetBlob serves a locally held image of the workspace gallery. The
// reference may be given with or without the blob: scheme.
func (h *MediaHandlerImpl) HandleGetBlob(c echo.Context) error {
	ws, err := h.access.lookup(c)
	if err != nil {
		return err
	}

	ref := storage.BlobScheme + storage.BlobID(c.Param("ref"))
	if !galleryHolds(ws.Gallery.Items(), ref) {
		return NewNotFoundError("blob", c.Param("ref"))
	}
	blob, ok := h.storage.Blobs().Open(ref)
	if !ok {
		return NewNotFoundError("blob", c.Param("ref"))
	}
	c.Response().Header().Set("Cache-Control", "private, max-age=3600")
	return c.Blob(http.StatusOK, blob.MimeType, blob.Data)
}

func galleryHolds(items []models.MediaFile, ref string) bool {
	for _, m := range items {
		if m.LocalRef == ref {
			return true
		}
	}
	return false
}

func wantsMsgpack(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), MIMEMsgpack)
}

type mediaListResponse struct {
	Media     []models.MediaFile `json:"media" msgpack:"media"`
	Max       int                `json:"max" msgpack:"max"`
	Remaining int                `json:"remaining" msgpack:"remaining"`
	Mode      models.LayoutMode  `json:"mode" msgpack:"mode"`
}

type reorderRequest struct {
	From *int     `json:"from"`
	To   *int     `json:"to"`
	IDs  []string `json:"ids"`
}

type updateMediaRequest struct {
	Caption *string `json:"caption"`
	AltText *string `json:"altText"`
}
