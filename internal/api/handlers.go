// handlers.go - Request helpers shared by the handler groups
package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/deliverable-studio/backend/internal/media"
	"github.com/deliverable-studio/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// HeaderUserID carries the caller identity. There is no real authentication;
// the header stands in for the signed-in user. Websocket clients, which
// cannot set headers, pass the same value as the userId query parameter.
const HeaderUserID = "X-User-ID"

const anonymousUser = "anonymous"

// userID returns the caller identity from the request.
func userID(c echo.Context) string {
	if id := strings.TrimSpace(c.Request().Header.Get(HeaderUserID)); id != "" {
		return id
	}
	if id := strings.TrimSpace(c.QueryParam("userId")); id != "" {
		return id
	}
	return anonymousUser
}

// workspaceAccess resolves the :id path parameter to a workspace owned by the caller.
type workspaceAccess struct {
	workspaces *session.Manager
}

// lookup returns the workspace or a 404. Workspaces of other users are
// reported as missing.
func (a *workspaceAccess) lookup(c echo.Context) (*session.Workspace, error) {
	id := c.Param("id")
	ws, ok := a.workspaces.Get(id)
	if !ok || ws.UserID != userID(c) {
		return nil, NewNotFoundError("workspace", id)
	}
	a.workspaces.Touch(id)
	return ws, nil
}

// readCandidates loads every file of a multipart field. Payloads are read up
// to maxSize+1 bytes; the declared size is kept so the validator can reject
// oversized files without buffering them.
func readCandidates(c echo.Context, field string, maxSize int64) ([]media.Candidate, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, NewBadRequestError("expected multipart form", err)
	}
	headers := form.File[field]
	if len(headers) == 0 {
		return nil, NewValidationError(field)
	}

	candidates := make([]media.Candidate, 0, len(headers))
	for _, fh := range headers {
		cand, err := readCandidate(fh, maxSize)
		if err != nil {
			return nil, NewBadRequestError(fmt.Sprintf("failed to read %s", fh.Filename), err)
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

func readCandidate(fh *multipart.FileHeader, maxSize int64) (media.Candidate, error) {
	f, err := fh.Open()
	if err != nil {
		return media.Candidate{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return media.Candidate{}, err
	}

	size := fh.Size
	if size <= 0 {
		size = int64(len(data))
	}
	return media.Candidate{
		Name:     fh.Filename,
		MimeType: declaredType(fh.Header.Get(echo.HeaderContentType), data),
		Size:     size,
		Data:     data,
	}, nil
}

// declaredType keeps the client's MIME type and only sniffs when the client
// sent none or a generic one.
func declaredType(header string, data []byte) string {
	mimeType := strings.TrimSpace(strings.SplitN(header, ";", 2)[0])
	if mimeType == "" || mimeType == echo.MIMEOctetStream {
		return http.DetectContentType(data)
	}
	return strings.ToLower(mimeType)
}
