package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deliverable-studio/backend/internal/intake"
	"github.com/deliverable-studio/backend/internal/models"
	"github.com/deliverable-studio/backend/internal/storage"
	"github.com/deliverable-studio/backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func pngPart(name string, w, h int) filePart {
	return filePart{name: name, mime: "image/png", data: testutil.PNG(w, h)}
}

func pngParts(prefix string, n int) []filePart {
	parts := make([]filePart, n)
	for i := range parts {
		parts[i] = pngPart(fmt.Sprintf("%s-%d.png", prefix, i), 8, 6)
	}
	return parts
}

func listMedia(t *testing.T, s *testServer, wsID string) mediaListResponse {
	t.Helper()
	rec := s.do(http.MethodGet, "/api/workspaces/"+wsID+"/media", testUser, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp mediaListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestMediaHandler_UploadAndList(t *testing.T) {
	s := newTestServer(t)
	ws := s.createWorkspace(t, map[string]string{"title": "Plant Growth", "subject": "Biology"})

	job := s.upload(t, ws.ID,
		pngPart("lab-results_v2.png", 2400, 1200),
		filePart{name: "notes.txt", mime: "text/plain", data: []byte("hello")},
	)
	assert.Equal(t, intake.StatusComplete, job.Status)
	assert.Equal(t, 1, job.Accepted)
	assert.Equal(t, 1, job.Rejected)
	assert.Equal(t, intake.StageRejected, job.Files[1].Stage)
	assert.Contains(t, job.Files[1].Reason, "Invalid file type")

	// Job status endpoint
	rec := s.do(http.MethodGet, "/api/jobs/"+job.ID, testUser, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status intake.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, job.ID, status.ID)
	assert.Equal(t, 1, status.Accepted)

	rec = s.do(http.MethodGet, "/api/jobs/"+job.ID, "someone-else", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	list := listMedia(t, s, ws.ID)
	require.Len(t, list.Media, 1)
	m := list.Media[0]
	assert.Equal(t, 2000, m.Width)
	assert.Equal(t, 1000, m.Height)
	assert.InDelta(t, 2.0, m.AspectRatio, 1e-9)
	assert.Contains(t, m.Caption, "Lab Results V2")
	assert.Contains(t, m.Caption, "Biology")
	assert.True(t, storage.IsBlobRef(m.Src))
	assert.Equal(t, 11, list.Remaining)

	// The blob is served back, with or without the scheme
	blobPath := "/api/workspaces/" + ws.ID + "/blobs/"
	rec = s.do(http.MethodGet, blobPath+storage.BlobID(m.Src), testUser, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.Bytes())
	assert.Equal(t, m.MimeType, rec.Header().Get(echo.HeaderContentType))

	rec = s.do(http.MethodGet, blobPath+m.Src, testUser, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, blobPath+"missing", testUser, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMediaHandler_BlobsAreScopedToWorkspace(t *testing.T) {
	s := newTestServer(t)
	ws := s.createWorkspace(t, nil)
	s.upload(t, ws.ID, pngPart("a.png", 4, 4))
	ref := storage.BlobID(listMedia(t, s, ws.ID).Media[0].Src)

	// another user, even with the ref
	rec := s.do(http.MethodGet, "/api/workspaces/"+ws.ID+"/blobs/"+ref, "someone-else", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// the same user through a workspace that does not hold the blob
	other := s.createWorkspace(t, nil)
	rec = s.do(http.MethodGet, "/api/workspaces/"+other.ID+"/blobs/"+ref, testUser, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// the old unscoped route is gone
	rec = s.do(http.MethodGet, "/api/blobs/"+ref, testUser, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMediaHandler_UpdateCaption(t *testing.T) {
	s := newTestServer(t)
	ws := s.createWorkspace(t, nil)
	s.upload(t, ws.ID, pngPart("background-photo.png", 8, 6))

	before := listMedia(t, s, ws.ID).Media[0]
	require.Equal(t, models.SectionIntroduction, before.Section)
	path := "/api/workspaces/" + ws.ID + "/media/" + before.ID

	rec := s.doJSON(http.MethodPatch, path, testUser, map[string]string{"caption": "  Growth chart, week 3 "})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated models.MediaFile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, before.ID, updated.ID)
	assert.Equal(t, "Growth chart, week 3", updated.Caption)
	assert.Equal(t, before.AltText, updated.AltText, "alt text untouched")
	assert.Equal(t, models.SectionResults, updated.Section)

	rec = s.doJSON(http.MethodPatch, path, testUser, map[string]string{"altText": "Bar chart of seedling height"})
	require.Equal(t, http.StatusOK, rec.Code)

	after := listMedia(t, s, ws.ID).Media[0]
	assert.Equal(t, "Growth chart, week 3", after.Caption)
	assert.Equal(t, "Bar chart of seedling height", after.AltText)
	assert.Equal(t, before.Src, after.Src)

	// Layout groups follow the edited caption
	rec = s.do(http.MethodGet, "/api/workspaces/"+ws.ID+"/layout", testUser, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Growth chart, week 3")

	tests := []struct {
		name string
		path string
		user string
		body interface{}
		want int
	}{
		{"empty body", path, testUser, map[string]string{}, http.StatusBadRequest},
		{"unknown media", "/api/workspaces/" + ws.ID + "/media/nope", testUser, map[string]string{"caption": "x"}, http.StatusNotFound},
		{"other user", path, "someone-else", map[string]string{"caption": "x"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.doJSON(http.MethodPatch, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestMediaHandler_ClearReleasesEverything(t *testing.T) {
	s := newTestServer(t)
	ws := s.createWorkspace(t, nil)
	s.upload(t, ws.ID, pngParts("fig", 3)...)
	require.Equal(t, 3, s.blobs.Len())

	rec := s.do(http.MethodDelete, "/api/workspaces/"+ws.ID+"/media", testUser, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp["released"])
	assert.Equal(t, 12, resp["remaining"])
	assert.Equal(t, 0, s.blobs.Len())
	assert.Empty(t, listMedia(t, s, ws.ID).Media)

	// the workspace stays usable
	job := s.upload(t, ws.ID, pngPart("again.png", 4, 4))
	assert.Equal(t, 1, job.Accepted)
}

func TestMediaHandler_ListMsgpack(t *testing.T) {
	s := newTestServer(t)
	ws := s.createWorkspace(t, nil)
	s.upload(t, ws.ID, pngParts("chart", 2)...)

	req := httptest.NewRequest(http.MethodGet, "/api/workspaces/"+ws.ID+"/media", nil)
	req.Header.Set(HeaderUserID, testUser)
	req.Header.Set(echo.HeaderAccept, MIMEMsgpack)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MIMEMsgpack, rec.Header().Get(echo.HeaderContentType))

	var resp mediaListResponse
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Media, 2)
	assert.Equal(t, "chart-0.png", resp.Media[0].FileName)
	assert.Equal(t, "chart-1.png", resp.Media[1].FileName)
	assert.Equal(t, 10, resp.Remaining)
	assert.Equal(t, models.LayoutModeAuto, resp.Mode)
}

func TestMediaHandler_CapacityRejectsWholeBatch(t *testing.T) {
	s := newTestServer(t)
	ws := s.createWorkspace(t, nil)

	job := s.upload(t, ws.ID, pngParts("first", 8)...)
	require.Equal(t, 8, job.Accepted)

	body, contentType := multipartBody(t, pngParts("second", 6)...)
	rec := s.do(http.MethodPost, "/api/workspaces/"+ws.ID+"/media", testUser, body, contentType)
	require.Equal(t, http.StatusConflict, rec.Code)

	apiErr := decodeAPIError(t, rec)
	assert.Equal(t, "CAPACITY_EXCEEDED", apiErr.Code)
	assert.Equal(t, "Maximum 12 images allowed. You can upload 4 more.", apiErr.Message)
	require.NotNil(t, apiErr.Remaining)
	assert.Equal(t, 4, *apiErr.Remaining)

	// Nothing from the refused batch was added
	assert.Len(t, listMedia(t, s, ws.ID).Media, 8)
}

func TestMediaHandler_UploadErrors(t *testing.T) {
	s := newTestServer(t)
	ws := s.createWorkspace(t, nil)

	// No files
	body, contentType := multipartBody(t)
	rec := s.do(http.MethodPost, "/api/workspaces/"+ws.ID+"/media", testUser, body, contentType)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeAPIError(t, rec).Code)

	// Not multipart
	rec = s.doJSON(http.MethodPost, "/api/workspaces/"+ws.ID+"/media", testUser, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown workspace
	body, contentType = multipartBody(t, pngPart("a.png", 4, 4))
	rec = s.do(http.MethodPost, "/api/workspaces/nope/media", testUser, body, contentType)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMediaHandler_DeleteReleasesLocalRef(t *testing.T) {
	s := newTestServer(t)
	ws := s.createWorkspace(t, nil)
	s.upload(t, ws.ID, pngParts("photo", 2)...)
	require.Equal(t, 2, s.blobs.Len())

	list := listMedia(t, s, ws.ID)
	path := "/api/workspaces/" + ws.ID + "/media/" + list.Media[0].ID

	rec := s.do(http.MethodDelete, path, testUser, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, s.blobs.Len())
	assert.Equal(t, 1, s.blobs.Released())

	rec = s.do(http.MethodDelete, path, testUser, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1, s.blobs.Released())

	// Deleting the workspace releases the rest
	rec = s.do(http.MethodDelete, "/api/workspaces/"+ws.ID, testUser, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, s.blobs.Len())
}

func TestMediaHandler_Reorder(t *testing.T) {
	s := newTestServer(t)
	ws := s.createWorkspace(t, nil)
	s.upload(t, ws.ID, pngPart("a.png", 4, 4), pngPart("b.png", 4, 4), pngPart("c.png", 4, 4))

	path := "/api/workspaces/" + ws.ID + "/media/order"
	rec := s.doJSON(http.MethodPut, path, testUser, map[string]int{"from": 0, "to": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var items []models.MediaFile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Equal(t, []string{"b.png", "c.png", "a.png"}, fileNames(items))
	assert.Equal(t, []string{"b.png", "c.png", "a.png"}, fileNames(listMedia(t, s, ws.ID).Media))

	// Full order by ID
	ids := []string{items[2].ID, items[0].ID, items[1].ID}
	rec = s.doJSON(http.MethodPut, path, testUser, map[string][]string{"ids": ids})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, fileNames(items))

	rec = s.doJSON(http.MethodPut, path, testUser, map[string]int{"from": 0, "to": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.doJSON(http.MethodPut, path, testUser, map[string][]string{"ids": {ids[0]}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.doJSON(http.MethodPut, path, testUser, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeAPIError(t, rec).Code)
}

func TestLayoutHandler(t *testing.T) {
	s := newTestServer(t)
	ws := s.createWorkspace(t, map[string]string{"subject": "Biology"})
	s.upload(t, ws.ID,
		pngPart("growth-chart.png", 4, 4),
		pngPart("approach-diagram.png", 4, 4),
		pngPart("background-photo.png", 4, 4),
	)

	path := "/api/workspaces/" + ws.ID + "/layout"
	rec := s.do(http.MethodGet, path, testUser, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp layoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.LayoutModeAuto, resp.Mode)
	require.Len(t, resp.Groups, 3)
	sections := map[models.Section][]string{}
	for _, g := range resp.Groups {
		sections[g.Section] = fileNames(g.Media)
	}
	assert.Equal(t, []string{"background-photo.png"}, sections[models.SectionIntroduction])
	assert.Equal(t, []string{"approach-diagram.png"}, sections[models.SectionMethodology])
	assert.Equal(t, []string{"growth-chart.png"}, sections[models.SectionResults])

	rec = s.doJSON(http.MethodPut, path, testUser, map[string]string{"mode": "manual"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = layoutResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.LayoutModeManual, resp.Mode)
	assert.Empty(t, resp.Groups)
	assert.Len(t, resp.Media, 3)

	rec = s.doJSON(http.MethodPut, path, testUser, map[string]string{"mode": "grid"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func fileNames(items []models.MediaFile) []string {
	names := make([]string, len(items))
	for i, m := range items {
		names[i] = m.FileName
	}
	return names
}

func TestReadCandidates_BoundsPayload(t *testing.T) {
	body, contentType := multipartBody(t,
		filePart{name: "big.png", mime: "image/png", data: []byte(strings.Repeat("x", 64))},
		filePart{name: "small.png", data: []byte("\x89PNG\r\n\x1a\n")},
	)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	c := e.NewContext(req, httptest.NewRecorder())

	candidates, err := readCandidates(c, "files", 16)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	// Oversized payloads are cut off but keep their real size for validation
	assert.Equal(t, "big.png", candidates[0].Name)
	assert.Equal(t, int64(64), candidates[0].Size)
	assert.Len(t, candidates[0].Data, 17)

	// Missing part type is sniffed
	assert.Equal(t, "image/png", candidates[1].MimeType)
	assert.Equal(t, int64(8), candidates[1].Size)
}
