package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/deliverable-studio/backend/internal/intake"
	"github.com/deliverable-studio/backend/internal/media"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialJobStream(t *testing.T, srv *httptest.Server, jobID, user string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/jobs/" + jobID + "?userId=" + user
	return websocket.DefaultDialer.Dial(url, nil)
}

func readUntilComplete(t *testing.T, conn *websocket.Conn) []WSMessage {
	t.Helper()
	var msgs []WSMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		msgs = append(msgs, msg)
		if msg.Type == MsgTypeComplete {
			return msgs
		}
	}
}

func TestJobStream(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.e)
	defer srv.Close()

	ws := s.createWorkspace(t, nil)
	w, ok := s.workspaces.Get(ws.ID)
	require.True(t, ok)

	job, err := s.intake.Start(t.Context(), w.ID, testUser, []media.Candidate{
		{Name: "a.png", MimeType: media.MimePNG, Data: pngPart("a.png", 8, 8).data},
		{Name: "b.exe.png", MimeType: media.MimePNG, Data: pngPart("b.png", 8, 8).data},
	})
	require.NoError(t, err)

	conn, _, err := dialJobStream(t, srv, job.ID, testUser)
	require.NoError(t, err)
	defer conn.Close()

	msgs := readUntilComplete(t, conn)
	assert.Equal(t, MsgTypeConnected, msgs[0].Type)

	last := msgs[len(msgs)-1]
	var ev intake.Event
	require.NoError(t, json.Unmarshal(last.Payload, &ev))
	require.NotNil(t, ev.Job)
	assert.Equal(t, job.ID, ev.JobID)
	assert.Equal(t, intake.StatusComplete, ev.Job.Status)
	assert.Equal(t, 1, ev.Job.Accepted)
	assert.Equal(t, 1, ev.Job.Rejected)
}

func TestJobStream_FinishedJob(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.e)
	defer srv.Close()

	ws := s.createWorkspace(t, nil)
	job := s.upload(t, ws.ID, pngPart("a.png", 8, 8))

	conn, _, err := dialJobStream(t, srv, job.ID, testUser)
	require.NoError(t, err)
	defer conn.Close()

	msgs := readUntilComplete(t, conn)
	require.Len(t, msgs, 2)

	var ev intake.Event
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &ev))
	require.NotNil(t, ev.Job)
	assert.Equal(t, 1, ev.Job.Accepted)
}

func TestJobStream_Ping(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.e)
	defer srv.Close()

	ws := s.createWorkspace(t, nil)
	w, ok := s.workspaces.Get(ws.ID)
	require.True(t, ok)

	// A job that stays open until the test releases the moderator
	release := make(chan struct{})
	blocked := intake.NewManager(intake.Config{
		Workspaces: s.workspaces,
		Moderator: media.ModeratorFunc(func(ctx context.Context, img *media.Normalized) (media.Verdict, error) {
			select {
			case <-release:
			case <-ctx.Done():
				return media.Verdict{}, ctx.Err()
			}
			return media.Verdict{Approved: true}, nil
		}),
	})
	defer blocked.Close()
	defer close(release)

	job, err := blocked.Start(t.Context(), w.ID, testUser, []media.Candidate{
		{Name: "a.png", MimeType: media.MimePNG, Data: pngPart("a.png", 8, 8).data},
	})
	require.NoError(t, err)

	e := echo.New()
	h := NewJobHandler(blocked, nil)
	e.GET("/api/ws/jobs/:jobId", h.HandleJobStream)
	blockedSrv := httptest.NewServer(e)
	defer blockedSrv.Close()

	conn, _, err := dialJobStream(t, blockedSrv, job.ID, testUser)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgTypeConnected, msg.Type)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: MsgTypePing}))
	for {
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == MsgTypePong {
			break
		}
	}
}

func TestJobStream_UnknownJob(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.e)
	defer srv.Close()

	_, resp, err := dialJobStream(t, srv, "missing", testUser)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
