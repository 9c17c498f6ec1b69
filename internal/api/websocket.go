package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/deliverable-studio/backend/internal/intake"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// WebSocket message types for the job progress stream
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeProgress  = "progress"
	MsgTypeComplete  = "complete"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

const wsWriteWait = 10 * time.Second

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WebSocket error response
type WSErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) send(msg WSMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.conn.WriteJSON(msg)
}

// HandleJobStream upgrades to a WebSocket and forwards progress events of
// one intake job until it completes or the client goes away.
func (h *JobHandlerImpl) HandleJobStream(c echo.Context) error {
	job, err := h.ownedJob(c)
	if err != nil {
		return err
	}

	events, unsubscribe, ok := h.intake.Subscribe(job.ID)
	if !ok {
		return NewNotFoundError("job", job.ID)
	}
	defer unsubscribe()

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already replied
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return nil
	}
	defer ws.Close()

	conn := &wsConn{conn: ws}
	gone := make(chan struct{})
	go h.readLoop(conn, gone)

	if err := conn.send(WSMessage{Type: MsgTypeConnected, ID: job.ID, Payload: mustJSON(job)}); err != nil {
		return nil
	}

	completed := false
	for {
		select {
		case ev, open := <-events:
			if !open {
				if !completed {
					h.sendFinal(conn, job.ID)
				}
				return nil
			}
			msgType := MsgTypeProgress
			if ev.Type == intake.EventComplete {
				msgType = MsgTypeComplete
				completed = true
			}
			if err := conn.send(WSMessage{Type: msgType, ID: job.ID, Payload: mustJSON(ev)}); err != nil {
				h.logger.Debug("websocket send failed", zap.String("job", job.ID), zap.Error(err))
				return nil
			}
		case <-gone:
			return nil
		}
	}
}

// sendFinal reports the stored job state when the stream ended without a
// complete event, e.g. because the job finished before the client subscribed.
func (h *JobHandlerImpl) sendFinal(conn *wsConn, jobID string) {
	job, ok := h.intake.Get(jobID)
	if !ok {
		h.sendError(conn, "job no longer available: "+jobID, "NOT_FOUND")
		return
	}
	_ = conn.send(WSMessage{
		Type: MsgTypeComplete,
		ID:   jobID,
		Payload: mustJSON(intake.Event{
			Type:     intake.EventComplete,
			JobID:    jobID,
			Progress: job.Progress,
			Job:      job,
		}),
	})
}

// readLoop answers pings and closes gone when the client disconnects.
func (h *JobHandlerImpl) readLoop(conn *wsConn, gone chan<- struct{}) {
	defer close(gone)
	for {
		var msg WSMessage
		if err := conn.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket connection error", zap.Error(err))
			}
			return
		}
		switch msg.Type {
		case MsgTypePing:
			_ = conn.send(WSMessage{Type: MsgTypePong})
		default:
			h.sendError(conn, "Unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}
}

func (h *JobHandlerImpl) sendError(conn *wsConn, message, code string) {
	_ = conn.send(WSMessage{
		Type: MsgTypeError,
		Payload: mustJSON(WSErrorResponse{
			Type:    MsgTypeError,
			Message: message,
			Code:    code,
		}),
	})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
