// handlers_jobs.go - Intake job status handlers
package api

import (
	"net/http"

	"github.com/deliverable-studio/backend/internal/intake"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// JobHandlerImpl implements the JobHandler interface
type JobHandlerImpl struct {
	intake   *intake.Manager
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(intakeMgr *intake.Manager, logger *zap.Logger) JobHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobHandlerImpl{
		intake: intakeMgr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// CORS is enforced by middleware for plain requests
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		logger: logger,
	}
}

// HandleGetJob returns the current state of an intake job
func (h *JobHandlerImpl) HandleGetJob(c echo.Context) error {
	job, err := h.ownedJob(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, job)
}

// ownedJob returns the job named by :jobId if it belongs to the caller.
func (h *JobHandlerImpl) ownedJob(c echo.Context) (*intake.Job, error) {
	id := c.Param("jobId")
	job, ok := h.intake.Get(id)
	if !ok || job.UserID != userID(c) {
		return nil, NewNotFoundError("job", id)
	}
	return job, nil
}
