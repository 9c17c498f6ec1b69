// Package intake runs uploaded images through the media pipeline as async jobs.
package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/deliverable-studio/backend/internal/caption"
	"github.com/deliverable-studio/backend/internal/layout"
	"github.com/deliverable-studio/backend/internal/media"
	"github.com/deliverable-studio/backend/internal/models"
	"github.com/deliverable-studio/backend/internal/session"
	"github.com/deliverable-studio/backend/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status represents the job processing status.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// FileStage is where one file of a batch currently is.
type FileStage string

const (
	StagePending    FileStage = "pending"
	StageValidating FileStage = "validating"
	StageNormalize  FileStage = "normalizing"
	StageModerating FileStage = "moderating"
	StageUploading  FileStage = "uploading"
	StageCaptioning FileStage = "captioning"
	StageDone       FileStage = "done"
	StageRejected   FileStage = "rejected"
)

// DefaultConcurrency bounds how many files of one batch are processed at once.
const DefaultConcurrency = 4

var (
	// ErrWorkspaceNotFound is returned when Start names an unknown workspace.
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrNoFiles is returned for an empty batch.
	ErrNoFiles = errors.New("no files provided")
	// ErrShutdown is returned once the manager has been closed.
	ErrShutdown = errors.New("intake manager is shut down")
)

// FileResult is the outcome of one file in a batch.
type FileResult struct {
	Index    int               `json:"index"`
	FileName string            `json:"fileName"`
	Stage    FileStage         `json:"stage"`
	Progress float64           `json:"progress"`
	Reason   string            `json:"reason,omitempty"`
	Media    *models.MediaFile `json:"media,omitempty"`
}

// Job is an async intake batch.
type Job struct {
	ID          string       `json:"id"`
	WorkspaceID string       `json:"workspaceId"`
	UserID      string       `json:"userId"`
	Status      Status       `json:"status"`
	Progress    float64      `json:"progress"`
	Files       []FileResult `json:"files"`
	Accepted    int          `json:"accepted"`
	Rejected    int          `json:"rejected"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

func (j *Job) clone() *Job {
	out := *j
	out.Files = make([]FileResult, len(j.Files))
	copy(out.Files, j.Files)
	for i := range out.Files {
		if m := out.Files[i].Media; m != nil {
			mc := *m
			out.Files[i].Media = &mc
		}
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

func (j *Job) done() bool {
	return j.Status == StatusComplete || j.Status == StatusError
}

// WorkspaceSource resolves workspaces by ID.
type WorkspaceSource interface {
	Get(id string) (*session.Workspace, bool)
}

// Config wires the pipeline steps. Nil steps get their defaults.
type Config struct {
	Workspaces  WorkspaceSource
	Validator   *media.Validator
	Normalizer  *media.Normalizer
	Moderator   media.Moderator
	Storage     *storage.Manager
	Captions    caption.Generator
	Rules       *layout.Rules
	Concurrency int
	Logger      *zap.Logger
}

// Manager handles async intake jobs.
type Manager struct {
	jobs map[string]*Job
	subs map[string][]chan Event
	mu   sync.RWMutex

	workspaces  WorkspaceSource
	validator   *media.Validator
	normalizer  *media.Normalizer
	moderator   media.Moderator
	storage     *storage.Manager
	captions    caption.Generator
	rules       *layout.Rules
	concurrency int
	logger      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewManager creates an intake manager. Call Close to stop running jobs.
func NewManager(cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		jobs:        make(map[string]*Job),
		subs:        make(map[string][]chan Event),
		workspaces:  cfg.Workspaces,
		validator:   cfg.Validator,
		normalizer:  cfg.Normalizer,
		moderator:   cfg.Moderator,
		storage:     cfg.Storage,
		captions:    cfg.Captions,
		rules:       cfg.Rules,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
		ctx:         ctx,
		cancel:      cancel,
		now:         time.Now,
	}
	if m.validator == nil {
		m.validator = media.NewValidator(media.MaxFileSize)
	}
	if m.normalizer == nil {
		m.normalizer = media.NewNormalizer(0, 0)
	}
	if m.moderator == nil {
		m.moderator = media.StubModerator{}
	}
	if m.storage == nil {
		m.storage = storage.NewManager(storage.LocalStrategy{}, storage.NewBlobRegistry(), cfg.Logger)
	}
	if m.captions == nil {
		m.captions = caption.TemplateGenerator{}
	}
	if m.rules == nil {
		m.rules = layout.DefaultRules()
	}
	if m.concurrency <= 0 {
		m.concurrency = DefaultConcurrency
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

// Start validates capacity for the whole batch and begins async processing.
// A batch that would exceed the workspace cap is rejected here with a
// *gallery.CapacityError and nothing is processed.
func (m *Manager) Start(ctx context.Context, workspaceID, userID string, files []media.Candidate) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.ctx.Err() != nil {
		return nil, ErrShutdown
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	ws, ok := m.workspaces.Get(workspaceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, workspaceID)
	}

	reservation, err := ws.Gallery.Reserve(len(files))
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:          uuid.New().String(),
		WorkspaceID: workspaceID,
		UserID:      userID,
		Status:      StatusProcessing,
		Files:       make([]FileResult, len(files)),
		CreatedAt:   m.now(),
	}
	for i, f := range files {
		job.Files[i] = FileResult{Index: i, FileName: f.Name, Stage: StagePending}
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	snapshot := job.clone()
	m.mu.Unlock()

	m.wg.Add(1)
	go m.processJob(job, ws, reservation, files)

	return snapshot, nil
}

// Get returns a snapshot of a job.
func (m *Manager) Get(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	return job.clone(), true
}

// Close cancels running jobs and waits for them to finish.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

type reservation interface {
	Append(models.MediaFile) error
	Close()
}

func (m *Manager) processJob(job *Job, ws *session.Workspace, res reservation, files []media.Candidate) {
	defer m.wg.Done()
	defer res.Close()

	log := m.logger.With(zap.String("job", shortID(job.ID)), zap.String("workspace", shortID(ws.ID)))
	log.Info("intake started", zap.Int("files", len(files)))
	start := m.now()

	brief := ws.Brief()
	project := ws.Project()
	captionCtx := caption.Context{Idea: brief.Idea, Subject: brief.Subject}
	if captionCtx.Idea == "" {
		captionCtx.Idea = project.Title
	}

	results := make([]*models.MediaFile, len(files))
	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i := range files {
		g.Go(func() error {
			mf, err := m.processFile(m.ctx, job, ws.ID, i, files[i], captionCtx)
			if err != nil {
				m.rejectFile(job, i, err)
				log.Info("file rejected", zap.String("file", files[i].Name), zap.Error(err))
				return nil
			}
			results[i] = mf
			return nil
		})
	}
	_ = g.Wait()

	// Append in submission order regardless of completion order.
	for i, mf := range results {
		if mf == nil {
			continue
		}
		if err := res.Append(*mf); err != nil {
			m.releaseLocal(*mf)
			m.rejectFile(job, i, err)
			continue
		}
		m.acceptFile(job, i, *mf)
	}

	elapsed := m.now().Sub(start)
	if err := m.ctx.Err(); err != nil {
		log.Warn("intake interrupted", zap.Error(err))
		m.finishJob(job, err)
		return
	}
	log.Info("intake complete", zap.Int("accepted", job.Accepted), zap.Duration("elapsed", elapsed))
	m.finishJob(job, nil)
}

// processFile runs one candidate through validate, normalize, moderate,
// store, caption and classify. Only the first three can reject a file.
func (m *Manager) processFile(ctx context.Context, job *Job, workspaceID string, idx int, c media.Candidate, cc caption.Context) (*models.MediaFile, error) {
	m.setStage(job, idx, StageValidating, 5)
	if err := m.validator.Validate(c); err != nil {
		return nil, err
	}

	m.setStage(job, idx, StageNormalize, 15)
	norm, err := m.normalizer.Normalize(ctx, c)
	if err != nil {
		return nil, err
	}

	m.setStage(job, idx, StageModerating, 30)
	verdict, err := m.moderator.Moderate(ctx, norm)
	if err != nil {
		return nil, fmt.Errorf("moderation failed: %w", err)
	}
	if !verdict.Approved {
		reason := verdict.Reason
		if reason == "" {
			reason = "Image rejected by content moderation"
		}
		return nil, &media.RejectError{FileName: c.Name, Reason: reason}
	}

	pending := models.MediaFile{
		FileName:  c.Name,
		MimeType:  norm.MimeType,
		Size:      int64(len(norm.Data)),
		Uploading: true,
	}
	pending.SetDimensions(norm.Width, norm.Height)
	m.setUploading(job, idx, pending, 0)

	stored, err := m.storage.Store(ctx, storage.Object{
		UserID:    job.UserID,
		ProjectID: workspaceID,
		FileName:  c.Name,
		MimeType:  norm.MimeType,
		Data:      norm.Data,
	}, func(p float64) {
		m.setUploading(job, idx, pending, p)
	})
	if err != nil {
		return nil, err
	}

	mf := &models.MediaFile{
		ID:        models.NewMediaID(m.now()),
		FileName:  c.Name,
		MimeType:  norm.MimeType,
		Size:      int64(len(norm.Data)),
		Src:       stored.Src,
		Progress:  100,
		RemoteURL: stored.RemoteURL,
		LocalRef:  stored.LocalRef,
		CreatedAt: m.now(),
	}
	mf.SetDimensions(norm.Width, norm.Height)

	m.setStage(job, idx, StageCaptioning, 95)
	result, err := m.captions.Generate(ctx, c.Name, cc)
	if err != nil {
		m.releaseLocal(*mf)
		return nil, err
	}
	mf.Caption = result.Caption
	mf.AltText = result.AltText
	mf.Section = m.rules.Classify(mf.DisplayCaption())

	return mf, nil
}

func (m *Manager) releaseLocal(mf models.MediaFile) {
	if mf.IsLocal() {
		m.storage.Blobs().Release(mf.LocalRef)
	}
}

func (m *Manager) setStage(job *Job, idx int, stage FileStage, progress float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f := &job.Files[idx]
	f.Stage = stage
	f.Media = nil
	if progress > f.Progress {
		f.Progress = progress
	}
	job.Progress = overallProgress(job.Files)
	m.publishLocked(job, Event{Type: EventFile, JobID: job.ID, Progress: job.Progress, File: fileCopy(f)})
}

// setUploading publishes a preview of the entry while storage runs. The
// preview has no ID or locator yet and carries the upload percent.
func (m *Manager) setUploading(job *Job, idx int, pending models.MediaFile, percent float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending.Progress = percent
	f := &job.Files[idx]
	f.Stage = StageUploading
	f.Media = &pending
	if p := 30 + percent*0.6; p > f.Progress {
		f.Progress = p
	}
	job.Progress = overallProgress(job.Files)
	m.publishLocked(job, Event{Type: EventFile, JobID: job.ID, Progress: job.Progress, File: fileCopy(f)})
}

func (m *Manager) rejectFile(job *Job, idx int, err error) {
	reason := err.Error()
	var rej *media.RejectError
	if errors.As(err, &rej) {
		reason = rej.Reason
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	f := &job.Files[idx]
	f.Stage = StageRejected
	f.Progress = 100
	f.Reason = reason
	f.Media = nil
	job.Rejected++
	job.Progress = overallProgress(job.Files)
	m.publishLocked(job, Event{Type: EventFile, JobID: job.ID, Progress: job.Progress, File: fileCopy(f)})
}

func (m *Manager) acceptFile(job *Job, idx int, mf models.MediaFile) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f := &job.Files[idx]
	f.Stage = StageDone
	f.Progress = 100
	f.Media = &mf
	job.Accepted++
	job.Progress = overallProgress(job.Files)
	m.publishLocked(job, Event{Type: EventFile, JobID: job.ID, Progress: job.Progress, File: fileCopy(f)})
}

func (m *Manager) finishJob(job *Job, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	job.CompletedAt = &now
	if err != nil {
		job.Status = StatusError
		job.Error = err.Error()
	} else {
		job.Status = StatusComplete
		job.Progress = 100
	}
	m.publishLocked(job, Event{Type: EventComplete, JobID: job.ID, Progress: job.Progress, Job: job.clone()})
	m.closeSubsLocked(job.ID)
}

func overallProgress(files []FileResult) float64 {
	if len(files) == 0 {
		return 0
	}
	var total float64
	for _, f := range files {
		total += f.Progress
	}
	return total / float64(len(files))
}

func fileCopy(f *FileResult) *FileResult {
	out := *f
	if f.Media != nil {
		mc := *f.Media
		out.Media = &mc
	}
	return &out
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	removed := 0
	for id, job := range m.jobs {
		if job.done() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
