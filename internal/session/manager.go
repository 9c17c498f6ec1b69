// Package session keeps the in-memory workspaces a user edits a project in.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/deliverable-studio/backend/internal/gallery"
	"github.com/deliverable-studio/backend/internal/generate"
	"github.com/deliverable-studio/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxWorkspaces limits live workspaces to bound memory held by local blobs.
const MaxWorkspaces = 100

// WorkspaceKeepAliveWindow protects recently used workspaces from cleanup.
const WorkspaceKeepAliveWindow = 5 * time.Minute

var (
	// ErrNotFound is returned for unknown workspace IDs.
	ErrNotFound = errors.New("workspace not found")
	// ErrInvalidMode is returned for layout modes other than auto and manual.
	ErrInvalidMode = errors.New("invalid layout mode")
)

// Workspace is one project being edited: its text content, its gallery and
// the layout mode.
type Workspace struct {
	ID        string
	UserID    string
	Gallery   *gallery.List
	CreatedAt time.Time

	mu           sync.RWMutex
	project      models.ProjectData
	brief        generate.Brief
	mode         models.LayoutMode
	lastAccessed time.Time
}

// Project returns a copy of the project content.
func (w *Workspace) Project() models.ProjectData {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.project.Clone()
}

// Brief returns the idea, subject and discipline the project was started from.
func (w *Workspace) Brief() generate.Brief {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.brief
}

// Mode returns the current layout mode.
func (w *Workspace) Mode() models.LayoutMode {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.mode
}

// LastAccessed returns when the workspace was last used.
func (w *Workspace) LastAccessed() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastAccessed
}

// Summary returns the public view of the workspace.
func (w *Workspace) Summary() models.WorkspaceSummary {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return models.WorkspaceSummary{
		ID:           w.ID,
		UserID:       w.UserID,
		Project:      w.project.Clone(),
		Subject:      w.brief.Subject,
		MediaCount:   w.Gallery.Len(),
		Remaining:    w.Gallery.Remaining(),
		Mode:         w.mode,
		CreatedAt:    w.CreatedAt,
		LastAccessed: w.lastAccessed,
	}
}

// Manager owns all live workspaces.
type Manager struct {
	workspaces map[string]*Workspace
	mu         sync.RWMutex
	maxMedia   int
	releaser   gallery.Releaser
	logger     *zap.Logger
	now        func() time.Time
}

// NewManager creates a workspace manager. Each workspace gallery holds at most
// maxMedia entries and hands local references back to releaser.
func NewManager(maxMedia int, releaser gallery.Releaser, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		workspaces: make(map[string]*Workspace),
		maxMedia:   maxMedia,
		releaser:   releaser,
		logger:     logger,
		now:        time.Now,
	}
}

// Create starts a new workspace for userID.
func (m *Manager) Create(userID string, project models.ProjectData) *Workspace {
	m.evictIfNeeded()

	now := m.now()
	w := &Workspace{
		ID:           uuid.New().String(),
		UserID:       userID,
		Gallery:      gallery.NewList(m.maxMedia, m.releaser),
		CreatedAt:    now,
		project:      project.Clone(),
		mode:         models.LayoutModeAuto,
		lastAccessed: now,
	}

	m.mu.Lock()
	m.workspaces[w.ID] = w
	m.mu.Unlock()

	m.logger.Info("workspace created", zap.String("workspace", w.ID), zap.String("user", userID))
	return w
}

// Get returns a workspace by ID.
func (m *Manager) Get(id string) (*Workspace, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workspaces[id]
	return w, ok
}

// Touch updates the LastAccessed timestamp so the workspace survives cleanup.
func (m *Manager) Touch(id string) bool {
	w, ok := m.Get(id)
	if !ok {
		return false
	}
	w.mu.Lock()
	w.lastAccessed = m.now()
	w.mu.Unlock()
	return true
}

// SetProject replaces the project content.
func (m *Manager) SetProject(id string, project models.ProjectData) error {
	w, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	w.mu.Lock()
	w.project = project.Clone()
	w.lastAccessed = m.now()
	w.mu.Unlock()
	return nil
}

// SetBrief records the brief used for captions and content generation.
func (m *Manager) SetBrief(id string, brief generate.Brief) error {
	w, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	w.mu.Lock()
	w.brief = brief
	w.lastAccessed = m.now()
	w.mu.Unlock()
	return nil
}

// SetMode switches between auto and manual layout.
func (m *Manager) SetMode(id string, mode models.LayoutMode) error {
	if mode != models.LayoutModeAuto && mode != models.LayoutModeManual {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	w, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	w.mu.Lock()
	w.mode = mode
	w.lastAccessed = m.now()
	w.mu.Unlock()
	return nil
}

// Delete drops a workspace and releases every local reference it still holds.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	w, ok := m.workspaces[id]
	if ok {
		delete(m.workspaces, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	released := w.Gallery.Close()
	m.logger.Info("workspace deleted", zap.String("workspace", id), zap.Int("released", released))
	return true
}

// Len returns the number of live workspaces.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workspaces)
}

// CleanupOld removes workspaces not accessed within maxAge, but keeps those
// used within WorkspaceKeepAliveWindow. It returns the number removed.
func (m *Manager) CleanupOld(maxAge time.Duration) int {
	now := m.now()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-WorkspaceKeepAliveWindow)

	m.mu.Lock()
	var stale []*Workspace
	for id, w := range m.workspaces {
		last := w.LastAccessed()
		if last.After(keepAliveCutoff) || !last.Before(cutoff) {
			continue
		}
		stale = append(stale, w)
		delete(m.workspaces, id)
	}
	m.mu.Unlock()

	for _, w := range stale {
		released := w.Gallery.Close()
		m.logger.Info("cleaned up idle workspace",
			zap.String("workspace", w.ID),
			zap.Duration("idle", now.Sub(w.LastAccessed()).Round(time.Second)),
			zap.Int("released", released))
	}
	return len(stale)
}

// evictIfNeeded drops the least recently used workspaces when at capacity.
func (m *Manager) evictIfNeeded() {
	m.mu.Lock()
	if len(m.workspaces) < MaxWorkspaces {
		m.mu.Unlock()
		return
	}

	all := make([]*Workspace, 0, len(m.workspaces))
	for _, w := range m.workspaces {
		all = append(all, w)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].LastAccessed().Before(all[j].LastAccessed())
	})

	toFree := len(m.workspaces) - MaxWorkspaces + 1
	evicted := all[:toFree]
	for _, w := range evicted {
		delete(m.workspaces, w.ID)
	}
	m.mu.Unlock()

	for _, w := range evicted {
		w.Gallery.Close()
		m.logger.Warn("evicted workspace to free memory", zap.String("workspace", w.ID))
	}
}
