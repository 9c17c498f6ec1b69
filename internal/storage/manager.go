package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is returned when a locator cannot be resolved.
var ErrNotFound = errors.New("media source not found")

// Stored is where an object ended up. Src is always usable for display.
type Stored struct {
	Src       string
	RemoteURL string
	LocalRef  string
	Strategy  string
	Degraded  bool // remote upload failed and the local copy is used instead
}

// Manager guarantees that every stored object has a display locator. It
// holds the strategy chosen at startup and falls back to the local registry
// when a remote upload fails.
type Manager struct {
	strategy Strategy
	blobs    *BlobRegistry
	logger   *zap.Logger
	http     *http.Client
}

// NewManager wires a strategy to the blob registry.
func NewManager(strategy Strategy, blobs *BlobRegistry, logger *zap.Logger) *Manager {
	if strategy == nil {
		strategy = LocalStrategy{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		strategy: strategy,
		blobs:    blobs,
		logger:   logger,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// SelectStrategy returns the remote strategy when an uploader is configured,
// the local one otherwise.
func SelectStrategy(client Uploader) Strategy {
	if client == nil {
		return LocalStrategy{}
	}
	return NewRemoteStrategy(client, 0)
}

// StrategyName reports which strategy was selected.
func (m *Manager) StrategyName() string {
	return m.strategy.Name()
}

// Blobs exposes the local registry.
func (m *Manager) Blobs() *BlobRegistry {
	return m.blobs
}

// Store persists obj. Upload errors are logged and never returned: the local
// reference is used instead. The local reference is released when a remote
// URL supersedes it.
func (m *Manager) Store(ctx context.Context, obj Object, progress ProgressFunc) (Stored, error) {
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}

	ref := m.blobs.Create(obj.Data, obj.MimeType)

	url, err := m.strategy.Persist(ctx, obj, progress)
	if err != nil {
		m.logger.Warn("remote upload failed, falling back to local storage",
			zap.String("file", obj.FileName),
			zap.String("project", obj.ProjectID),
			zap.Error(err))
		if progress != nil {
			progress(100)
		}
		return Stored{Src: ref, LocalRef: ref, Strategy: LocalStrategy{}.Name(), Degraded: true}, nil
	}

	if url != "" {
		m.blobs.Release(ref)
		return Stored{Src: url, RemoteURL: url, Strategy: m.strategy.Name()}, nil
	}

	return Stored{Src: ref, LocalRef: ref, Strategy: m.strategy.Name()}, nil
}

// Fetch returns the payload behind a display locator: a local blob or a
// remote URL.
func (m *Manager) Fetch(ctx context.Context, src string) ([]byte, error) {
	if IsBlobRef(src) {
		b, ok := m.blobs.Open(src)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, src)
		}
		return b.Data, nil
	}
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return nil, fmt.Errorf("%w: unsupported locator %q", ErrNotFound, src)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{StatusCode: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}
