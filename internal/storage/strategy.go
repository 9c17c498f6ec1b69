package storage

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ProgressFunc receives upload progress in percent (0-100).
type ProgressFunc func(percent float64)

// Object is a normalized, approved payload ready to be persisted.
type Object struct {
	UserID    string
	ProjectID string
	FileName  string
	MimeType  string
	Data      []byte
}

// Strategy persists objects. A non-empty URL means the object is now
// available remotely; an empty URL means it lives only in the local registry.
type Strategy interface {
	Name() string
	Persist(ctx context.Context, obj Object, progress ProgressFunc) (string, error)
}

// LocalStrategy keeps everything in process memory.
type LocalStrategy struct{}

// Name implements Strategy.
func (LocalStrategy) Name() string { return "local" }

// Persist reports progress for UI consistency and keeps the local reference.
func (LocalStrategy) Persist(ctx context.Context, obj Object, progress ProgressFunc) (string, error) {
	if progress != nil {
		progress(0)
		progress(100)
	}
	return "", nil
}

// RemoteStrategy uploads through an Uploader. The uploader gives no progress,
// so synthetic progress is emitted while the call is outstanding.
type RemoteStrategy struct {
	client Uploader
	tick   time.Duration
}

// NewRemoteStrategy creates a remote strategy; tick <= 0 uses 200ms.
func NewRemoteStrategy(client Uploader, tick time.Duration) *RemoteStrategy {
	if tick <= 0 {
		tick = 200 * time.Millisecond
	}
	return &RemoteStrategy{client: client, tick: tick}
}

// Name implements Strategy.
func (s *RemoteStrategy) Name() string { return "remote" }

// Persist uploads obj to {user}/{project}/{generated name}.
func (s *RemoteStrategy) Persist(ctx context.Context, obj Object, progress ProgressFunc) (string, error) {
	objectPath := ObjectPath(obj.UserID, obj.ProjectID, obj.FileName, time.Now())

	stop := s.simulateProgress(progress)
	url, err := s.client.Upload(ctx, objectPath, obj.Data, obj.MimeType)
	stop()
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", objectPath, err)
	}

	if progress != nil {
		progress(100)
	}
	return url, nil
}

// simulateProgress emits +10% per tick, capped at 90, until the returned stop
// function is called. stop waits for the ticker goroutine to exit, so no
// synthetic update can arrive after it returns.
func (s *RemoteStrategy) simulateProgress(progress ProgressFunc) func() {
	if progress == nil {
		return func() {}
	}
	progress(0)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()
		current := 0.0
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if current < 90 {
					current += 10
					progress(current)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}

var unsafeSegment = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ObjectPath builds the remote key {user}/{project}/{millis}-{suffix}.{ext}.
func ObjectPath(userID, projectID, fileName string, now time.Time) string {
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" {
		ext = ".bin"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	name := fmt.Sprintf("%d-%s%s", now.UnixMilli(), suffix, ext)
	return path.Join(segment(userID, "anonymous"), segment(projectID, "default"), name)
}

func segment(s, fallback string) string {
	s = unsafeSegment.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return fallback
	}
	return s
}
