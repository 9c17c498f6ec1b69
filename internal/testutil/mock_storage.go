// mock_storage.go - In-memory remote object store for testing
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrUploadFailed is the default error returned by a failing MockUploader.
var ErrUploadFailed = errors.New("mock upload failed")

// MockUploader records uploads in memory and returns public URLs under
// BaseURL. It satisfies the storage uploader interface.
type MockUploader struct {
	BaseURL string
	Delay   time.Duration
	Err     error

	objects map[string][]byte
	types   map[string]string
	calls   int
	mu      sync.RWMutex
}

// NewMockUploader creates an uploader that succeeds.
func NewMockUploader() *MockUploader {
	return &MockUploader{
		BaseURL: "https://objects.test/public",
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

// NewFailingMockUploader creates an uploader whose every call fails with err.
func NewFailingMockUploader(err error) *MockUploader {
	if err == nil {
		err = ErrUploadFailed
	}
	m := NewMockUploader()
	m.Err = err
	return m
}

// Upload stores data under objectPath.
func (m *MockUploader) Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	m.calls++
	delay, failure := m.Delay, m.Err
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	if failure != nil {
		return "", failure
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[objectPath] = buf
	m.types[objectPath] = contentType
	return m.BaseURL + "/" + objectPath, nil
}

// Object returns a stored payload and its content type.
func (m *MockUploader) Object(objectPath string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[objectPath]
	return data, m.types[objectPath], ok
}

// Len returns the number of stored objects.
func (m *MockUploader) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Calls returns how many uploads were attempted.
func (m *MockUploader) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}
