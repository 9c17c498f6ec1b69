package storage

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// BlobScheme prefixes every local reference.
const BlobScheme = "blob:"

// Blob is a payload held in process memory.
type Blob struct {
	Ref       string
	Data      []byte
	MimeType  string
	CreatedAt time.Time
}

// BlobRegistry holds local references for media that is not (or not yet)
// persisted remotely. Every reference must be released exactly once when the
// entry is removed or superseded by a remote URL.
type BlobRegistry struct {
	mu       sync.RWMutex
	blobs    map[string]*Blob
	released int
	bytes    int64
}

// NewBlobRegistry creates an empty registry.
func NewBlobRegistry() *BlobRegistry {
	return &BlobRegistry{
		blobs: make(map[string]*Blob),
	}
}

// Create stores data and returns its locator.
func (r *BlobRegistry) Create(data []byte, mimeType string) string {
	ref := BlobScheme + uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[ref] = &Blob{
		Ref:       ref,
		Data:      data,
		MimeType:  mimeType,
		CreatedAt: time.Now(),
	}
	r.bytes += int64(len(data))
	return ref
}

// Open returns the blob for ref.
func (r *BlobRegistry) Open(ref string) (*Blob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.blobs[ref]
	return b, ok
}

// Release frees the blob. It returns false if ref was unknown or already released.
func (r *BlobRegistry) Release(ref string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.blobs[ref]
	if !ok {
		return false
	}
	delete(r.blobs, ref)
	r.released++
	r.bytes -= int64(len(b.Data))
	return true
}

// Len returns the number of live references.
func (r *BlobRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}

// Bytes returns the total size of live blobs.
func (r *BlobRegistry) Bytes() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bytes
}

// Released returns how many references have been released so far.
func (r *BlobRegistry) Released() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.released
}

// IsBlobRef reports whether src is a local reference.
func IsBlobRef(src string) bool {
	return strings.HasPrefix(src, BlobScheme)
}

// BlobID strips the scheme from a reference.
func BlobID(ref string) string {
	return strings.TrimPrefix(ref, BlobScheme)
}
