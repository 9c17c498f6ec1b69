// Package gallery holds the ordered media list owned by one workspace.
package gallery

import (
	"errors"
	"fmt"
	"sync"

	"github.com/deliverable-studio/backend/internal/layout"
	"github.com/deliverable-studio/backend/internal/models"
)

// DefaultMaxMedia is the per-project entry cap.
const DefaultMaxMedia = 12

var (
	// ErrNotFound is returned for unknown media IDs.
	ErrNotFound = errors.New("media not found")
	// ErrReservationClosed is returned when a finished reservation is reused.
	ErrReservationClosed = errors.New("reservation already closed")
	// ErrInvalidOrder is returned when a new ordering is not a permutation.
	ErrInvalidOrder = errors.New("order must contain every media id exactly once")
	// ErrClosed is returned once the owning workspace has been dropped.
	ErrClosed = errors.New("gallery closed")
)

// CapacityError rejects a whole batch that would exceed the cap.
type CapacityError struct {
	Max       int
	Current   int
	Incoming  int
	Remaining int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("Maximum %d images allowed. You can upload %d more.", e.Max, e.Remaining)
}

// Releaser frees local references.
type Releaser interface {
	Release(ref string) bool
}

// List is an ordered, capped list of media entries. Slots for in-flight
// batches are reserved up front so concurrent batches cannot overfill it.
type List struct {
	mu       sync.RWMutex
	max      int
	items    []models.MediaFile
	reserved int
	closed   bool
	releaser Releaser
}

// NewList creates an empty list. max <= 0 uses DefaultMaxMedia.
func NewList(max int, releaser Releaser) *List {
	if max <= 0 {
		max = DefaultMaxMedia
	}
	return &List{max: max, releaser: releaser}
}

// Max returns the cap.
func (l *List) Max() int { return l.max }

// Len returns the number of stored entries.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Remaining returns how many more entries can be reserved.
func (l *List) Remaining() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.remainingLocked()
}

func (l *List) remainingLocked() int {
	r := l.max - len(l.items) - l.reserved
	if r < 0 {
		return 0
	}
	return r
}

// Reserve claims n slots or rejects the whole request with a *CapacityError.
func (l *List) Reserve(n int) (*Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}
	remaining := l.remainingLocked()
	if n > remaining {
		return nil, &CapacityError{
			Max:       l.max,
			Current:   len(l.items) + l.reserved,
			Incoming:  n,
			Remaining: remaining,
		}
	}
	l.reserved += n
	return &Reservation{list: l, slots: n}, nil
}

// Items returns a copy of the entries in order.
func (l *List) Items() []models.MediaFile {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.MediaFile, len(l.items))
	copy(out, l.items)
	return out
}

// Get returns the entry with the given ID.
func (l *List) Get(id string) (models.MediaFile, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if i := l.indexLocked(id); i >= 0 {
		return l.items[i], true
	}
	return models.MediaFile{}, false
}

// Update applies fn to the entry with the given ID. The ID cannot change.
func (l *List) Update(id string, fn func(*models.MediaFile)) (models.MediaFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexLocked(id)
	if i < 0 {
		return models.MediaFile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m := l.items[i]
	fn(&m)
	m.ID = id
	l.items[i] = m
	return m, nil
}

// Remove deletes the entry and releases its local reference, if any.
func (l *List) Remove(id string) (models.MediaFile, error) {
	l.mu.Lock()
	i := l.indexLocked(id)
	if i < 0 {
		l.mu.Unlock()
		return models.MediaFile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m := l.items[i]
	l.items = append(l.items[:i:i], l.items[i+1:]...)
	l.mu.Unlock()

	l.release(m)
	return m, nil
}

// Move relocates the entry at from to index to, replacing the list in one step.
func (l *List) Move(from, to int) ([]models.MediaFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next, err := layout.Move(l.items, from, to)
	if err != nil {
		return nil, err
	}
	l.items = next

	out := make([]models.MediaFile, len(next))
	copy(out, next)
	return out, nil
}

// Reorder replaces the order with ids, which must be a permutation of the
// current IDs.
func (l *List) Reorder(ids []string) ([]models.MediaFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(ids) != len(l.items) {
		return nil, ErrInvalidOrder
	}
	byID := make(map[string]models.MediaFile, len(l.items))
	for _, m := range l.items {
		byID[m.ID] = m
	}
	next := make([]models.MediaFile, 0, len(ids))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			return nil, ErrInvalidOrder
		}
		delete(byID, id)
		next = append(next, m)
	}
	l.items = next

	out := make([]models.MediaFile, len(next))
	copy(out, next)
	return out, nil
}

// Clear removes every entry, releasing local references. It returns the
// number of references released.
func (l *List) Clear() int {
	return l.drain(false)
}

// Close clears the list and refuses further reservations and appends.
func (l *List) Close() int {
	return l.drain(true)
}

func (l *List) drain(final bool) int {
	l.mu.Lock()
	if final {
		l.closed = true
	}
	items := l.items
	l.items = nil
	l.mu.Unlock()

	released := 0
	for _, m := range items {
		if l.release(m) {
			released++
		}
	}
	return released
}

func (l *List) release(m models.MediaFile) bool {
	if l.releaser == nil || !m.IsLocal() {
		return false
	}
	return l.releaser.Release(m.LocalRef)
}

func (l *List) indexLocked(id string) int {
	for i, m := range l.items {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// Reservation holds slots claimed by one intake batch.
type Reservation struct {
	list   *List
	slots  int
	used   int
	closed bool
	mu     sync.Mutex
}

// Append adds an entry using one reserved slot.
func (r *Reservation) Append(m models.MediaFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.used >= r.slots {
		return ErrReservationClosed
	}
	r.used++

	l := r.list
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reserved--
	if l.closed {
		return ErrClosed
	}
	l.items = append(l.items, m)
	return nil
}

// Close returns unused slots to the list. It is safe to call more than once.
func (r *Reservation) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	unused := r.slots - r.used
	if unused > 0 {
		r.list.mu.Lock()
		r.list.reserved -= unused
		r.list.mu.Unlock()
	}
}
