// Package export renders a project and its gallery into downloadable files.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/deliverable-studio/backend/internal/models"
)

// Format names an export target.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatPPTX Format = "pptx"
	FormatPNG  Format = "png"
)

var (
	// ErrUnknownFormat is returned for formats with no registered renderer.
	ErrUnknownFormat = errors.New("unknown export format")
	// ErrRegionNotFound is returned when there is no gallery to rasterize.
	ErrRegionNotFound = errors.New("gallery region not found")
	// ErrImageUnavailable is returned by resolvers that cannot load an image.
	ErrImageUnavailable = errors.New("image unavailable")
)

// Resolver loads the payload behind a media entry.
type Resolver func(ctx context.Context, m models.MediaFile) ([]byte, error)

// Input is an immutable snapshot handed to a renderer.
type Input struct {
	Project models.ProjectData
	Media   []models.MediaFile
	Resolve Resolver
}

func (in Input) snapshot() Input {
	out := Input{Project: in.Project.Clone(), Resolve: in.Resolve}
	out.Media = make([]models.MediaFile, len(in.Media))
	copy(out.Media, in.Media)
	if out.Resolve == nil {
		out.Resolve = func(ctx context.Context, m models.MediaFile) ([]byte, error) {
			return nil, fmt.Errorf("%w: %s", ErrImageUnavailable, m.FileName)
		}
	}
	return out
}

// Output is a finished export.
type Output struct {
	FileName    string
	ContentType string
	Data        []byte
	Pages       int
}

// Renderer produces one export format.
type Renderer interface {
	Format() Format
	Render(ctx context.Context, in Input) (*Output, error)
}

// Registry holds the available renderers.
type Registry struct {
	mu        sync.RWMutex
	renderers map[Format]Renderer
	order     []Format
}

// NewRegistry creates a registry with the given renderers.
func NewRegistry(renderers ...Renderer) *Registry {
	r := &Registry{renderers: make(map[Format]Renderer)}
	for _, rd := range renderers {
		r.Register(rd)
	}
	return r
}

// DefaultRegistry returns the document, slide deck and gallery renderers.
func DefaultRegistry() *Registry {
	return NewRegistry(NewDocumentRenderer(), NewSlidesRenderer(), NewGalleryRenderer())
}

// Register adds or replaces the renderer for its format.
func (r *Registry) Register(rd Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.renderers[rd.Format()]; !ok {
		r.order = append(r.order, rd.Format())
	}
	r.renderers[rd.Format()] = rd
}

// Get returns the renderer for format.
func (r *Registry) Get(format Format) (Renderer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rd, ok := r.renderers[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	return rd, nil
}

// Formats lists registered formats in registration order.
func (r *Registry) Formats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Format, len(r.order))
	copy(out, r.order)
	return out
}

// Render snapshots the input and runs the renderer for format.
func (r *Registry) Render(ctx context.Context, format Format, in Input) (*Output, error) {
	rd, err := r.Get(format)
	if err != nil {
		return nil, err
	}
	return rd.Render(ctx, in.snapshot())
}

// ParseFormat maps a user-supplied name to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatPDF:
		return FormatPDF, nil
	case FormatPPTX:
		return FormatPPTX, nil
	case FormatPNG:
		return FormatPNG, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// SanitizeTitle turns a project title into a file name stem: lower case
// ASCII letters and digits only.
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "project"
	}
	return b.String()
}
