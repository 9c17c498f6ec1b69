package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Section is the report section an image is suggested for.
type Section string

const (
	SectionIntroduction Section = "introduction"
	SectionMethodology  Section = "methodology"
	SectionResults      Section = "results"
)

// MediaFile represents one processed image in a workspace gallery.
// Src is always dereferenceable once intake completes: either a local blob
// locator (LocalRef) or the remote public URL (RemoteURL).
type MediaFile struct {
	ID          string    `json:"id" msgpack:"id"`
	FileName    string    `json:"fileName" msgpack:"fileName"`
	MimeType    string    `json:"mimeType" msgpack:"mimeType"`
	Size        int64     `json:"size" msgpack:"size"`
	Src         string    `json:"src" msgpack:"src"`
	Width       int       `json:"width" msgpack:"width"`
	Height      int       `json:"height" msgpack:"height"`
	AspectRatio float64   `json:"aspectRatio" msgpack:"aspectRatio"`
	Caption     string    `json:"caption,omitempty" msgpack:"caption,omitempty"`
	AltText     string    `json:"altText,omitempty" msgpack:"altText,omitempty"`
	Section     Section   `json:"section,omitempty" msgpack:"section,omitempty"`
	Progress    float64   `json:"progress" msgpack:"progress"`
	Uploading   bool      `json:"uploading" msgpack:"uploading"`
	RemoteURL   string    `json:"remoteUrl,omitempty" msgpack:"remoteUrl,omitempty"`
	LocalRef    string    `json:"localRef,omitempty" msgpack:"localRef,omitempty"`
	CreatedAt   time.Time `json:"createdAt" msgpack:"createdAt"`
}

// IsLocal reports whether the entry is only backed by a local blob reference.
func (m *MediaFile) IsLocal() bool {
	return m.RemoteURL == "" && m.LocalRef != ""
}

// SetDimensions updates width, height and aspect ratio together.
func (m *MediaFile) SetDimensions(width, height int) {
	m.Width = width
	m.Height = height
	if height > 0 {
		m.AspectRatio = float64(width) / float64(height)
	} else {
		m.AspectRatio = 0
	}
}

// DisplayCaption returns the caption, falling back to the file name.
func (m *MediaFile) DisplayCaption() string {
	if c := strings.TrimSpace(m.Caption); c != "" {
		return c
	}
	return m.FileName
}

// NewMediaID returns a client-style identifier: creation time plus a random suffix.
func NewMediaID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}
