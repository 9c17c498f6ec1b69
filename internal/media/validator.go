// Package media holds the image intake steps that run before storage:
// validation, normalization and moderation.
package media

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MaxFileSize is the default per-file limit (10 MiB).
const MaxFileSize int64 = 10 * 1024 * 1024

// Accepted MIME types.
const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeWebP = "image/webp"
)

var allowedTypes = map[string]bool{
	MimeJPEG: true,
	MimePNG:  true,
	MimeWebP: true,
}

// AcceptedExtensions are the extensions offered by the file picker.
var AcceptedExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

var blockedExtensions = map[string]bool{
	"exe": true, "bat": true, "cmd": true, "sh": true, "php": true,
	"js": true, "scr": true, "com": true, "vbs": true, "jar": true,
}

// Candidate is an uploaded file before any processing.
type Candidate struct {
	Name     string
	MimeType string
	Size     int64
	Data     []byte
}

// ByteLen returns the declared size, or the payload length when none was declared.
func (c Candidate) ByteLen() int64 {
	if c.Size > 0 {
		return c.Size
	}
	return int64(len(c.Data))
}

// RejectError is returned for files that fail validation or moderation.
type RejectError struct {
	FileName string
	Reason   string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s: %s", e.FileName, e.Reason)
}

func reject(name, reason string) *RejectError {
	return &RejectError{FileName: name, Reason: reason}
}

// Validator checks candidates against size, type and name rules.
type Validator struct {
	maxSize int64
}

// NewValidator creates a validator with the given size limit; <= 0 uses MaxFileSize.
func NewValidator(maxSize int64) *Validator {
	if maxSize <= 0 {
		maxSize = MaxFileSize
	}
	return &Validator{maxSize: maxSize}
}

// Validate returns nil when the candidate is acceptable, or a *RejectError.
// Checks run in order: size, declared type, suspicious name, picker extension.
func (v *Validator) Validate(c Candidate) error {
	if c.ByteLen() > v.maxSize {
		return reject(c.Name, fmt.Sprintf("File too large. Maximum size is %dMB", v.maxSize/(1024*1024)))
	}

	if !allowedTypes[strings.ToLower(c.MimeType)] {
		return reject(c.Name, "Invalid file type. Only JPEG, PNG, and WebP are allowed")
	}

	if hasBlockedExtension(c.Name) {
		return reject(c.Name, "Suspicious file name detected")
	}

	if !HasAcceptedExtension(c.Name) {
		return reject(c.Name, "Unsupported file extension. Use .jpg, .jpeg, .png or .webp")
	}

	return nil
}

// Validate runs the default validator.
func Validate(c Candidate) error {
	return NewValidator(MaxFileSize).Validate(c)
}

// HasAcceptedExtension reports whether name ends in one of AcceptedExtensions.
func HasAcceptedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range AcceptedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// hasBlockedExtension looks at every dotted segment after the first, so
// double extensions such as "photo.php.png" are caught.
func hasBlockedExtension(name string) bool {
	parts := strings.Split(strings.ToLower(filepath.Base(name)), ".")
	for _, p := range parts[1:] {
		if blockedExtensions[strings.TrimSpace(p)] {
			return true
		}
	}
	return false
}
