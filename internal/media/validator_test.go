package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		candidate  Candidate
		wantReason string
	}{
		{
			name:      "valid png",
			candidate: Candidate{Name: "chart.png", MimeType: "image/png", Size: 1024},
		},
		{
			name:      "valid jpeg upper case extension",
			candidate: Candidate{Name: "PHOTO.JPEG", MimeType: "image/jpeg", Size: 1024},
		},
		{
			name:      "valid webp",
			candidate: Candidate{Name: "scan.webp", MimeType: "image/webp", Size: 1024},
		},
		{
			name:       "too large",
			candidate:  Candidate{Name: "big.png", MimeType: "image/png", Size: MaxFileSize + 1},
			wantReason: "File too large. Maximum size is 10MB",
		},
		{
			name:       "size is checked before type",
			candidate:  Candidate{Name: "big.gif", MimeType: "image/gif", Size: MaxFileSize + 1},
			wantReason: "File too large. Maximum size is 10MB",
		},
		{
			name:       "wrong type",
			candidate:  Candidate{Name: "anim.gif", MimeType: "image/gif", Size: 10},
			wantReason: "Invalid file type. Only JPEG, PNG, and WebP are allowed",
		},
		{
			name:       "double extension",
			candidate:  Candidate{Name: "invoice.php.png", MimeType: "image/png", Size: 10},
			wantReason: "Suspicious file name detected",
		},
		{
			name:       "executable in the middle",
			candidate:  Candidate{Name: "setup.EXE.jpg", MimeType: "image/jpeg", Size: 10},
			wantReason: "Suspicious file name detected",
		},
		{
			name:      "word that merely starts like an extension",
			candidate: Candidate{Name: "lab.shape.png", MimeType: "image/png", Size: 10},
		},
		{
			name:       "unsupported extension with allowed type",
			candidate:  Candidate{Name: "photo.tiff", MimeType: "image/png", Size: 10},
			wantReason: "Unsupported file extension. Use .jpg, .jpeg, .png or .webp",
		},
		{
			name:       "size falls back to payload length",
			candidate:  Candidate{Name: "x.png", MimeType: "image/png", Data: make([]byte, 11)},
			wantReason: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.candidate)
			if tt.wantReason == "" {
				assert.NoError(t, err)
				return
			}
			var rej *RejectError
			require.ErrorAs(t, err, &rej)
			assert.Equal(t, tt.wantReason, rej.Reason)
			assert.NotEmpty(t, rej.Reason)
			assert.Equal(t, tt.candidate.Name, rej.FileName)
		})
	}
}

func TestValidatorCustomLimit(t *testing.T) {
	v := NewValidator(1024 * 1024)
	err := v.Validate(Candidate{Name: "a.png", MimeType: "image/png", Size: 2 * 1024 * 1024})
	var rej *RejectError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "File too large. Maximum size is 1MB", rej.Reason)
}

func TestHasAcceptedExtension(t *testing.T) {
	assert.True(t, HasAcceptedExtension("a.jpg"))
	assert.True(t, HasAcceptedExtension("a.JPG"))
	assert.True(t, HasAcceptedExtension("a.webp"))
	assert.False(t, HasAcceptedExtension("a.gif"))
	assert.False(t, HasAcceptedExtension("png"))
}
