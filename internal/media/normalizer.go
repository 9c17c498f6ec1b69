package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Normalizer defaults.
const (
	DefaultMaxWidth    = 2000
	DefaultJPEGQuality = 90
)

var (
	// ErrDecode means the payload is corrupt or not a supported image.
	ErrDecode = errors.New("failed to load image")
	// ErrEncode means re-encoding produced no data.
	ErrEncode = errors.New("failed to compress image")
)

// Normalized is a re-encoded image ready for moderation and storage.
type Normalized struct {
	Data         []byte
	MimeType     string
	Width        int
	Height       int
	AspectRatio  float64
	SourceWidth  int
	SourceHeight int
}

// Resized reports whether the image was downsampled.
func (n *Normalized) Resized() bool {
	return n.Width != n.SourceWidth || n.Height != n.SourceHeight
}

// Normalizer caps image width and re-encodes the pixels. Only pixel data is
// written back, so EXIF and any other embedded metadata is dropped.
type Normalizer struct {
	maxWidth int
	quality  int
}

// NewNormalizer creates a normalizer; zero values fall back to the defaults.
func NewNormalizer(maxWidth, jpegQuality int) *Normalizer {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}
	return &Normalizer{maxWidth: maxWidth, quality: jpegQuality}
}

// Normalize decodes, optionally downsamples and re-encodes the candidate.
func (n *Normalizer) Normalize(ctx context.Context, c Candidate) (*Normalized, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, _, err := image.Decode(bytes.NewReader(c.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	b := src.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW <= 0 || srcH <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}

	w, h := TargetSize(srcW, srcH, n.maxWidth)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == srcW && h == srcH {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}

	mimeType := outputType(c.MimeType)
	var buf bytes.Buffer
	switch mimeType {
	case MimeJPEG:
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: n.quality})
	default:
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if buf.Len() == 0 {
		return nil, ErrEncode
	}

	return &Normalized{
		Data:         buf.Bytes(),
		MimeType:     mimeType,
		Width:        w,
		Height:       h,
		AspectRatio:  float64(w) / float64(h),
		SourceWidth:  srcW,
		SourceHeight: srcH,
	}, nil
}

// TargetSize returns the output dimensions for an image capped at maxWidth.
// The height is recomputed from the original aspect ratio and rounded.
func TargetSize(width, height, maxWidth int) (int, int) {
	if width <= maxWidth {
		return width, height
	}
	aspect := float64(width) / float64(height)
	h := int(math.Round(float64(maxWidth) / aspect))
	if h < 1 {
		h = 1
	}
	return maxWidth, h
}

// outputType picks the encoding for a declared type. WebP has no encoder
// here, so it is written as PNG.
func outputType(declared string) string {
	switch strings.ToLower(declared) {
	case MimeJPEG:
		return MimeJPEG
	default:
		return MimePNG
	}
}
