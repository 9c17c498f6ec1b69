package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"github.com/deliverable-studio/backend/internal/models"
	_ "golang.org/x/image/webp"
)

// embedded is an image ready to be placed in a document.
type embedded struct {
	Data   []byte
	Format string // "jpeg" or "png"
	Width  int
	Height int
}

func (e *embedded) aspect() float64 {
	if e.Height == 0 {
		return 1
	}
	return float64(e.Width) / float64(e.Height)
}

// loadEmbedded resolves a media entry and makes sure the payload is JPEG or
// PNG. Other decodable formats are re-encoded as PNG.
func loadEmbedded(ctx context.Context, resolve Resolver, m models.MediaFile) (*embedded, error) {
	data, err := resolve(ctx, m)
	if err != nil {
		return nil, err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrImageUnavailable, m.FileName, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("%w: %s: empty image", ErrImageUnavailable, m.FileName)
	}

	switch format {
	case "jpeg", "png":
		return &embedded{Data: data, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrImageUnavailable, m.FileName, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrImageUnavailable, m.FileName, err)
	}
	return &embedded{Data: buf.Bytes(), Format: "png", Width: cfg.Width, Height: cfg.Height}, nil
}

// decodeMedia resolves and fully decodes a media entry.
func decodeMedia(ctx context.Context, resolve Resolver, m models.MediaFile) (image.Image, error) {
	data, err := resolve(ctx, m)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrImageUnavailable, m.FileName, err)
	}
	return img, nil
}

// mediaAspect returns the stored aspect ratio, falling back to 4:3.
func mediaAspect(m models.MediaFile) float64 {
	if m.AspectRatio > 0 {
		return m.AspectRatio
	}
	if m.Width > 0 && m.Height > 0 {
		return float64(m.Width) / float64(m.Height)
	}
	return 4.0 / 3.0
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
