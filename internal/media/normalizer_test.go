package media

import (
	"bytes"
	"context"
	"image"
	"math"
	"testing"
	"time"

	"github.com/deliverable-studio/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer(0, 0)
	ctx := context.Background()

	t.Run("small png keeps its size", func(t *testing.T) {
		out, err := n.Normalize(ctx, Candidate{Name: "a.png", MimeType: MimePNG, Data: testutil.PNG(40, 30)})
		require.NoError(t, err)
		assert.Equal(t, 40, out.Width)
		assert.Equal(t, 30, out.Height)
		assert.False(t, out.Resized())
		assert.Equal(t, MimePNG, out.MimeType)
		assert.InDelta(t, 40.0/30.0, out.AspectRatio, 1e-9)
	})

	t.Run("wide jpeg is capped at 2000px", func(t *testing.T) {
		out, err := n.Normalize(ctx, Candidate{Name: "wide.jpg", MimeType: MimeJPEG, Data: testutil.JPEG(2400, 900)})
		require.NoError(t, err)
		assert.Equal(t, 2000, out.Width)
		assert.Equal(t, 750, out.Height)
		assert.True(t, out.Resized())
		assert.Equal(t, MimeJPEG, out.MimeType)
		assert.InDelta(t, float64(out.Width)/float64(out.Height), out.AspectRatio, 1e-9)

		cfg, format, err := image.DecodeConfig(bytes.NewReader(out.Data))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.Equal(t, 2000, cfg.Width)
		assert.Equal(t, 750, cfg.Height)
	})

	t.Run("exif metadata is discarded", func(t *testing.T) {
		in := testutil.JPEGWithEXIF(64, 48)
		require.True(t, bytes.Contains(in, []byte("GPS-SECRET-LOCATION")))

		out, err := n.Normalize(ctx, Candidate{Name: "geo.jpg", MimeType: MimeJPEG, Data: in})
		require.NoError(t, err)
		assert.False(t, bytes.Contains(out.Data, []byte("Exif")))
		assert.False(t, bytes.Contains(out.Data, []byte("GPS-SECRET-LOCATION")))
	})

	t.Run("webp declared type is written as png", func(t *testing.T) {
		out, err := n.Normalize(ctx, Candidate{Name: "x.webp", MimeType: MimeWebP, Data: testutil.PNG(10, 10)})
		require.NoError(t, err)
		assert.Equal(t, MimePNG, out.MimeType)
	})

	t.Run("corrupt data fails to decode", func(t *testing.T) {
		_, err := n.Normalize(ctx, Candidate{Name: "bad.png", MimeType: MimePNG, Data: []byte("not an image")})
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := n.Normalize(cctx, Candidate{Name: "a.png", MimeType: MimePNG, Data: testutil.PNG(4, 4)})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTargetSizeProperties(t *testing.T) {
	sizes := [][2]int{{1, 1}, {2000, 10}, {2001, 1000}, {4000, 3000}, {6000, 1}, {2500, 7000}, {1999, 1999}}
	for _, s := range sizes {
		w, h := TargetSize(s[0], s[1], DefaultMaxWidth)
		assert.LessOrEqual(t, w, DefaultMaxWidth)
		assert.GreaterOrEqual(t, h, 1)
		if s[0] > DefaultMaxWidth {
			want := math.Round(float64(DefaultMaxWidth) * float64(s[1]) / float64(s[0]))
			if want < 1 {
				want = 1
			}
			assert.Equal(t, int(want), h, "size %v", s)
		} else {
			assert.Equal(t, s[0], w)
			assert.Equal(t, s[1], h)
		}
	}
}

func TestStubModerator(t *testing.T) {
	m := StubModerator{Delay: 5 * time.Millisecond}
	v, err := m.Moderate(context.Background(), &Normalized{})
	require.NoError(t, err)
	assert.True(t, v.Approved)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = StubModerator{Delay: time.Second}.Moderate(ctx, &Normalized{})
	assert.ErrorIs(t, err, context.Canceled)
}
