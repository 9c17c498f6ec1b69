package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Gallery raster defaults, in CSS pixels before scaling.
const (
	DefaultGalleryColumns = 3
	DefaultTileSize       = 240
	DefaultGalleryScale   = 2
	galleryPadding        = 16
	captionStrip          = 28
)

var (
	tileBackground = color.RGBA{R: 0xF3, G: 0xF4, B: 0xF6, A: 0xFF}
	captionColor   = color.RGBA{R: 0x37, G: 0x41, B: 0x51, A: 0xFF}
	placeholderInk = color.RGBA{R: 0x9C, G: 0xA3, B: 0xAF, A: 0xFF}
)

// GalleryRenderer rasterizes the gallery grid to a PNG.
type GalleryRenderer struct {
	Columns int
	Tile    int
	Scale   int
}

// NewGalleryRenderer creates a renderer with a 3 column grid at 2x.
func NewGalleryRenderer() *GalleryRenderer {
	return &GalleryRenderer{Columns: DefaultGalleryColumns, Tile: DefaultTileSize, Scale: DefaultGalleryScale}
}

// Format implements Renderer.
func (r *GalleryRenderer) Format() Format { return FormatPNG }

// Render implements Renderer. An empty gallery has nothing to capture and
// fails with ErrRegionNotFound.
func (r *GalleryRenderer) Render(ctx context.Context, in Input) (*Output, error) {
	if len(in.Media) == 0 {
		return nil, ErrRegionNotFound
	}
	img, err := r.Rasterize(ctx, in)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode gallery: %w", err)
	}
	return &Output{
		FileName:    SanitizeTitle(in.Project.Title) + "-gallery.png",
		ContentType: "image/png",
		Data:        buf.Bytes(),
		Pages:       1,
	}, nil
}

// Rasterize draws the grid directly at the output scale so images keep
// their full resolution. Layout constants are in unscaled pixels.
func (r *GalleryRenderer) Rasterize(ctx context.Context, in Input) (*image.RGBA, error) {
	cols, tile, scale := r.Columns, r.Tile, r.Scale
	if cols <= 0 {
		cols = DefaultGalleryColumns
	}
	if tile <= 0 {
		tile = DefaultTileSize
	}
	if scale <= 0 {
		scale = 1
	}
	if cols > len(in.Media) {
		cols = len(in.Media)
	}
	rows := ceilDiv(len(in.Media), cols)

	width := cols*tile + (cols+1)*galleryPadding
	height := rows*(tile+captionStrip) + (rows+1)*galleryPadding
	out := image.NewRGBA(image.Rect(0, 0, width*scale, height*scale))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)

	for i, m := range in.Media {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		col, row := i%cols, i/cols
		x := galleryPadding + col*(tile+galleryPadding)
		y := galleryPadding + row*(tile+captionStrip+galleryPadding)
		cell := image.Rect(x*scale, y*scale, (x+tile)*scale, (y+tile)*scale)
		draw.Draw(out, cell, image.NewUniform(tileBackground), image.Point{}, draw.Src)

		src, err := decodeMedia(ctx, in.Resolve, m)
		if err != nil {
			drawLabel(out, "Image unavailable", x, y+tile/2, tile, scale, placeholderInk)
		} else {
			draw.CatmullRom.Scale(out, fitRect(cell, src.Bounds()), src, src.Bounds(), draw.Over, nil)
		}
		drawLabel(out, m.DisplayCaption(), x, y+tile+captionStrip/2, tile, scale, captionColor)
	}
	return out, nil
}

// fitRect returns the largest rectangle with src's aspect ratio centred in cell.
func fitRect(cell, src image.Rectangle) image.Rectangle {
	cw, ch := cell.Dx(), cell.Dy()
	sw, sh := src.Dx(), src.Dy()
	if sw == 0 || sh == 0 {
		return cell
	}
	w, h := cw, sh*cw/sw
	if h > ch {
		h = ch
		w = sw * ch / sh
	}
	x := cell.Min.X + (cw-w)/2
	y := cell.Min.Y + (ch-h)/2
	return image.Rect(x, y, x+w, y+h)
}

// drawLabel writes text centred horizontally in a box of the given width,
// with midY as the vertical centre. Coordinates are unscaled; the bitmap
// font is drawn at 1x and enlarged by scale. Text that does not fit is
// shortened.
func drawLabel(dst *image.RGBA, text string, x, midY, width, scale int, ink color.Color) {
	face := basicfont.Face7x13
	text = fitText(face, text, width-8)

	metrics := face.Metrics()
	lineHeight := (metrics.Ascent + metrics.Descent).Ceil()
	label := image.NewRGBA(image.Rect(0, 0, width, lineHeight))

	d := &font.Drawer{Dst: label, Src: image.NewUniform(ink), Face: face}
	adv := d.MeasureString(text).Ceil()
	d.Dot = fixed.P((width-adv)/2, metrics.Ascent.Ceil())
	d.DrawString(text)

	top := midY - lineHeight/2
	target := image.Rect(x*scale, top*scale, (x+width)*scale, (top+lineHeight)*scale)
	draw.NearestNeighbor.Scale(dst, target, label, label.Bounds(), draw.Over, nil)
}

func fitText(face font.Face, text string, width int) string {
	if font.MeasureString(face, text).Ceil() <= width {
		return text
	}
	runes := []rune(text)
	for n := len(runes) - 1; n > 0; n-- {
		candidate := string(runes[:n]) + "..."
		if font.MeasureString(face, candidate).Ceil() <= width {
			return candidate
		}
	}
	return "..."
}
