package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
)

// Gradient returns a w x h RGBA image with a simple colour gradient.
func Gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / maxInt(w, 1)),
				G: uint8((y * 255) / maxInt(h, 1)),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

// PNG encodes a gradient image of the given size.
func PNG(w, h int) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, Gradient(w, h)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// JPEG encodes a gradient image of the given size.
func JPEG(w, h int) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Gradient(w, h), &jpeg.Options{Quality: 80}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// JPEGWithEXIF returns a JPEG carrying an APP1 Exif segment right after SOI.
func JPEGWithEXIF(w, h int) []byte {
	plain := JPEG(w, h)
	payload := append([]byte("Exif\x00\x00"), []byte("MM\x00\x2aGPS-SECRET-LOCATION")...)
	length := len(payload) + 2
	segment := []byte{0xFF, 0xE1, byte(length >> 8), byte(length)}
	segment = append(segment, payload...)

	out := make([]byte, 0, len(plain)+len(segment))
	out = append(out, plain[:2]...)
	out = append(out, segment...)
	out = append(out, plain[2:]...)
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
