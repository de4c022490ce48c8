package testgen

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// GenerateImage renders a deterministic gradient of the given size. Formats:
// "image/jpeg", "image/png", "image/png+alpha" (translucent PNG) and
// "image/png+gray" (single channel PNG).
func GenerateImage(t *testing.T, format string, width, height int) []byte {
	t.Helper()

	bounds := image.Rect(0, 0, width, height)
	var img image.Image
	switch format {
	case "image/png+gray":
		gray := image.NewGray(bounds)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				gray.SetGray(x, y, color.Gray{Y: uint8((x + y) % 256)})
			}
		}
		img = gray
	default:
		alpha := uint8(255)
		if format == "image/png+alpha" {
			alpha = 128
		}
		rgba := image.NewNRGBA(bounds)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				rgba.SetNRGBA(x, y, color.NRGBA{
					R: uint8(x * 255 / max(width-1, 1)),
					G: uint8(y * 255 / max(height-1, 1)),
					B: 200,
					A: alpha,
				})
			}
		}
		img = rgba
	}

	var buf bytes.Buffer
	switch format {
	case "image/jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			t.Fatalf("failed to encode JPEG: %v", err)
		}
	default:
		if err := png.Encode(&buf, img); err != nil {
			t.Fatalf("failed to encode PNG: %v", err)
		}
	}

	return buf.Bytes()
}
