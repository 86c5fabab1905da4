// Package logo turns uploaded images into the round badge printed in the
// invoice header.
package logo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // decoder registration
	_ "image/jpeg"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // decoder registration
)

// Size is the edge length in pixels of a processed logo
const Size = 70

// maxPixels bounds the decoded image area
const maxPixels = 40_000_000

var (
	// ErrEmpty is returned when no image data was uploaded
	ErrEmpty = errors.New("logo is empty")
	// ErrTooLarge is returned when the upload exceeds the configured limit
	ErrTooLarge = errors.New("logo file is too large")
	// ErrUnsupportedFormat is returned for data that is not PNG, JPEG, GIF or WebP
	ErrUnsupportedFormat = errors.New("logo must be a PNG, JPEG, GIF or WebP image")
)

// Process decodes an uploaded image, crops it to a centered square, scales it
// to Size x Size, masks it to a circle and returns it encoded as PNG.
func Process(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read logo: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d pixels", ErrTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Circle(src, Size)); err != nil {
		return nil, fmt.Errorf("encode logo: %w", err)
	}
	return buf.Bytes(), nil
}

// Circle returns a size x size image of src's centered square with
// everything outside the inscribed circle transparent.
func Circle(src image.Image, size int) *image.NRGBA {
	scaled := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, centerSquare(src.Bounds()), draw.Src, nil)

	out := image.NewNRGBA(scaled.Bounds())
	draw.DrawMask(out, out.Bounds(), scaled, image.Point{}, circleMask(size), image.Point{}, draw.Src)
	return out
}

func centerSquare(b image.Rectangle) image.Rectangle {
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	return image.Rect(x0, y0, x0+side, y0+side)
}

// circleMask is an alpha mask of the inscribed circle with a one pixel
// anti-aliased edge.
func circleMask(size int) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, size, size))
	radius := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx := float64(x) + 0.5 - radius
			dy := float64(y) + 0.5 - radius
			coverage := radius - math.Sqrt(dx*dx+dy*dy) + 0.5
			switch {
			case coverage >= 1:
				mask.Pix[y*mask.Stride+x] = 0xff
			case coverage > 0:
				mask.Pix[y*mask.Stride+x] = uint8(coverage * 0xff)
			}
		}
	}
	return mask
}
