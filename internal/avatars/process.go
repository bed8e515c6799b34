package avatars

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register gif
	"image/jpeg"
	_ "image/png" // register png
	"io"

	"golang.org/x/image/draw"
)

var (
	// ErrUnsupportedImage is returned for uploads that are not JPEG, PNG or GIF.
	ErrUnsupportedImage = errors.New("unsupported image format, use JPEG, PNG or GIF")
	// ErrTooLarge is returned when an upload exceeds the byte or pixel limits.
	ErrTooLarge = errors.New("image is too large")
	// ErrEmptyImage is returned for zero-length uploads.
	ErrEmptyImage = errors.New("image is empty")
)

// maxSourcePixels caps decoded dimensions so a tiny file cannot expand into a huge bitmap.
const maxSourcePixels = 40_000_000

// Options controls how uploads are normalized.
type Options struct {
	MaxBytes int64
	Edge     int
	Quality  int
}

// Process reads an uploaded image, centre-crops it to a square, scales it
// down to at most opts.Edge pixels and re-encodes it as JPEG.
func Process(r io.Reader, opts Options) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if int64(len(data)) > opts.MaxBytes {
		return nil, ErrTooLarge
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrUnsupportedImage
	}
	if cfg.Width*cfg.Height > maxSourcePixels {
		return nil, ErrTooLarge
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrUnsupportedImage
	}

	crop := squareCrop(src.Bounds())
	edge := opts.Edge
	if crop.Dx() < edge {
		edge = crop.Dx()
	}

	dst := image.NewRGBA(image.Rect(0, 0, edge, edge))
	// JPEG has no alpha, so transparent areas become white instead of black.
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, crop, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return out.Bytes(), nil
}

func squareCrop(b image.Rectangle) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	if w > h {
		off := (w - h) / 2
		return image.Rect(b.Min.X+off, b.Min.Y, b.Min.X+off+h, b.Max.Y)
	}
	off := (h - w) / 2
	return image.Rect(b.Min.X, b.Min.Y+off, b.Max.X, b.Min.Y+off+w)
}
