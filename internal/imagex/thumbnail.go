// Package imagex builds the small inline thumbnails shown in the upload
// history.
package imagex

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxSide = 256
	jpegQuality    = 80
)

// Thumbnail decodes data and returns a JPEG whose longer side is at most
// maxSide, preserving the aspect ratio. Images already small enough are
// re-encoded at their own size.
func Thumbnail(data []byte, maxSide int) ([]byte, error) {
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := src.Bounds()
	w, h := fit(b.Dx(), b.Dy(), maxSide)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	// transparent regions become white instead of black in the JPEG
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

func fit(w, h, maxSide int) (int, int) {
	if w <= 0 || h <= 0 {
		return 1, 1
	}
	if w <= maxSide && h <= maxSide {
		return w, h
	}
	if w >= h {
		return maxSide, max(1, h*maxSide/w)
	}
	return max(1, w*maxSide/h), maxSide
}

// DataURL encodes data as an inline data: URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
