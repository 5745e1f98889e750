// Package imagedata turns the line-oriented image files written by the backend
// into decoded images.
package imagedata

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrEmptyImage is returned for a zero-length image.
	ErrEmptyImage = errors.New("empty image data")
	// ErrUndecodable is returned when no registered codec accepts the data.
	ErrUndecodable = errors.New("failed to decode image")
)

const jpegQuality = 95

// Decode decodes an encoded image. The format name is the one registered
// with the image package (jpeg, png, gif, bmp, tiff, webp).
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return img, format, nil
}

// EncodeJPEG downscales img so its longer side is at most maxSide (0 disables
// scaling) and encodes it as JPEG.
func EncodeJPEG(img image.Image, maxSide int) ([]byte, error) {
	img = Fit(img, maxSide)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Fit returns img unchanged when it already fits in maxSide x maxSide,
// otherwise a proportionally scaled copy.
func Fit(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img
	}

	var newW, newH int
	if w >= h {
		newW = maxSide
		newH = max(1, h*maxSide/w)
	} else {
		newH = maxSide
		newW = max(1, w*maxSide/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
