// Package faceembed wraps the external face detection and embedding capability.
package faceembed

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/kozaktomas/faceid/internal/config"
)

// ErrBackendUnavailable is returned when the configured backend was not compiled in.
var ErrBackendUnavailable = errors.New("face embedding backend not available in this build")

// Extractor returns the embedding of the first face found in an image.
// found is false, with a nil error, when the image contains no face.
type Extractor interface {
	FirstFace(ctx context.Context, img image.Image) (embedding []float32, found bool, err error)
	Close() error
}

// New creates the extractor selected by cfg.Backend.
func New(cfg *config.EmbeddingConfig) (Extractor, error) {
	switch cfg.Backend {
	case "", config.BackendHTTP:
		return NewHTTPExtractor(cfg.URL, cfg.MaxImageSide, cfg.Timeout), nil
	case config.BackendDlib:
		return NewDlibExtractor(cfg.ModelsDir, cfg.MaxImageSide)
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", cfg.Backend)
	}
}

// Func adapts a plain function to the Extractor interface.
type Func func(ctx context.Context, img image.Image) ([]float32, bool, error)

func (f Func) FirstFace(ctx context.Context, img image.Image) ([]float32, bool, error) {
	return f(ctx, img)
}

func (f Func) Close() error { return nil }
