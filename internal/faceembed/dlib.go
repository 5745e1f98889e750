//go:build dlib

package faceembed

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/Kagami/go-face"
	"github.com/kozaktomas/faceid/internal/imagedata"
)

// DlibExtractor runs dlib's ResNet face recognition model in-process.
type DlibExtractor struct {
	mu           sync.Mutex // the recognizer is not safe for concurrent use
	rec          *face.Recognizer
	maxImageSide int
}

// NewDlibExtractor loads the dlib models from modelsDir
// (shape_predictor_5_face_landmarks.dat, dlib_face_recognition_resnet_model_v1.dat,
// mmod_human_face_detector.dat).
func NewDlibExtractor(modelsDir string, maxImageSide int) (Extractor, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load recognizer from %s: %w", modelsDir, err)
	}
	return &DlibExtractor{rec: rec, maxImageSide: maxImageSide}, nil
}

// FirstFace returns the 128-d descriptor of the first detected face.
func (d *DlibExtractor) FirstFace(ctx context.Context, img image.Image) ([]float32, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	// go-face only accepts JPEG input.
	jpegData, err := imagedata.EncodeJPEG(img, d.maxImageSide)
	if err != nil {
		return nil, false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// RecognizeSingle reports no face for images with several faces.
	faces, err := d.rec.Recognize(jpegData)
	if err != nil {
		return nil, false, fmt.Errorf("failed to recognize image: %w", err)
	}
	emb, ok := firstDescriptor(faces)
	return emb, ok, nil
}

// firstDescriptor copies the descriptor of the first detection. go-face sorts
// detections from left to right.
func firstDescriptor(faces []face.Face) ([]float32, bool) {
	if len(faces) == 0 {
		return nil, false
	}
	emb := make([]float32, len(faces[0].Descriptor))
	copy(emb, faces[0].Descriptor[:])
	return emb, true
}

func (d *DlibExtractor) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rec.Close()
	return nil
}
