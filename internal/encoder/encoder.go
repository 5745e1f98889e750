// Package encoder turns a user's face images into a stored embedding collection.
package encoder

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/faceid/internal/database"
	"github.com/kozaktomas/faceid/internal/faceembed"
	"github.com/kozaktomas/faceid/internal/imagedata"
	"github.com/kozaktomas/faceid/internal/npy"
)

// ErrNoFaces is returned when none of the images contained a face. Nothing is written.
var ErrNoFaces = errors.New("no face encodings found")

// Result summarizes a successful encode.
type Result struct {
	UserID   int64
	Images   int // rows read
	Faces    int // embeddings stored
	Dim      int // embedding length
	BlobSize int // bytes written to the face column
}

// Encoder extracts one embedding per image and stores the collection.
type Encoder struct {
	extractor faceembed.Extractor
	writer    database.FaceWriter
	inputDir  string

	// OnImage, if set, is called after each image is processed.
	OnImage func(index int, found bool)
}

// New creates an Encoder reading <inputDir>/<id>.txt files.
func New(extractor faceembed.Extractor, writer database.FaceWriter, inputDir string) *Encoder {
	return &Encoder{
		extractor: extractor,
		writer:    writer,
		inputDir:  inputDir,
	}
}

// EncodeUser reads the user's image file and encodes it.
func (e *Encoder) EncodeUser(ctx context.Context, userID int64) (*Result, error) {
	images, err := imagedata.ReadRowsFile(imagedata.RowsPath(e.inputDir, userID))
	if err != nil {
		return nil, err
	}
	return e.Encode(ctx, userID, images)
}

// Encode extracts the first face of every image and, if at least one face was
// found, overwrites the user's face data. Any image that fails to decode or
// extract aborts the run before the database is touched.
func (e *Encoder) Encode(ctx context.Context, userID int64, images [][]byte) (*Result, error) {
	embeddings, err := e.Extract(ctx, images)
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, ErrNoFaces
	}

	blob, err := npy.Marshal(embeddings)
	if err != nil {
		return nil, fmt.Errorf("serializing embeddings: %w", err)
	}

	if err := e.writer.SaveFaceData(ctx, userID, blob); err != nil {
		return nil, err
	}

	return &Result{
		UserID:   userID,
		Images:   len(images),
		Faces:    len(embeddings),
		Dim:      len(embeddings[0]),
		BlobSize: len(blob),
	}, nil
}

// Extract returns the embeddings of all images that contain a face, in input order.
func (e *Encoder) Extract(ctx context.Context, images [][]byte) ([][]float32, error) {
	var embeddings [][]float32
	for i, data := range images {
		img, _, err := imagedata.Decode(data)
		if err != nil {
			return nil, &imagedata.RowError{Row: i + 1, Err: err}
		}

		emb, found, err := e.extractor.FirstFace(ctx, img)
		if err != nil {
			return nil, &imagedata.RowError{Row: i + 1, Err: fmt.Errorf("extracting face: %w", err)}
		}
		if found {
			embeddings = append(embeddings, emb)
		}
		if e.OnImage != nil {
			e.OnImage(i, found)
		}
	}
	return embeddings, nil
}
