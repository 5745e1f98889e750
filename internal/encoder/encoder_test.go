package encoder

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/faceid/internal/database"
	"github.com/kozaktomas/faceid/internal/database/mock"
	"github.com/kozaktomas/faceid/internal/faceembed"
	"github.com/kozaktomas/faceid/internal/imagedata"
	"github.com/kozaktomas/faceid/internal/npy"
)

// Images whose top-left pixel is white "contain a face"; the embedding
// encodes the image width so tests can tell them apart.
func fakeExtractor() faceembed.Extractor {
	return faceembed.Func(func(ctx context.Context, img image.Image) ([]float32, bool, error) {
		r, _, _, _ := img.At(0, 0).RGBA()
		if r < 0x8000 {
			return nil, false, nil
		}
		w := float32(img.Bounds().Dx())
		return []float32{w, w / 2, 1}, true, nil
	})
}

func pngBytes(width int, c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, 8))
	for y := range 8 {
		for x := range width {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func faceImage(width int) []byte { return pngBytes(width, color.White) }
func emptyImage() []byte         { return pngBytes(8, color.Black) }

func TestEncode_StoresOnlyFaces(t *testing.T) {
	store := mock.NewMockStore(5)
	enc := New(fakeExtractor(), store, "")

	images := [][]byte{faceImage(10), emptyImage(), faceImage(20), emptyImage()}

	res, err := enc.Encode(context.Background(), 5, images)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if res.Images != 4 || res.Faces != 2 || res.Dim != 3 {
		t.Errorf("unexpected result %+v", res)
	}
	if store.Saves() != 1 {
		t.Errorf("expected exactly one write, got %d", store.Saves())
	}

	rows, err := npy.Unmarshal(store.FaceData(5))
	if err != nil {
		t.Fatalf("stored blob does not decode: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(rows))
	}
	if rows[0][0] != 10 || rows[1][0] != 20 {
		t.Errorf("embeddings out of order: %v", rows)
	}
	if res.BlobSize != len(store.FaceData(5)) {
		t.Errorf("BlobSize %d does not match stored %d bytes", res.BlobSize, len(store.FaceData(5)))
	}
}

func TestEncode_NoFacesNoWrite(t *testing.T) {
	store := mock.NewMockStore(5)
	enc := New(fakeExtractor(), store, "")

	_, err := enc.Encode(context.Background(), 5, [][]byte{emptyImage(), emptyImage()})
	if !errors.Is(err, ErrNoFaces) {
		t.Fatalf("expected ErrNoFaces, got %v", err)
	}
	if store.Saves() != 0 {
		t.Errorf("expected no writes, got %d", store.Saves())
	}
}

func TestEncode_EmptyInput(t *testing.T) {
	store := mock.NewMockStore(5)
	enc := New(fakeExtractor(), store, "")

	if _, err := enc.Encode(context.Background(), 5, nil); !errors.Is(err, ErrNoFaces) {
		t.Fatalf("expected ErrNoFaces, got %v", err)
	}
}

func TestEncode_MalformedImageAborts(t *testing.T) {
	store := mock.NewMockStore(5)
	enc := New(fakeExtractor(), store, "")

	images := [][]byte{faceImage(10), []byte("garbage text"), faceImage(30)}

	_, err := enc.Encode(context.Background(), 5, images)
	if err == nil {
		t.Fatal("expected error")
	}
	var rowErr *imagedata.RowError
	if !errors.As(err, &rowErr) || rowErr.Row != 2 {
		t.Errorf("expected RowError for row 2, got %v", err)
	}
	if store.Saves() != 0 {
		t.Errorf("expected no writes after processing error, got %d", store.Saves())
	}
}

func TestEncode_ExtractorErrorAborts(t *testing.T) {
	store := mock.NewMockStore(5)
	boom := errors.New("model crashed")
	calls := 0
	ext := faceembed.Func(func(ctx context.Context, img image.Image) ([]float32, bool, error) {
		calls++
		if calls == 2 {
			return nil, false, boom
		}
		return []float32{1}, true, nil
	})
	enc := New(ext, store, "")

	_, err := enc.Encode(context.Background(), 5, [][]byte{faceImage(10), faceImage(10), faceImage(10)})
	if !errors.Is(err, boom) {
		t.Fatalf("expected extractor error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected processing to stop at the failing image, got %d calls", calls)
	}
	if store.Saves() != 0 {
		t.Errorf("expected no writes, got %d", store.Saves())
	}
}

func TestEncode_DatabaseErrors(t *testing.T) {
	t.Run("unknown user", func(t *testing.T) {
		store := mock.NewMockStore()
		enc := New(fakeExtractor(), store, "")
		_, err := enc.Encode(context.Background(), 9, [][]byte{faceImage(10)})
		if !errors.Is(err, database.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("write fails", func(t *testing.T) {
		store := mock.NewMockStore(9)
		store.SaveError = errors.New("connection refused")
		enc := New(fakeExtractor(), store, "")
		_, err := enc.Encode(context.Background(), 9, [][]byte{faceImage(10)})
		if err == nil || !strings.Contains(err.Error(), "connection refused") {
			t.Errorf("expected database error, got %v", err)
		}
	})
}

func TestEncode_OnImage(t *testing.T) {
	store := mock.NewMockStore(1)
	enc := New(fakeExtractor(), store, "")

	var seen []bool
	enc.OnImage = func(index int, found bool) { seen = append(seen, found) }

	if _, err := enc.Encode(context.Background(), 1, [][]byte{faceImage(10), emptyImage()}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(seen) != 2 || !seen[0] || seen[1] {
		t.Errorf("unexpected progress callbacks %v", seen)
	}
}

func TestEncodeUser_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := imagedata.WriteRowsFile(dir, 3, [][]byte{faceImage(12), emptyImage()}); err != nil {
		t.Fatalf("WriteRowsFile failed: %v", err)
	}

	store := mock.NewMockStore(3)
	enc := New(fakeExtractor(), store, dir)

	res, err := enc.EncodeUser(context.Background(), 3)
	if err != nil {
		t.Fatalf("EncodeUser failed: %v", err)
	}
	if res.Faces != 1 {
		t.Errorf("expected 1 face, got %d", res.Faces)
	}
}

func TestEncodeUser_PNGRowAndGarbageRow(t *testing.T) {
	dir := t.TempDir()
	content := imagedata.FormatRow(faceImage(10)) + "\nthis is not an image\n"
	if err := os.WriteFile(filepath.Join(dir, "4.txt"), []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}

	store := mock.NewMockStore(4)
	enc := New(fakeExtractor(), store, dir)

	if _, err := enc.EncodeUser(context.Background(), 4); err == nil {
		t.Fatal("expected processing error")
	}
	if store.Saves() != 0 {
		t.Errorf("expected no writes, got %d", store.Saves())
	}
}

func TestEncodeUser_BlankRowFailsRun(t *testing.T) {
	dir := t.TempDir()
	content := imagedata.FormatRow(faceImage(10)) + "\n\n" + imagedata.FormatRow(faceImage(20)) + "\n"
	if err := os.WriteFile(filepath.Join(dir, "5.txt"), []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}

	store := mock.NewMockStore(5)
	enc := New(fakeExtractor(), store, dir)

	_, err := enc.EncodeUser(context.Background(), 5)
	var rowErr *imagedata.RowError
	if !errors.As(err, &rowErr) || rowErr.Row != 2 {
		t.Fatalf("expected RowError for row 2, got %v", err)
	}
	if store.Saves() != 0 {
		t.Errorf("expected no writes, got %d", store.Saves())
	}
}

func TestEncodeUser_MissingFile(t *testing.T) {
	enc := New(fakeExtractor(), mock.NewMockStore(1), t.TempDir())
	if _, err := enc.EncodeUser(context.Background(), 1); err == nil {
		t.Fatal("expected error for missing input file")
	}
}
