package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/faceid/internal/config"
	"github.com/kozaktomas/faceid/internal/database/mock"
	"github.com/kozaktomas/faceid/internal/faceembed"
	"github.com/kozaktomas/faceid/internal/facematch"
	"github.com/kozaktomas/faceid/internal/matcher"
	"github.com/kozaktomas/faceid/internal/npy"
)

// testConfig creates a minimal config for testing
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Input: config.InputConfig{Dir: t.TempDir()},
		Match: config.MatchConfig{
			Metric:    config.MetricEuclidean,
			Tolerance: 0.6,
			Neighbors: 10,
		},
	}
}

// fakeExtractor finds a face when the top-left pixel is white; the embedding
// is derived from the image width.
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

// newTestHandler creates a FacesHandler backed by a mock store.
func newTestHandler(t *testing.T, store *mock.MockStore, extractor faceembed.Extractor) *FacesHandler {
	t.Helper()
	if extractor == nil {
		extractor = fakeExtractor()
	}
	m := matcher.New(extractor, facematch.Euclidean, 0.6, 10)
	return NewFacesHandler(testConfig(t), store, extractor, m)
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

// storedFaces serializes embeddings the way the encoder stores them.
func storedFaces(t *testing.T, widths ...float32) []byte {
	t.Helper()
	rows := make([][]float32, len(widths))
	for i, w := range widths {
		rows[i] = []float32{w, w / 2, 1}
	}
	data, err := npy.Marshal(rows)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	return data
}

// multipartRequest builds a request with data as the "file" form field.
func multipartRequest(t *testing.T, method, path string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != nil {
		fw, err := mw.CreateFormFile("file", "probe.png")
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		fw.Write(data)
	}
	mw.Close()

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
