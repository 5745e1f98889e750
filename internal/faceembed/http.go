package faceembed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/faceid/internal/imagedata"
)

const defaultEmbeddingURL = "http://localhost:8000"

// HTTPExtractor computes face embeddings using the embedding server's /embed/face endpoint.
type HTTPExtractor struct {
	baseURL      string
	maxImageSide int
	client       *http.Client
}

// NewHTTPExtractor creates a client for the embedding server at baseURL.
func NewHTTPExtractor(baseURL string, maxImageSide int, timeout time.Duration) *HTTPExtractor {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &HTTPExtractor{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		maxImageSide: maxImageSide,
		client:       &http.Client{Timeout: timeout},
	}
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// FirstFace sends the image as JPEG and returns the embedding of the face with the lowest index.
func (c *HTTPExtractor) FirstFace(ctx context.Context, img image.Image) ([]float32, bool, error) {
	jpegData, err := imagedata.EncodeJPEG(img, c.maxImageSide)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.ComputeFaceEmbeddings(ctx, jpegData)
	if err != nil {
		return nil, false, err
	}

	var first *FaceDetection
	for i := range resp.Faces {
		f := &resp.Faces[i]
		if len(f.Embedding) == 0 {
			continue
		}
		if first == nil || f.FaceIndex < first.FaceIndex {
			first = f
		}
	}
	if first == nil {
		return nil, false, nil
	}
	return first.Embedding, true, nil
}

// ComputeFaceEmbeddings detects faces and computes their embeddings
func (c *HTTPExtractor) ComputeFaceEmbeddings(ctx context.Context, jpegData []byte) (*FaceResponse, error) {
	body, err := c.postImage(ctx, "/embed/face", jpegData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &faceResp, nil
}

// postImage posts the JPEG as the multipart "file" field and returns the response body.
func (c *HTTPExtractor) postImage(ctx context.Context, endpoint string, jpegData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(jpegData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// Close releases idle connections.
func (c *HTTPExtractor) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
