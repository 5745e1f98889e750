package handlers

import (
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/faceid/internal/database/mock"
	"github.com/kozaktomas/faceid/internal/faceembed"
	"github.com/kozaktomas/faceid/internal/matcher"
)

func matchRequest(t *testing.T, userID string, data []byte) *http.Request {
	t.Helper()
	req := multipartRequest(t, "POST", "/api/v1/users/"+userID+"/match", data)
	return requestWithChiParams(req, map[string]string{"id": userID})
}

func TestFacesHandler_Match(t *testing.T) {
	tests := []struct {
		name        string
		upload      []byte
		wantOutcome matcher.Outcome
		wantMatched bool
		wantDist    bool
	}{
		{"same face", faceImage(10), matcher.Match, true, true},
		{"different face", faceImage(30), matcher.NoMatch, false, true},
		{"no face", emptyImage(), matcher.NoFace, false, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := mock.NewMockStore(1)
			store.SetFaceData(1, storedFaces(t, 10, 11))
			handler := newTestHandler(t, store, nil)

			recorder := httptest.NewRecorder()
			handler.Match(recorder, matchRequest(t, "1", tc.upload))

			assertStatusCode(t, recorder, http.StatusOK)
			var resp MatchResponse
			parseJSONResponse(t, recorder, &resp)
			if resp.Outcome != tc.wantOutcome {
				t.Errorf("expected outcome %s, got %s", tc.wantOutcome, resp.Outcome)
			}
			if resp.Matched != tc.wantMatched {
				t.Errorf("expected matched %v, got %v", tc.wantMatched, resp.Matched)
			}
			if (resp.Distance != nil) != tc.wantDist {
				t.Errorf("unexpected distance %v", resp.Distance)
			}
		})
	}
}

func TestFacesHandler_Match_Errors(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		upload     []byte
		wantStatus int
		wantErr    string
	}{
		{"unknown user", "9", faceImage(10), http.StatusNotFound, "user not found"},
		{"no face data", "2", faceImage(10), http.StatusNotFound, "user has no face data"},
		{"missing file", "1", nil, http.StatusBadRequest, "missing file"},
		{"invalid user id", "x", faceImage(10), http.StatusBadRequest, `invalid user id "x"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := mock.NewMockStore(1, 2)
			store.SetFaceData(1, storedFaces(t, 10))
			handler := newTestHandler(t, store, nil)

			recorder := httptest.NewRecorder()
			handler.Match(recorder, matchRequest(t, tc.userID, tc.upload))

			assertStatusCode(t, recorder, tc.wantStatus)
			assertJSONError(t, recorder, tc.wantErr)
		})
	}
}

func TestFacesHandler_Match_UndecodableUpload(t *testing.T) {
	store := mock.NewMockStore(1)
	store.SetFaceData(1, storedFaces(t, 10))
	handler := newTestHandler(t, store, nil)

	recorder := httptest.NewRecorder()
	handler.Match(recorder, matchRequest(t, "1", []byte("not an image")))

	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestFacesHandler_Match_ExtractorFailure(t *testing.T) {
	store := mock.NewMockStore(1)
	store.SetFaceData(1, storedFaces(t, 10))
	failing := faceembed.Func(func(ctx context.Context, img image.Image) ([]float32, bool, error) {
		return nil, false, errors.New("timeout")
	})
	handler := newTestHandler(t, store, failing)

	recorder := httptest.NewRecorder()
	handler.Match(recorder, matchRequest(t, "1", faceImage(10)))

	assertStatusCode(t, recorder, http.StatusBadGateway)
	assertJSONError(t, recorder, "face embedding failed")
}

func TestFacesHandler_Identify(t *testing.T) {
	store := mock.NewMockStore(1, 2, 3)
	store.SetFaceData(1, storedFaces(t, 10))
	store.SetFaceData(2, storedFaces(t, 40, 41))
	store.SetFaceData(3, []byte("corrupt"))
	handler := newTestHandler(t, store, nil)

	recorder := httptest.NewRecorder()
	handler.Identify(recorder, multipartRequest(t, "POST", "/api/v1/identify", faceImage(41)))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp IdentifyResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Outcome != matcher.Match {
		t.Fatalf("expected match, got %s", resp.Outcome)
	}
	if resp.UserID == nil || *resp.UserID != 2 {
		t.Errorf("expected user 2, got %v", resp.UserID)
	}
	if resp.Distance == nil || *resp.Distance != 0 {
		t.Errorf("expected distance 0, got %v", resp.Distance)
	}
}

func TestFacesHandler_Identify_NoMatch(t *testing.T) {
	store := mock.NewMockStore(1)
	store.SetFaceData(1, storedFaces(t, 10))
	handler := newTestHandler(t, store, nil)

	recorder := httptest.NewRecorder()
	handler.Identify(recorder, multipartRequest(t, "POST", "/api/v1/identify", faceImage(80)))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp IdentifyResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Outcome != matcher.NoMatch || resp.UserID != nil {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestFacesHandler_Identify_DatabaseFailure(t *testing.T) {
	store := mock.NewMockStore()
	store.ListError = errors.New("connection reset")
	handler := newTestHandler(t, store, nil)

	recorder := httptest.NewRecorder()
	handler.Identify(recorder, multipartRequest(t, "POST", "/api/v1/identify", faceImage(10)))

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "identification failed")
}
