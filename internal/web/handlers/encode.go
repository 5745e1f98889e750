package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/kozaktomas/faceid/internal/constants"
	"github.com/kozaktomas/faceid/internal/database"
	"github.com/kozaktomas/faceid/internal/encoder"
	"github.com/kozaktomas/faceid/internal/imagedata"
	"github.com/kozaktomas/faceid/internal/observability"
)

// EncodeRequest carries base64-encoded image files.
type EncodeRequest struct {
	Images []string `json:"images"`
}

// EncodeResponse summarizes a stored collection.
type EncodeResponse struct {
	UserID int64 `json:"user_id"`
	Images int   `json:"images"`
	Faces  int   `json:"faces"`
	Dim    int   `json:"dim"`
}

// Encode spools the uploaded images to <input-dir>/<id>.txt and encodes them
// into the user's face column.
func (h *FacesHandler) Encode(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req EncodeRequest
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxEncodeBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Images) == 0 {
		respondError(w, http.StatusBadRequest, "images are required")
		return
	}

	images := make([][]byte, len(req.Images))
	for i, s := range req.Images {
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("image %d is not valid base64", i+1))
			return
		}
		images[i] = data
	}

	unlock := h.locks.Lock(userID)
	defer unlock()

	if _, err := imagedata.WriteRowsFile(h.config.Input.Dir, userID, images); err != nil {
		log.Printf("encode user %d: %v", userID, err)
		observability.EncodeRuns.WithLabelValues(observability.ResultError).Inc()
		respondError(w, http.StatusInternalServerError, "failed to store images")
		return
	}

	enc := encoder.New(h.extractor, h.store, h.config.Input.Dir)
	res, err := enc.EncodeUser(r.Context(), userID)
	if err != nil {
		status, msg := encodeErrorStatus(err)
		result := observability.ResultError
		if errors.Is(err, encoder.ErrNoFaces) {
			result = observability.ResultNoFaces
		}
		observability.EncodeRuns.WithLabelValues(result).Inc()
		if status >= http.StatusInternalServerError {
			log.Printf("encode user %d: %v", userID, err)
		}
		respondError(w, status, msg)
		return
	}

	observability.EncodeRuns.WithLabelValues(observability.ResultSuccess).Inc()
	respondJSON(w, http.StatusOK, EncodeResponse{
		UserID: res.UserID,
		Images: res.Images,
		Faces:  res.Faces,
		Dim:    res.Dim,
	})
}

func encodeErrorStatus(err error) (int, string) {
	var rowErr *imagedata.RowError
	switch {
	case errors.Is(err, encoder.ErrNoFaces):
		return http.StatusUnprocessableEntity, encoder.ErrNoFaces.Error()
	case errors.Is(err, database.ErrUserNotFound):
		return http.StatusNotFound, database.ErrUserNotFound.Error()
	case errors.Is(err, imagedata.ErrUndecodable), errors.Is(err, imagedata.ErrEmptyImage):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &rowErr):
		return http.StatusBadGateway, fmt.Sprintf("image %d: face embedding failed", rowErr.Row)
	default:
		return http.StatusInternalServerError, "failed to encode faces"
	}
}
