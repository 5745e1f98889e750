package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/kozaktomas/faceid/internal/database"
	"github.com/kozaktomas/faceid/internal/matcher"
	"github.com/kozaktomas/faceid/internal/observability"
)

// MatchResponse is the result of matching an upload against one user.
type MatchResponse struct {
	Outcome  matcher.Outcome `json:"outcome"`
	Matched  bool            `json:"matched"`
	Distance *float64        `json:"distance"`
}

// IdentifyResponse is the result of searching all users.
type IdentifyResponse struct {
	Outcome  matcher.Outcome `json:"outcome"`
	UserID   *int64          `json:"user_id"`
	Distance *float64        `json:"distance"`
}

// Match compares the uploaded image with the stored faces of one user.
func (h *FacesHandler) Match(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	known, err := matcher.LoadKnownUser(r.Context(), h.store, userID)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrUserNotFound):
			respondError(w, http.StatusNotFound, database.ErrUserNotFound.Error())
		case errors.Is(err, database.ErrNoFaceData):
			respondError(w, http.StatusNotFound, database.ErrNoFaceData.Error())
		default:
			log.Printf("match user %d: %v", userID, err)
			respondError(w, http.StatusInternalServerError, "failed to load face data")
		}
		return
	}

	img, err := readUploadedImage(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.matcher.Match(r.Context(), known, img)
	if err != nil {
		log.Printf("match user %d: %v", userID, err)
		respondError(w, http.StatusBadGateway, "face embedding failed")
		return
	}

	observability.MatchOutcomes.WithLabelValues("match", string(res.Outcome)).Inc()
	respondJSON(w, http.StatusOK, MatchResponse{
		Outcome:  res.Outcome,
		Matched:  res.Outcome == matcher.Match,
		Distance: finite(res.Distance),
	})
}

// Identify finds the user whose stored faces are nearest to the uploaded image.
func (h *FacesHandler) Identify(w http.ResponseWriter, r *http.Request) {
	img, err := readUploadedImage(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.matcher.Identify(r.Context(), h.store, img)
	if err != nil {
		log.Printf("identify: %v", err)
		respondError(w, http.StatusInternalServerError, "identification failed")
		return
	}
	if len(res.Skipped) > 0 {
		log.Printf("identify: skipped users with unusable face data: %v", res.Skipped)
	}

	resp := IdentifyResponse{Outcome: res.Outcome, Distance: finite(res.Distance)}
	if res.Outcome == matcher.Match {
		id := res.UserID
		resp.UserID = &id
	}

	observability.MatchOutcomes.WithLabelValues("identify", string(res.Outcome)).Inc()
	respondJSON(w, http.StatusOK, resp)
}
