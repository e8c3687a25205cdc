package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/swingfinder/festival-finder/pkg/errors"
)

// envelope is the body of every API response
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("Failed to write response body")
	}
}

func respondWithData(w http.ResponseWriter, data interface{}) {
	respondWithJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, envelope{Success: false, Error: message})
}

// respondWithAppError maps err onto a status code. Unavailable errors
// carry Retry-After so clients can back off.
func respondWithAppError(w http.ResponseWriter, err error) {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeUnavailable:
		w.Header().Set("Retry-After", "5")
		respondWithError(w, http.StatusServiceUnavailable, "search is temporarily unavailable, please try again")
	case apperrors.ErrorTypeValidation:
		respondWithError(w, http.StatusBadRequest, apperrors.PublicMessage(err, "invalid request"))
	case apperrors.ErrorTypeNotFound:
		respondWithError(w, http.StatusNotFound, apperrors.PublicMessage(err, "not found"))
	default:
		log.Error().Err(err).Msg("Request failed")
		respondWithError(w, http.StatusInternalServerError, apperrors.PublicMessage(err, "internal server error"))
	}
}
