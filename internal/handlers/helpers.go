package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"phishguard-backend/internal/models"
)

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

// handleServiceError maps domain errors onto typed API responses. Anything
// unrecognized is an internal error; its detail goes to the log, not the
// client.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
	case errors.Is(err, models.ErrTemplateNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Template not found", r))
	case errors.Is(err, models.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
	case errors.Is(err, models.ErrJobNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Job not found", r))
	case errors.Is(err, models.ErrSessionConflict):
		writeJSON(w, http.StatusConflict, errorResp("SESSION_CONFLICT", "An active session already exists for this actor and template", r))
	case errors.Is(err, models.ErrInvalidState):
		writeJSON(w, http.StatusConflict, errorResp("INVALID_STATE", "Operation not allowed in the session's current state", r))
	case errors.Is(err, models.ErrInvalidStep):
		writeJSON(w, http.StatusConflict, errorResp("INVALID_STEP", "Interaction step does not match the expected step", r))
	default:
		log.Printf("❌ Internal error on %s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Something went wrong", r))
	}
}
