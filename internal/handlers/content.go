package handlers

import (
	"encoding/json"
	"net/http"

	"phishguard-backend/internal/models"
	"phishguard-backend/internal/provider"
)

type ContentHandler struct {
	provider provider.ContentProvider
}

func NewContentHandler(contentProvider provider.ContentProvider) *ContentHandler {
	return &ContentHandler{provider: contentProvider}
}

func (h *ContentHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req provider.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	artifact, err := h.provider.Generate(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, artifact)
}

func (h *ContentHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req provider.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	analysis, err := h.provider.AnalyzeResponse(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

func (h *ContentHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	detection, err := h.provider.Detect(r.Context(), req.Text)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, detection)
}

func (h *ContentHandler) Educational(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic      string            `json:"topic"`
		Difficulty models.Difficulty `json:"difficulty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Difficulty == "" {
		req.Difficulty = models.DifficultyBeginner
	}

	content, err := h.provider.GenerateEducational(r.Context(), req.Topic, req.Difficulty)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, content)
}
