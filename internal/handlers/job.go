package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"phishguard-backend/internal/repository"
)

type JobHandler struct {
	jobRepo      *repository.JobRepo
	deliveryRepo *repository.DeliveryRepo
}

func NewJobHandler(jobRepo *repository.JobRepo, deliveryRepo *repository.DeliveryRepo) *JobHandler {
	return &JobHandler{jobRepo: jobRepo, deliveryRepo: deliveryRepo}
}

// GetJob returns a dispatch job and, once it has run, the per-recipient
// delivery results.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid job ID", r))
		return
	}

	job, err := h.jobRepo.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	response := map[string]interface{}{"job": job}
	if job.Status == "completed" || job.Status == "failed" {
		if results, err := h.deliveryRepo.ListByJob(r.Context(), job.ID); err == nil {
			response["deliveries"] = results
		}
	}

	writeJSON(w, http.StatusOK, response)
}
