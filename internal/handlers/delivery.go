package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"phishguard-backend/internal/delivery"
	"phishguard-backend/internal/middleware"
	"phishguard-backend/internal/models"
	"phishguard-backend/internal/repository"
)

type DeliveryHandler struct {
	dispatcher *delivery.Dispatcher
	jobRepo    *repository.JobRepo
	redis      *redis.Client
}

func NewDeliveryHandler(dispatcher *delivery.Dispatcher, jobRepo *repository.JobRepo, redisClient *redis.Client) *DeliveryHandler {
	return &DeliveryHandler{
		dispatcher: dispatcher,
		jobRepo:    jobRepo,
		redis:      redisClient,
	}
}

type sendRequest struct {
	Recipient models.Recipient       `json:"recipient"`
	Artifact  models.ContentArtifact `json:"artifact"`
}

func (h *DeliveryHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Recipient.Address == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Recipient address is required", r))
		return
	}

	result := h.dispatcher.SendSingle(r.Context(), req.Recipient, &req.Artifact)
	writeJSON(w, http.StatusOK, result)
}

type bulkRequest struct {
	Recipients []models.Recipient     `json:"recipients"`
	Artifact   models.ContentArtifact `json:"artifact"`
}

func (h *DeliveryHandler) SendBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if len(req.Recipients) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "At least one recipient is required", r))
		return
	}

	result := h.dispatcher.SendBulk(r.Context(), req.Recipients, &req.Artifact)
	writeJSON(w, http.StatusOK, result)
}

// EnqueueCampaign creates a campaign-dispatch job and hands it to the worker
// queue. Content generation and fan-out happen asynchronously.
func (h *DeliveryHandler) EnqueueCampaign(w http.ResponseWriter, r *http.Request) {
	var config models.CampaignConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if config.TemplateID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "template_id is required", r))
		return
	}
	if !config.Channel.Valid() || !config.Urgency.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid channel or urgency", r))
		return
	}
	if len(config.Recipients) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "At least one recipient is required", r))
		return
	}

	configBytes, _ := json.Marshal(config)

	job := &models.Job{
		ActorID:     middleware.GetActorID(r.Context()),
		Type:        "campaign-dispatch",
		ReferenceID: config.TemplateID,
		ConfigJSON:  configBytes,
	}

	if err := h.jobRepo.Create(r.Context(), job); err != nil {
		handleServiceError(w, r, err)
		return
	}

	jobBytes, _ := json.Marshal(job)
	h.redis.LPush(r.Context(), "queue:campaign-dispatch", string(jobBytes))

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":     job.ID,
		"recipients": len(config.Recipients),
	})
}
