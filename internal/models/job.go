package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Job struct {
	ID           uuid.UUID       `json:"id"`
	ActorID      uuid.UUID       `json:"actor_id"`
	Type         string          `json:"type"` // "campaign-dispatch"
	ReferenceID  uuid.UUID       `json:"reference_id"`
	ConfigJSON   json.RawMessage `json:"config"`
	Status       string          `json:"status"` // "pending" | "processing" | "completed" | "failed"
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	ErrorMessage *string         `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// CampaignConfig is the payload of a campaign-dispatch job.
type CampaignConfig struct {
	TemplateID uuid.UUID   `json:"template_id"`
	Channel    Channel     `json:"channel"`
	Urgency    Urgency     `json:"urgency"`
	Recipients []Recipient `json:"recipients"`
}

// Realtime event types published per session topic.
const (
	EventSessionStarted     = "session.started"
	EventSessionInteraction = "session.interaction"
	EventSessionCompleted   = "session.completed"
	EventSessionAbandoned   = "session.abandoned"
	EventCampaignUpdate     = "campaign.update"
)

// SessionEvent is the envelope published to realtime subscribers.
type SessionEvent struct {
	Type      string      `json:"type"`
	SessionID uuid.UUID   `json:"session_id"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// InteractionEvent is the payload of a session.interaction event.
type InteractionEvent struct {
	StepIndex int  `json:"step_index"`
	Correct   bool `json:"correct"`
	Remaining int  `json:"remaining_steps"`
}

// CompletedEvent is the payload of a session.completed event.
type CompletedEvent struct {
	Score  int  `json:"score"`
	NoData bool `json:"no_data"`
}

// CampaignEvent is the payload of a campaign.update event.
type CampaignEvent struct {
	JobID      uuid.UUID `json:"job_id"`
	Status     string    `json:"status"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
