package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is one actor's run through one SimulationTemplate.
// It is owned exclusively by the session manager; the store serializes
// concurrent mutations per session id.
type Session struct {
	ID             uuid.UUID         `json:"id"`
	TemplateID     uuid.UUID         `json:"template_id"`
	ActorID        uuid.UUID         `json:"actor_id"`
	State          SessionState      `json:"state"`
	ExpectedStep   int               `json:"expected_step"`
	Interactions   []Interaction     `json:"interactions"`
	Artifacts      []ContentArtifact `json:"artifacts"`
	FinalScore     *ScoreResult      `json:"final_score,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	LastActivityAt time.Time         `json:"last_activity_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

// Interaction is one recorded user decision. Append-only: once recorded it
// is never modified. Correctness is derived from the template, never
// user-supplied.
type Interaction struct {
	StepIndex    int       `json:"step_index"`
	OptionID     string    `json:"option_id,omitempty"`
	ResponseText string    `json:"response_text,omitempty"`
	Correct      bool      `json:"correct"`
	Timestamp    time.Time `json:"timestamp"`
}

// ScoreResult is the output of the scoring engine. Score is always in [0,100].
type ScoreResult struct {
	Score      int           `json:"score"`
	NoData     bool          `json:"no_data"`
	Correct    int           `json:"correct_decisions"`
	Risky      int           `json:"risky_decisions"`
	Unanswered int           `json:"unanswered_steps"`
	Steps      []StepOutcome `json:"steps"`
}

// StepOutcome is the per-step detail of a score breakdown, consumed by the
// educational summary in the UI.
type StepOutcome struct {
	StepIndex int    `json:"step_index"`
	Answered  bool   `json:"answered"`
	Correct   bool   `json:"correct"`
	Weight    int    `json:"weight"`
	Feedback  string `json:"feedback,omitempty"`
}

// Session completion outcomes accepted by the complete operation.
const (
	OutcomeCompleted       = "completed"
	OutcomeTerminatedEarly = "terminated_early"
)
