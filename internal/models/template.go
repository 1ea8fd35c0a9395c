package models

import (
	"time"

	"github.com/google/uuid"
)

// SimulationTemplate is the immutable definition of one attack scenario.
// Templates are created by the authoring UI and read-only to the session engine.
type SimulationTemplate struct {
	ID             uuid.UUID      `json:"id"`
	Title          string         `json:"title"`
	Channel        Channel        `json:"channel"`
	Difficulty     Difficulty     `json:"difficulty"`
	TargetPlatform string         `json:"target_platform"`
	Active         bool           `json:"active"`
	Steps          []TemplateStep `json:"steps"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TemplateStep is one scripted decision point. Weight 0 means equal-weighted
// (treated as 1 by the scoring engine).
type TemplateStep struct {
	Prompt  string       `json:"prompt"`
	Weight  int          `json:"weight"`
	Options []StepOption `json:"options"`
}

// StepOption is one multiple-choice answer for a step.
type StepOption struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Correct  bool   `json:"correct"`
	Feedback string `json:"feedback"`
}

// StepWeight returns the effective weight of a step.
func (s TemplateStep) StepWeight() int {
	if s.Weight <= 0 {
		return 1
	}
	return s.Weight
}

// CorrectOption returns the first option flagged correct, if any.
func (s TemplateStep) CorrectOption() *StepOption {
	for i := range s.Options {
		if s.Options[i].Correct {
			return &s.Options[i]
		}
	}
	return nil
}

// Option looks up an option by id.
func (s TemplateStep) Option(id string) *StepOption {
	for i := range s.Options {
		if s.Options[i].ID == id {
			return &s.Options[i]
		}
	}
	return nil
}
