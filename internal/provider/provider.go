package provider

import (
	"context"
	"fmt"
	"strings"

	"phishguard-backend/internal/models"
)

// GenerateRequest describes one content-generation call.
type GenerateRequest struct {
	Kind           models.Channel `json:"kind"`
	Urgency        models.Urgency `json:"urgency"`
	TargetPlatform string         `json:"target_platform"`
	CustomDetails  string         `json:"custom_details"`
}

// SimulationContext carries the scenario data needed to grade a freeform
// user response.
type SimulationContext struct {
	Channel  models.Channel `json:"channel"`
	Urgency  models.Urgency `json:"urgency"`
	Scenario string         `json:"scenario"`
	RedFlags []string       `json:"red_flags"`
}

// AnalyzeRequest describes one response-analysis call.
type AnalyzeRequest struct {
	ResponseText string            `json:"response_text"`
	Context      SimulationContext `json:"context"`
}

// ContentProvider produces phishing-style training content and analyzes user
// behavior. The live and simulated implementations return schema-identical
// results; the Simulated flag on each result is the only provenance signal.
type ContentProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (*models.ContentArtifact, error)
	AnalyzeResponse(ctx context.Context, req AnalyzeRequest) (*models.AnalysisResult, error)
	GenerateEducational(ctx context.Context, topic string, difficulty models.Difficulty) (*models.EducationalContent, error)
	Detect(ctx context.Context, text string) (*models.DetectionResult, error)
}

func (r GenerateRequest) validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: invalid content kind %q", models.ErrValidation, string(r.Kind))
	}
	if !r.Urgency.Valid() {
		return fmt.Errorf("%w: invalid urgency %q", models.ErrValidation, string(r.Urgency))
	}
	return nil
}

func (r AnalyzeRequest) validate() error {
	if strings.TrimSpace(r.ResponseText) == "" {
		return fmt.Errorf("%w: response text is required", models.ErrValidation)
	}
	if !r.Context.Channel.Valid() {
		return fmt.Errorf("%w: invalid channel %q", models.ErrValidation, string(r.Context.Channel))
	}
	return nil
}
