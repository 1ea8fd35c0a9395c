package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"phishguard-backend/internal/models"
	"phishguard-backend/internal/provider"
	"phishguard-backend/internal/scoring"
)

// TemplateSource is the read-only template boundary. Templates are authored
// elsewhere; the engine only ever loads them.
type TemplateSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.SimulationTemplate, error)
}

// Notifier publishes session lifecycle events. Implementations must be
// fire-and-forget: a Publish failure is logged by the notifier itself and
// never reaches the manager.
type Notifier interface {
	Publish(ctx context.Context, event models.SessionEvent)
}

// Manager is the session state machine. It owns transition legality, derives
// interaction correctness from the template, and delegates persistence to
// the store. All dependencies are injected so sessions stay testable in
// isolation.
type Manager struct {
	store     SessionStore
	templates TemplateSource
	provider  provider.ContentProvider
	notifier  Notifier
}

func NewManager(store SessionStore, templates TemplateSource, contentProvider provider.ContentProvider, notifier Notifier) *Manager {
	return &Manager{
		store:     store,
		templates: templates,
		provider:  contentProvider,
		notifier:  notifier,
	}
}

// StartResult is returned by Start.
type StartResult struct {
	Session  *models.Session         `json:"session"`
	Artifact *models.ContentArtifact `json:"artifact"`
}

// Choice is one user decision: either an option id for multiple-choice steps
// or freeform text for open-response steps.
type Choice struct {
	OptionID     string `json:"option_id,omitempty"`
	ResponseText string `json:"response_text,omitempty"`
}

// InteractionResult is returned by RecordInteraction.
type InteractionResult struct {
	Correct      bool                    `json:"correct"`
	Feedback     string                  `json:"feedback,omitempty"`
	Analysis     *models.AnalysisResult  `json:"analysis,omitempty"`
	NextArtifact *models.ContentArtifact `json:"next_artifact,omitempty"`
	Remaining    int                     `json:"remaining_steps"`
	Replayed     bool                    `json:"replayed"`
}

// urgencyForDifficulty maps template difficulty onto the pressure level of
// generated lures: harder scenarios use more aggressive content.
func urgencyForDifficulty(d models.Difficulty) models.Urgency {
	switch d {
	case models.DifficultyAdvanced:
		return models.UrgencyCritical
	case models.DifficultyIntermediate:
		return models.UrgencyHigh
	default:
		return models.UrgencyMedium
	}
}

// Start creates a new Active session for (actorID, templateID) and returns
// it with the first step's generated artifact. At most one Active session
// may exist per pair; a second Start fails with ErrSessionConflict.
func (m *Manager) Start(ctx context.Context, templateID, actorID uuid.UUID) (*StartResult, error) {
	if templateID == uuid.Nil || actorID == uuid.Nil {
		return nil, fmt.Errorf("%w: template id and actor id are required", models.ErrValidation)
	}

	template, err := m.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !template.Active {
		return nil, fmt.Errorf("%w: template %s is not active", models.ErrValidation, templateID)
	}
	if len(template.Steps) == 0 {
		return nil, fmt.Errorf("%w: template %s has no steps", models.ErrValidation, templateID)
	}

	artifact, err := m.generateArtifact(ctx, template, 0)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &models.Session{
		ID:             uuid.New(),
		TemplateID:     templateID,
		ActorID:        actorID,
		State:          models.SessionActive,
		ExpectedStep:   0,
		Interactions:   []models.Interaction{},
		Artifacts:      []models.ContentArtifact{*artifact},
		CreatedAt:      now,
		LastActivityAt: now,
	}

	if err := m.store.Create(ctx, session); err != nil {
		return nil, err
	}

	m.publish(ctx, models.SessionEvent{
		Type:      models.EventSessionStarted,
		SessionID: session.ID,
		Payload:   map[string]interface{}{"template_id": templateID, "actor_id": actorID},
		Timestamp: now,
	})

	return &StartResult{Session: session, Artifact: artifact}, nil
}

// RecordInteraction appends one decision to an Active session. The step must
// be the session's expected step; replaying the immediately preceding
// step+choice returns the recorded result without appending.
func (m *Manager) RecordInteraction(ctx context.Context, sessionID uuid.UUID, stepIndex int, choice Choice) (*InteractionResult, error) {
	snapshot, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	template, err := m.templates.GetByID(ctx, snapshot.TemplateID)
	if err != nil {
		return nil, err
	}

	if stepIndex < 0 || stepIndex >= len(template.Steps) {
		return nil, fmt.Errorf("%w: step %d out of range", models.ErrInvalidStep, stepIndex)
	}

	// Replay short-circuit before grading: a freeform replay must not re-run
	// provider analysis, only return what was recorded.
	if replayed := replayResult(snapshot, stepIndex, choice, len(template.Steps)); replayed != nil {
		return replayed, nil
	}

	step := template.Steps[stepIndex]
	correct, feedback, analysis, err := m.gradeChoice(ctx, template, step, choice)
	if err != nil {
		return nil, err
	}

	result := &InteractionResult{Correct: correct, Feedback: feedback, Analysis: analysis}

	updated, err := m.store.Mutate(ctx, sessionID, func(s *models.Session) error {
		if s.State != models.SessionActive {
			return models.ErrInvalidState
		}

		// Replay race guard: a duplicate that slipped past the snapshot check
		// still returns the recorded correctness and appends nothing.
		if stepIndex == s.ExpectedStep-1 && len(s.Interactions) > 0 {
			last := s.Interactions[len(s.Interactions)-1]
			if last.StepIndex == stepIndex && last.OptionID == choice.OptionID && last.ResponseText == choice.ResponseText {
				result.Correct = last.Correct
				result.Feedback = ""
				result.Analysis = nil
				result.Replayed = true
				return nil
			}
		}

		if stepIndex != s.ExpectedStep {
			return fmt.Errorf("%w: expected step %d, got %d", models.ErrInvalidStep, s.ExpectedStep, stepIndex)
		}

		s.Interactions = append(s.Interactions, models.Interaction{
			StepIndex:    stepIndex,
			OptionID:     choice.OptionID,
			ResponseText: choice.ResponseText,
			Correct:      correct,
			Timestamp:    time.Now().UTC(),
		})
		s.ExpectedStep++
		s.LastActivityAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Remaining = len(template.Steps) - updated.ExpectedStep

	if result.Replayed {
		if updated.ExpectedStep < len(updated.Artifacts) {
			artifact := updated.Artifacts[updated.ExpectedStep]
			result.NextArtifact = &artifact
		}
		return result, nil
	}

	// Generate the next step's artifact after the transition commits. A
	// generation hiccup here never rolls back the recorded interaction.
	if updated.ExpectedStep < len(template.Steps) {
		if artifact, genErr := m.generateArtifact(ctx, template, updated.ExpectedStep); genErr == nil {
			result.NextArtifact = artifact
			m.store.Mutate(ctx, sessionID, func(s *models.Session) error {
				if s.State != models.SessionActive {
					return models.ErrInvalidState
				}
				s.Artifacts = append(s.Artifacts, *artifact)
				return nil
			})
		}
	}

	m.publish(ctx, models.SessionEvent{
		Type:      models.EventSessionInteraction,
		SessionID: sessionID,
		Payload: models.InteractionEvent{
			StepIndex: stepIndex,
			Correct:   correct,
			Remaining: result.Remaining,
		},
		Timestamp: time.Now().UTC(),
	})

	return result, nil
}

// replayResult returns the recorded outcome when (stepIndex, choice) exactly
// matches the session's last interaction, nil when this is not a replay.
func replayResult(s *models.Session, stepIndex int, choice Choice, totalSteps int) *InteractionResult {
	if s.State != models.SessionActive || stepIndex != s.ExpectedStep-1 || len(s.Interactions) == 0 {
		return nil
	}
	last := s.Interactions[len(s.Interactions)-1]
	if last.StepIndex != stepIndex || last.OptionID != choice.OptionID || last.ResponseText != choice.ResponseText {
		return nil
	}

	result := &InteractionResult{
		Correct:   last.Correct,
		Remaining: totalSteps - s.ExpectedStep,
		Replayed:  true,
	}
	if s.ExpectedStep < len(s.Artifacts) {
		artifact := s.Artifacts[s.ExpectedStep]
		result.NextArtifact = &artifact
	}
	return result
}

// gradeChoice derives correctness from the template. Multiple-choice steps
// compare against the flagged-correct option; open-response steps are graded
// through the content provider's response analysis.
func (m *Manager) gradeChoice(ctx context.Context, template *models.SimulationTemplate, step models.TemplateStep, choice Choice) (bool, string, *models.AnalysisResult, error) {
	if len(step.Options) > 0 {
		if choice.OptionID == "" {
			return false, "", nil, fmt.Errorf("%w: option id is required for this step", models.ErrValidation)
		}
		option := step.Option(choice.OptionID)
		if option == nil {
			return false, "", nil, fmt.Errorf("%w: unknown option %q", models.ErrValidation, choice.OptionID)
		}
		return option.Correct, option.Feedback, nil, nil
	}

	if choice.ResponseText == "" {
		return false, "", nil, fmt.Errorf("%w: response text is required for this step", models.ErrValidation)
	}

	analysis, err := m.provider.AnalyzeResponse(ctx, provider.AnalyzeRequest{
		ResponseText: choice.ResponseText,
		Context: provider.SimulationContext{
			Channel:  template.Channel,
			Urgency:  urgencyForDifficulty(template.Difficulty),
			Scenario: step.Prompt,
		},
	})
	if err != nil {
		// Both provider paths failed: treated as internal.
		return false, "", nil, fmt.Errorf("%w: response analysis failed: %v", models.ErrInternal, err)
	}

	return analysis.RiskLevel == models.RiskLow, "", analysis, nil
}

// Complete finalizes an Active session. Outcome "completed" requires every
// step answered; "terminated_early" scores whatever was answered. The final
// score is set exactly once.
func (m *Manager) Complete(ctx context.Context, sessionID uuid.UUID, outcome string) (*models.Session, error) {
	if outcome != models.OutcomeCompleted && outcome != models.OutcomeTerminatedEarly {
		return nil, fmt.Errorf("%w: unknown outcome %q", models.ErrValidation, outcome)
	}

	snapshot, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	template, err := m.templates.GetByID(ctx, snapshot.TemplateID)
	if err != nil {
		return nil, err
	}

	updated, err := m.store.Mutate(ctx, sessionID, func(s *models.Session) error {
		if s.State != models.SessionActive {
			return models.ErrInvalidState
		}
		if outcome == models.OutcomeCompleted && s.ExpectedStep < len(template.Steps) {
			return fmt.Errorf("%w: %d of %d steps answered", models.ErrValidation, s.ExpectedStep, len(template.Steps))
		}

		score := scoring.Score(s.Interactions, template)
		now := time.Now().UTC()
		s.FinalScore = &score
		s.State = models.SessionCompleted
		s.CompletedAt = &now
		s.LastActivityAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.publish(ctx, models.SessionEvent{
		Type:      models.EventSessionCompleted,
		SessionID: sessionID,
		Payload: models.CompletedEvent{
			Score:  updated.FinalScore.Score,
			NoData: updated.FinalScore.NoData,
		},
		Timestamp: time.Now().UTC(),
	})

	return updated, nil
}

// Expire transitions an idle Active session to Abandoned. Invoked by the
// watchdog, never user-triggered; no score is computed.
func (m *Manager) Expire(ctx context.Context, sessionID uuid.UUID) error {
	_, err := m.store.Mutate(ctx, sessionID, func(s *models.Session) error {
		if s.State != models.SessionActive {
			return models.ErrInvalidState
		}
		s.State = models.SessionAbandoned
		s.LastActivityAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return err
	}

	m.publish(ctx, models.SessionEvent{
		Type:      models.EventSessionAbandoned,
		SessionID: sessionID,
		Payload:   map[string]interface{}{"reason": "timeout"},
		Timestamp: time.Now().UTC(),
	})

	return nil
}

// Get returns a session snapshot.
func (m *Manager) Get(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	return m.store.Get(ctx, sessionID)
}

func (m *Manager) generateArtifact(ctx context.Context, template *models.SimulationTemplate, stepIndex int) (*models.ContentArtifact, error) {
	artifact, err := m.provider.Generate(ctx, provider.GenerateRequest{
		Kind:           template.Channel,
		Urgency:        urgencyForDifficulty(template.Difficulty),
		TargetPlatform: template.TargetPlatform,
		CustomDetails:  template.Steps[stepIndex].Prompt,
	})
	if err != nil {
		// The provider recovers its own failures; an error here means even
		// the simulated path rejected the input.
		return nil, fmt.Errorf("%w: content generation failed: %v", models.ErrInternal, err)
	}
	return artifact, nil
}

// publish emits an event after the transition that produced it has
// committed. The notifier is fire-and-forget, so this never blocks or fails
// the operation.
func (m *Manager) publish(ctx context.Context, event models.SessionEvent) {
	if m.notifier != nil {
		m.notifier.Publish(ctx, event)
	}
}
