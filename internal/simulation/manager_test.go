package simulation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"phishguard-backend/internal/models"
	"phishguard-backend/internal/provider"
)

type fakeTemplateSource struct {
	templates map[uuid.UUID]*models.SimulationTemplate
}

func (f *fakeTemplateSource) GetByID(ctx context.Context, id uuid.UUID) (*models.SimulationTemplate, error) {
	template, ok := f.templates[id]
	if !ok {
		return nil, models.ErrTemplateNotFound
	}
	return template, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.SessionEvent
}

func (n *recordingNotifier) Publish(ctx context.Context, event models.SessionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

// countingProvider tracks how often responses are sent out for analysis.
type countingProvider struct {
	provider.ContentProvider
	mu           sync.Mutex
	analyzeCalls int
}

func (p *countingProvider) AnalyzeResponse(ctx context.Context, req provider.AnalyzeRequest) (*models.AnalysisResult, error) {
	p.mu.Lock()
	p.analyzeCalls++
	p.mu.Unlock()
	return p.ContentProvider.AnalyzeResponse(ctx, req)
}

func (p *countingProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.analyzeCalls
}

func testTemplate() *models.SimulationTemplate {
	step := func(correctID string) models.TemplateStep {
		return models.TemplateStep{
			Prompt: "A message from IT asks you to re-enter your password.",
			Options: []models.StepOption{
				{ID: "report", Text: "Report to security", Correct: correctID == "report", Feedback: "Right move."},
				{ID: "click", Text: "Follow the link", Correct: correctID == "click", Feedback: "That was the lure."},
			},
		}
	}
	return &models.SimulationTemplate{
		ID:             uuid.New(),
		Title:          "Credential harvest drill",
		Channel:        models.ChannelEmail,
		Difficulty:     models.DifficultyBeginner,
		TargetPlatform: "Acme Corp",
		Active:         true,
		Steps:          []models.TemplateStep{step("report"), step("report"), step("report")},
	}
}

func newTestManager(t *testing.T, template *models.SimulationTemplate) (*Manager, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	source := &fakeTemplateSource{templates: map[uuid.UUID]*models.SimulationTemplate{}}
	if template != nil {
		source.templates[template.ID] = template
	}
	manager := NewManager(NewMemoryStore(), source, provider.NewSimulatedProvider(), notifier)
	return manager, notifier
}

func TestStart_CreatesActiveSessionWithFirstArtifact(t *testing.T) {
	template := testTemplate()
	manager, notifier := newTestManager(t, template)

	result, err := manager.Start(context.Background(), template.ID, uuid.New())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if result.Session.State != models.SessionActive {
		t.Errorf("Expected active state, got %s", result.Session.State)
	}
	if result.Session.ExpectedStep != 0 {
		t.Errorf("Expected step pointer at 0, got %d", result.Session.ExpectedStep)
	}
	if result.Artifact == nil || result.Artifact.Body == "" {
		t.Fatal("Expected a generated artifact for the first step")
	}
	if !result.Artifact.Simulated {
		t.Error("Simulated provider must flag its artifacts")
	}

	types := notifier.types()
	if len(types) != 1 || types[0] != models.EventSessionStarted {
		t.Errorf("Expected a single session.started event, got %v", types)
	}
}

func TestStart_DuplicateActivePairConflicts(t *testing.T) {
	template := testTemplate()
	manager, _ := newTestManager(t, template)
	actorID := uuid.New()

	if _, err := manager.Start(context.Background(), template.ID, actorID); err != nil {
		t.Fatalf("First start failed: %v", err)
	}

	_, err := manager.Start(context.Background(), template.ID, actorID)
	if !errors.Is(err, models.ErrSessionConflict) {
		t.Fatalf("Expected session conflict, got %v", err)
	}
}

func TestStart_SameActorDifferentTemplateAllowed(t *testing.T) {
	first := testTemplate()
	second := testTemplate()
	notifier := &recordingNotifier{}
	source := &fakeTemplateSource{templates: map[uuid.UUID]*models.SimulationTemplate{
		first.ID:  first,
		second.ID: second,
	}}
	manager := NewManager(NewMemoryStore(), source, provider.NewSimulatedProvider(), notifier)
	actorID := uuid.New()

	if _, err := manager.Start(context.Background(), first.ID, actorID); err != nil {
		t.Fatalf("Start on first template failed: %v", err)
	}
	if _, err := manager.Start(context.Background(), second.ID, actorID); err != nil {
		t.Fatalf("Start on second template should not conflict: %v", err)
	}
}

func TestStart_InactiveTemplateRejected(t *testing.T) {
	template := testTemplate()
	template.Active = false
	manager, _ := newTestManager(t, template)

	_, err := manager.Start(context.Background(), template.ID, uuid.New())
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("Expected validation error for inactive template, got %v", err)
	}
}

func TestStart_UnknownTemplate(t *testing.T) {
	manager, _ := newTestManager(t, nil)

	_, err := manager.Start(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, models.ErrTemplateNotFound) {
		t.Fatalf("Expected template not found, got %v", err)
	}
}

func TestRecordInteraction_AdvancesAndGrades(t *testing.T) {
	template := testTemplate()
	manager, notifier := newTestManager(t, template)

	start, err := manager.Start(context.Background(), template.ID, uuid.New())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	result, err := manager.RecordInteraction(context.Background(), start.Session.ID, 0, Choice{OptionID: "report"})
	if err != nil {
		t.Fatalf("RecordInteraction failed: %v", err)
	}
	if !result.Correct {
		t.Error("Reporting the lure should grade as correct")
	}
	if result.Feedback != "Right move." {
		t.Errorf("Expected option feedback, got %q", result.Feedback)
	}
	if result.Remaining != 2 {
		t.Errorf("Expected 2 remaining steps, got %d", result.Remaining)
	}
	if result.NextArtifact == nil {
		t.Error("Expected an artifact for the next step")
	}

	session, err := manager.Get(context.Background(), start.Session.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if session.ExpectedStep != 1 {
		t.Errorf("Expected step pointer at 1, got %d", session.ExpectedStep)
	}
	if len(session.Interactions) != 1 {
		t.Fatalf("Expected 1 recorded interaction, got %d", len(session.Interactions))
	}

	types := notifier.types()
	if types[len(types)-1] != models.EventSessionInteraction {
		t.Errorf("Expected session.interaction event, got %v", types)
	}
}

func TestRecordInteraction_OutOfOrderStepRejected(t *testing.T) {
	template := testTemplate()
	manager, _ := newTestManager(t, template)

	start, _ := manager.Start(context.Background(), template.ID, uuid.New())

	_, err := manager.RecordInteraction(context.Background(), start.Session.ID, 2, Choice{OptionID: "report"})
	if !errors.Is(err, models.ErrInvalidStep) {
		t.Fatalf("Expected invalid step for a skipped step, got %v", err)
	}

	session, _ := manager.Get(context.Background(), start.Session.ID)
	if len(session.Interactions) != 0 {
		t.Error("A rejected interaction must not be recorded")
	}
}

func TestRecordInteraction_ReplayIsIdempotent(t *testing.T) {
	template := testTemplate()
	manager, _ := newTestManager(t, template)

	start, _ := manager.Start(context.Background(), template.ID, uuid.New())
	sessionID := start.Session.ID

	first, err := manager.RecordInteraction(context.Background(), sessionID, 0, Choice{OptionID: "click"})
	if err != nil {
		t.Fatalf("First interaction failed: %v", err)
	}

	replay, err := manager.RecordInteraction(context.Background(), sessionID, 0, Choice{OptionID: "click"})
	if err != nil {
		t.Fatalf("Replay of the same step+choice must succeed: %v", err)
	}
	if !replay.Replayed {
		t.Error("Replay must be flagged")
	}
	if replay.Correct != first.Correct {
		t.Error("Replay must return the originally recorded correctness")
	}

	session, _ := manager.Get(context.Background(), sessionID)
	if len(session.Interactions) != 1 {
		t.Errorf("Replay must not append a second interaction, log has %d", len(session.Interactions))
	}
	if session.ExpectedStep != 1 {
		t.Errorf("Replay must not advance the step pointer, got %d", session.ExpectedStep)
	}
}

func TestRecordInteraction_FreeformReplaySkipsAnalysis(t *testing.T) {
	template := testTemplate()
	template.Steps[0] = models.TemplateStep{Prompt: "Reply to the sender."}
	counting := &countingProvider{ContentProvider: provider.NewSimulatedProvider()}
	source := &fakeTemplateSource{templates: map[uuid.UUID]*models.SimulationTemplate{template.ID: template}}
	manager := NewManager(NewMemoryStore(), source, counting, &recordingNotifier{})

	start, err := manager.Start(context.Background(), template.ID, uuid.New())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	sessionID := start.Session.ID

	choice := Choice{ResponseText: "This is phishing, I am reporting it and deleting the email."}
	first, err := manager.RecordInteraction(context.Background(), sessionID, 0, choice)
	if err != nil {
		t.Fatalf("First interaction failed: %v", err)
	}
	if counting.calls() != 1 {
		t.Fatalf("Expected one analysis call for the first submission, got %d", counting.calls())
	}

	replay, err := manager.RecordInteraction(context.Background(), sessionID, 0, choice)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if !replay.Replayed {
		t.Error("Replay must be flagged")
	}
	if replay.Correct != first.Correct {
		t.Error("Replay must return the originally recorded correctness")
	}
	if replay.Analysis != nil {
		t.Error("Replay must not carry a fresh analysis")
	}
	if counting.calls() != 1 {
		t.Errorf("Replay must not re-run response analysis, got %d calls", counting.calls())
	}
}

func TestRecordInteraction_ReplayWithDifferentChoiceRejected(t *testing.T) {
	template := testTemplate()
	manager, _ := newTestManager(t, template)

	start, _ := manager.Start(context.Background(), template.ID, uuid.New())
	sessionID := start.Session.ID

	if _, err := manager.RecordInteraction(context.Background(), sessionID, 0, Choice{OptionID: "click"}); err != nil {
		t.Fatalf("First interaction failed: %v", err)
	}

	_, err := manager.RecordInteraction(context.Background(), sessionID, 0, Choice{OptionID: "report"})
	if !errors.Is(err, models.ErrInvalidStep) {
		t.Fatalf("Changing the answer on a recorded step must be rejected, got %v", err)
	}
}

func TestRecordInteraction_UnknownOptionRejected(t *testing.T) {
	template := testTemplate()
	manager, _ := newTestManager(t, template)

	start, _ := manager.Start(context.Background(), template.ID, uuid.New())

	_, err := manager.RecordInteraction(context.Background(), start.Session.ID, 0, Choice{OptionID: "nope"})
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("Expected validation error for unknown option, got %v", err)
	}
}

func TestRecordInteraction_FreeformGradedByProvider(t *testing.T) {
	template := testTemplate()
	template.Steps[1] = models.TemplateStep{Prompt: "Reply to the sender."}
	manager, _ := newTestManager(t, template)

	start, _ := manager.Start(context.Background(), template.ID, uuid.New())
	sessionID := start.Session.ID

	if _, err := manager.RecordInteraction(context.Background(), sessionID, 0, Choice{OptionID: "report"}); err != nil {
		t.Fatalf("Step 0 failed: %v", err)
	}

	result, err := manager.RecordInteraction(context.Background(), sessionID, 1, Choice{
		ResponseText: "I will not click this link, I am reporting it to security and deleting the email.",
	})
	if err != nil {
		t.Fatalf("Freeform interaction failed: %v", err)
	}
	if result.Analysis == nil {
		t.Fatal("Freeform steps must carry a response analysis")
	}
	if !result.Correct {
		t.Errorf("A clearly safe response should grade as correct (risk %s)", result.Analysis.RiskLevel)
	}
}

func TestComplete_FullRunProducesScore(t *testing.T) {
	template := testTemplate()
	manager, notifier := newTestManager(t, template)

	start, _ := manager.Start(context.Background(), template.ID, uuid.New())
	sessionID := start.Session.ID

	answers := []string{"report", "click", "report"}
	for i, optionID := range answers {
		if _, err := manager.RecordInteraction(context.Background(), sessionID, i, Choice{OptionID: optionID}); err != nil {
			t.Fatalf("Step %d failed: %v", i, err)
		}
	}

	session, err := manager.Complete(context.Background(), sessionID, models.OutcomeCompleted)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if session.State != models.SessionCompleted {
		t.Errorf("Expected completed state, got %s", session.State)
	}
	if session.FinalScore == nil {
		t.Fatal("Expected a final score")
	}
	if session.FinalScore.Score != 67 {
		t.Errorf("Expected score 67 for two of three correct, got %d", session.FinalScore.Score)
	}
	if session.CompletedAt == nil {
		t.Error("Expected completion timestamp")
	}

	types := notifier.types()
	if types[len(types)-1] != models.EventSessionCompleted {
		t.Errorf("Expected session.completed event last, got %v", types)
	}
}

func TestComplete_SecondCallInvalidState(t *testing.T) {
	template := testTemplate()
	manager, _ := newTestManager(t, template)

	start, _ := manager.Start(context.Background(), template.ID, uuid.New())
	sessionID := start.Session.ID
	for i := 0; i < 3; i++ {
		if _, err := manager.RecordInteraction(context.Background(), sessionID, i, Choice{OptionID: "report"}); err != nil {
			t.Fatalf("Step %d failed: %v", i, err)
		}
	}

	first, err := manager.Complete(context.Background(), sessionID, models.OutcomeCompleted)
	if err != nil {
		t.Fatalf("First complete failed: %v", err)
	}

	_, err = manager.Complete(context.Background(), sessionID, models.OutcomeCompleted)
	if !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("Second complete must fail with invalid state, got %v", err)
	}

	session, _ := manager.Get(context.Background(), sessionID)
	if session.FinalScore.Score != first.FinalScore.Score {
		t.Error("A rejected complete must leave the final score unchanged")
	}
}

func TestComplete_EarlyTerminationScoresPartialLog(t *testing.T) {
	template := testTemplate()
	manager, _ := newTestManager(t, template)

	start, _ := manager.Start(context.Background(), template.ID, uuid.New())
	sessionID := start.Session.ID
	if _, err := manager.RecordInteraction(context.Background(), sessionID, 0, Choice{OptionID: "report"}); err != nil {
		t.Fatalf("Step 0 failed: %v", err)
	}

	session, err := manager.Complete(context.Background(), sessionID, models.OutcomeTerminatedEarly)
	if err != nil {
		t.Fatalf("Early termination failed: %v", err)
	}
	if session.FinalScore == nil || session.FinalScore.NoData {
		t.Fatal("One answered step is enough data to score")
	}
	if session.FinalScore.Unanswered != 2 {
		t.Errorf("Expected 2 unanswered steps, got %d", session.FinalScore.Unanswered)
	}
}

func TestComplete_FullOutcomeRequiresAllSteps(t *testing.T) {
	template := testTemplate()
	manager, _ := newTestManager(t, template)

	start, _ := manager.Start(context.Background(), template.ID, uuid.New())

	_, err := manager.Complete(context.Background(), start.Session.ID, models.OutcomeCompleted)
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("Completing with unanswered steps must fail validation, got %v", err)
	}
}

func TestComplete_NoInteractionsFlagsNoData(t *testing.T) {
	template := testTemplate()
	manager, _ := newTestManager(t, template)

	start, _ := manager.Start(context.Background(), template.ID, uuid.New())

	session, err := manager.Complete(context.Background(), start.Session.ID, models.OutcomeTerminatedEarly)
	if err != nil {
		t.Fatalf("Early termination failed: %v", err)
	}
	if !session.FinalScore.NoData {
		t.Error("A session with no interactions must carry the no-data flag")
	}
	if session.FinalScore.Score != 0 {
		t.Errorf("Expected score 0 with no data, got %d", session.FinalScore.Score)
	}
}

func TestExpire_ActiveToAbandoned(t *testing.T) {
	template := testTemplate()
	manager, notifier := newTestManager(t, template)

	start, _ := manager.Start(context.Background(), template.ID, uuid.New())

	if err := manager.Expire(context.Background(), start.Session.ID); err != nil {
		t.Fatalf("Expire failed: %v", err)
	}

	session, _ := manager.Get(context.Background(), start.Session.ID)
	if session.State != models.SessionAbandoned {
		t.Errorf("Expected abandoned state, got %s", session.State)
	}
	if session.FinalScore != nil {
		t.Error("Expired sessions are not scored")
	}

	types := notifier.types()
	if types[len(types)-1] != models.EventSessionAbandoned {
		t.Errorf("Expected session.abandoned event, got %v", types)
	}
}

func TestExpire_CompletedSessionUntouched(t *testing.T) {
	template := testTemplate()
	manager, _ := newTestManager(t, template)

	start, _ := manager.Start(context.Background(), template.ID, uuid.New())
	sessionID := start.Session.ID
	for i := 0; i < 3; i++ {
		manager.RecordInteraction(context.Background(), sessionID, i, Choice{OptionID: "report"})
	}
	if _, err := manager.Complete(context.Background(), sessionID, models.OutcomeCompleted); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if err := manager.Expire(context.Background(), sessionID); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("Expiring a completed session must fail with invalid state, got %v", err)
	}

	session, _ := manager.Get(context.Background(), sessionID)
	if session.State != models.SessionCompleted {
		t.Errorf("Completed state must survive an expire attempt, got %s", session.State)
	}
}

func TestInteractionsOnTerminalSessionRejected(t *testing.T) {
	template := testTemplate()
	manager, _ := newTestManager(t, template)

	start, _ := manager.Start(context.Background(), template.ID, uuid.New())
	sessionID := start.Session.ID
	if err := manager.Expire(context.Background(), sessionID); err != nil {
		t.Fatalf("Expire failed: %v", err)
	}

	_, err := manager.RecordInteraction(context.Background(), sessionID, 0, Choice{OptionID: "report"})
	if !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("Abandoned sessions must reject interactions, got %v", err)
	}
}

func TestStartAfterCompletionAllowed(t *testing.T) {
	template := testTemplate()
	manager, _ := newTestManager(t, template)
	actorID := uuid.New()

	start, _ := manager.Start(context.Background(), template.ID, actorID)
	sessionID := start.Session.ID
	for i := 0; i < 3; i++ {
		manager.RecordInteraction(context.Background(), sessionID, i, Choice{OptionID: "report"})
	}
	if _, err := manager.Complete(context.Background(), sessionID, models.OutcomeCompleted); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	// The pair is free again once the first session reaches a terminal state.
	if _, err := manager.Start(context.Background(), template.ID, actorID); err != nil {
		t.Fatalf("Restart after completion must be allowed: %v", err)
	}
}
