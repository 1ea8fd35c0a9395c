package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"phishguard-backend/internal/models"
)

const geminiProviderName = "gemini"

// generativeBackend is the minimal surface of the live model the provider
// needs. Kept as an interface so fallback behavior is testable without a
// network.
type generativeBackend interface {
	generate(ctx context.Context, prompt string) (string, error)
}

type geminiBackend struct {
	model *genai.GenerativeModel
}

func (b *geminiBackend) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := b.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String(), nil
}

// GeminiProvider is the live ContentProvider. Every backend failure — timeout,
// auth rejection, API error, unparseable or wrong-shape output — is recovered
// by serving the same call from the simulated provider. Callers only ever see
// the provenance flag change.
type GeminiProvider struct {
	client   *genai.Client
	backend  generativeBackend
	fallback *SimulatedProvider
	timeout  time.Duration
	rateChan chan struct{} // Token bucket
}

func NewGeminiProvider(apiKey string, concurrentReqs int, timeout time.Duration) (*GeminiProvider, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-3-flash-preview")
	model.SetTemperature(0.7)
	model.SetTopP(0.95)

	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiProvider{
		client:   client,
		backend:  &geminiBackend{model: model},
		fallback: NewSimulatedProvider(),
		timeout:  timeout,
		rateChan: rateChan,
	}, nil
}

func (p *GeminiProvider) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

// callBackend runs one prompt with the hard timeout and classifies failures
// into the internal provider error taxonomy.
func (p *GeminiProvider) callBackend(ctx context.Context, prompt string) (string, error) {
	select {
	case <-p.rateChan:
		defer func() { p.rateChan <- struct{}{} }()
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", models.ErrProviderTimeout, ctx.Err())
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	text, err := p.backend.generate(callCtx, prompt)
	if err != nil {
		return "", classifyBackendError(err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty response", models.ErrProviderMalformed)
	}
	return text, nil
}

func classifyBackendError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", models.ErrProviderTimeout, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key"), strings.Contains(msg, "permission"),
		strings.Contains(msg, "unauthenticated"), strings.Contains(msg, "quota"):
		return fmt.Errorf("%w: %v", models.ErrProviderAuth, err)
	default:
		return fmt.Errorf("%w: %v", models.ErrProviderMalformed, err)
	}
}

// stripFences removes markdown code fences the model wraps around JSON.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}

// decodeObject parses raw model output into v, recovering a JSON object
// embedded in surrounding prose if the direct parse fails.
func decodeObject(raw string, v interface{}) error {
	raw = stripFences(raw)
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(raw[start:end+1]), v); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: response is not valid JSON", models.ErrProviderMalformed)
}

func (p *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (*models.ContentArtifact, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	artifact, err := p.liveGenerate(ctx, req)
	if err != nil {
		log.Printf("Live content generation failed, serving simulated fallback: %v", err)
		return p.fallback.Generate(ctx, req)
	}
	return artifact, nil
}

func (p *GeminiProvider) liveGenerate(ctx context.Context, req GenerateRequest) (*models.ContentArtifact, error) {
	raw, err := p.callBackend(ctx, buildGeneratePrompt(req))
	if err != nil {
		return nil, err
	}

	var wire struct {
		Subject  string   `json:"subject"`
		Body     string   `json:"body"`
		RedFlags []string `json:"red_flags"`
	}
	if err := decodeObject(raw, &wire); err != nil {
		return nil, err
	}

	// Parsed-but-wrong-shape is treated identically to parse failure.
	if strings.TrimSpace(wire.Subject) == "" || strings.TrimSpace(wire.Body) == "" || len(wire.RedFlags) == 0 {
		return nil, fmt.Errorf("%w: missing required artifact fields", models.ErrProviderMalformed)
	}

	return &models.ContentArtifact{
		Subject:   wire.Subject,
		Body:      wire.Body,
		Channel:   req.Kind,
		Urgency:   req.Urgency,
		RedFlags:  wire.RedFlags,
		Simulated: false,
		Provider:  geminiProviderName,
	}, nil
}

func (p *GeminiProvider) AnalyzeResponse(ctx context.Context, req AnalyzeRequest) (*models.AnalysisResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	result, err := p.liveAnalyze(ctx, req)
	if err != nil {
		log.Printf("Live response analysis failed, serving simulated fallback: %v", err)
		return p.fallback.AnalyzeResponse(ctx, req)
	}
	return result, nil
}

func (p *GeminiProvider) liveAnalyze(ctx context.Context, req AnalyzeRequest) (*models.AnalysisResult, error) {
	raw, err := p.callBackend(ctx, buildAnalyzePrompt(req))
	if err != nil {
		return nil, err
	}

	var wire struct {
		VulnerabilityScore *int     `json:"vulnerability_score"`
		MissedRedFlags     []string `json:"missed_red_flags"`
		Recommendations    []string `json:"recommendations"`
	}
	if err := decodeObject(raw, &wire); err != nil {
		return nil, err
	}

	if wire.VulnerabilityScore == nil || *wire.VulnerabilityScore < 0 || *wire.VulnerabilityScore > 10 || len(wire.Recommendations) == 0 {
		return nil, fmt.Errorf("%w: missing or out-of-range analysis fields", models.ErrProviderMalformed)
	}

	if wire.MissedRedFlags == nil {
		wire.MissedRedFlags = []string{}
	}

	return &models.AnalysisResult{
		VulnerabilityScore: *wire.VulnerabilityScore,
		MissedRedFlags:     wire.MissedRedFlags,
		Recommendations:    wire.Recommendations,
		RiskLevel:          models.RiskLevelForScore(*wire.VulnerabilityScore),
		Simulated:          false,
	}, nil
}

func (p *GeminiProvider) GenerateEducational(ctx context.Context, topic string, difficulty models.Difficulty) (*models.EducationalContent, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("%w: topic is required", models.ErrValidation)
	}
	if !difficulty.Valid() {
		return nil, fmt.Errorf("%w: invalid difficulty %q", models.ErrValidation, string(difficulty))
	}

	content, err := p.liveEducational(ctx, topic, difficulty)
	if err != nil {
		log.Printf("Live educational generation failed, serving simulated fallback: %v", err)
		return p.fallback.GenerateEducational(ctx, topic, difficulty)
	}
	return content, nil
}

func (p *GeminiProvider) liveEducational(ctx context.Context, topic string, difficulty models.Difficulty) (*models.EducationalContent, error) {
	raw, err := p.callBackend(ctx, buildEducationalPrompt(topic, difficulty))
	if err != nil {
		return nil, err
	}

	var wire struct {
		Title        string   `json:"title"`
		Body         string   `json:"body"`
		KeyTakeaways []string `json:"key_takeaways"`
	}
	if err := decodeObject(raw, &wire); err != nil {
		return nil, err
	}

	if strings.TrimSpace(wire.Title) == "" || strings.TrimSpace(wire.Body) == "" || len(wire.KeyTakeaways) == 0 {
		return nil, fmt.Errorf("%w: missing required educational fields", models.ErrProviderMalformed)
	}

	return &models.EducationalContent{
		Topic:        topic,
		Difficulty:   difficulty,
		Title:        wire.Title,
		Body:         wire.Body,
		KeyTakeaways: wire.KeyTakeaways,
		Simulated:    false,
	}, nil
}

func (p *GeminiProvider) Detect(ctx context.Context, text string) (*models.DetectionResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", models.ErrValidation)
	}

	result, err := p.liveDetect(ctx, text)
	if err != nil {
		log.Printf("Live detection failed, serving simulated fallback: %v", err)
		return p.fallback.Detect(ctx, text)
	}
	return result, nil
}

func (p *GeminiProvider) liveDetect(ctx context.Context, text string) (*models.DetectionResult, error) {
	raw, err := p.callBackend(ctx, buildDetectPrompt(text))
	if err != nil {
		return nil, err
	}

	var wire struct {
		UrgencyScore        *int     `json:"urgency_score"`
		AuthorityScore      *int     `json:"authority_score"`
		EmotionScore        *int     `json:"emotional_manipulation_score"`
		SuspiciousElements  []string `json:"suspicious_elements"`
		PhishingProbability *int     `json:"phishing_probability"`
	}
	if err := decodeObject(raw, &wire); err != nil {
		return nil, err
	}

	if wire.UrgencyScore == nil || wire.AuthorityScore == nil || wire.EmotionScore == nil || wire.PhishingProbability == nil {
		return nil, fmt.Errorf("%w: missing detection fields", models.ErrProviderMalformed)
	}
	if *wire.PhishingProbability < 0 || *wire.PhishingProbability > 100 {
		return nil, fmt.Errorf("%w: phishing probability out of range", models.ErrProviderMalformed)
	}

	if wire.SuspiciousElements == nil {
		wire.SuspiciousElements = []string{}
	}

	return &models.DetectionResult{
		UrgencyScore:        capScore(*wire.UrgencyScore),
		AuthorityScore:      capScore(*wire.AuthorityScore),
		EmotionScore:        capScore(*wire.EmotionScore),
		SuspiciousElements:  wire.SuspiciousElements,
		PhishingProbability: *wire.PhishingProbability,
	}, nil
}

// Prompt builders

func buildGeneratePrompt(req GenerateRequest) string {
	var b strings.Builder

	b.WriteString("You are generating training material for a security-awareness program. ")
	b.WriteString("Create a realistic but clearly fictional phishing-style message used only to teach employees to recognize attacks.\n\n")

	b.WriteString(fmt.Sprintf("Channel: %s\n", req.Kind))
	b.WriteString(fmt.Sprintf("Urgency level: %s\n", req.Urgency))
	if req.TargetPlatform != "" {
		b.WriteString(fmt.Sprintf("Impersonated platform: %s\n", req.TargetPlatform))
	}
	if req.CustomDetails != "" {
		b.WriteString(fmt.Sprintf("Scenario details to include: %s\n", req.CustomDetails))
	}

	b.WriteString("\nReturn ONLY a valid JSON object with these fields:\n")
	b.WriteString(`{"subject": "message subject line", "body": "full message body", "red_flags": ["list of the deliberate warning signs embedded in the message"]}`)
	b.WriteString("\nInclude at least three red flags. Do not use markdown.")

	return b.String()
}

func buildAnalyzePrompt(req AnalyzeRequest) string {
	var b strings.Builder

	b.WriteString("You are a security-awareness coach grading how a trainee responded to a simulated phishing attempt.\n\n")
	b.WriteString(fmt.Sprintf("Scenario channel: %s, urgency: %s\n", req.Context.Channel, req.Context.Urgency))
	if req.Context.Scenario != "" {
		b.WriteString(fmt.Sprintf("Scenario: %s\n", req.Context.Scenario))
	}
	if len(req.Context.RedFlags) > 0 {
		b.WriteString(fmt.Sprintf("Red flags embedded in the lure: %s\n", strings.Join(req.Context.RedFlags, "; ")))
	}
	b.WriteString(fmt.Sprintf("\nTrainee response:\n%s\n", req.ResponseText))

	b.WriteString("\nReturn ONLY a valid JSON object with these fields:\n")
	b.WriteString(`{"vulnerability_score": 0, "missed_red_flags": ["red flags the trainee did not mention"], "recommendations": ["specific advice"]}`)
	b.WriteString("\nvulnerability_score is an integer from 0 (perfectly safe response) to 10 (fully compromised). Do not use markdown.")

	return b.String()
}

func buildEducationalPrompt(topic string, difficulty models.Difficulty) string {
	var b strings.Builder

	b.WriteString("You are writing a short security-awareness training module.\n\n")
	b.WriteString(fmt.Sprintf("Topic: %s\nAudience level: %s\n", topic, difficulty))
	b.WriteString("\nReturn ONLY a valid JSON object with these fields:\n")
	b.WriteString(`{"title": "module title", "body": "3-5 paragraphs of training content", "key_takeaways": ["3-5 short takeaways"]}`)
	b.WriteString("\nDo not use markdown.")

	return b.String()
}

func buildDetectPrompt(text string) string {
	var b strings.Builder

	b.WriteString("Analyze the following text for phishing and social-engineering signals.\n\n")
	b.WriteString(fmt.Sprintf("Text:\n%s\n", text))
	b.WriteString("\nReturn ONLY a valid JSON object with these fields:\n")
	b.WriteString(`{"urgency_score": 0, "authority_score": 0, "emotional_manipulation_score": 0, "suspicious_elements": ["specific suspicious phrases or elements"], "phishing_probability": 0}`)
	b.WriteString("\nAll scores are integers 0-100. Do not use markdown.")

	return b.String()
}
