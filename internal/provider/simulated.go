package provider

import (
	"context"
	"fmt"
	"strings"

	"phishguard-backend/internal/models"
)

const simulatedProviderName = "simulated"

// SimulatedProvider is the deterministic offline content backend. It never
// fails for valid input, which makes it both the development default and the
// guaranteed fallback behind the live provider.
type SimulatedProvider struct{}

func NewSimulatedProvider() *SimulatedProvider {
	return &SimulatedProvider{}
}

type artifactTemplate struct {
	subject  string
	body     string
	redFlags []string
}

// Fixed generation templates keyed by (channel, urgency). Bodies use
// {{platform}} and {{details}} tokens substituted per request.
var artifactTemplates = map[models.Channel]map[models.Urgency]artifactTemplate{
	models.ChannelEmail: {
		models.UrgencyLow: {
			subject: "{{platform}} account notice",
			body: "Hello,\n\nWe noticed a routine update is pending for your {{platform}} account. " +
				"When convenient, please review your settings at the link below.\n\n{{details}}\n\nRegards,\nThe {{platform}} Team",
			redFlags: []string{"generic greeting", "vague pending update", "unverified sender"},
		},
		models.UrgencyMedium: {
			subject: "Action needed: confirm your {{platform}} details",
			body: "Hello,\n\nOur records show your {{platform}} profile information is out of date. " +
				"Please confirm your details within the next few days to avoid interruptions.\n\n{{details}}\n\nThank you,\n{{platform}} Support",
			redFlags: []string{"generic greeting", "request to confirm details", "soft deadline pressure", "unverified sender"},
		},
		models.UrgencyHigh: {
			subject: "URGENT: verify your {{platform}} account within 24 hours",
			body: "Dear user,\n\nWe detected unusual sign-in activity on your {{platform}} account. " +
				"You must verify your identity within 24 hours or your account will be suspended.\n\n{{details}}\n\n{{platform}} Security Team",
			redFlags: []string{"urgent deadline", "threat of suspension", "generic greeting", "request to verify identity", "unverified sender"},
		},
		models.UrgencyCritical: {
			subject: "FINAL NOTICE: your {{platform}} account will be closed today",
			body: "Dear user,\n\nThis is your last chance to keep your {{platform}} account. " +
				"Unauthorized charges were detected and the account will be permanently closed today unless you confirm your identity immediately.\n\n{{details}}\n\n{{platform}} Security Team",
			redFlags: []string{"extreme deadline", "threat of permanent closure", "claim of unauthorized charges", "generic greeting", "request to confirm identity", "unverified sender"},
		},
	},
	models.ChannelSMS: {
		models.UrgencyLow: {
			subject: "{{platform}} reminder",
			body:    "{{platform}}: a message is waiting in your account. {{details}}",
			redFlags: []string{"unexpected sender", "link in text message"},
		},
		models.UrgencyMedium: {
			subject: "{{platform}} alert",
			body:    "{{platform}} alert: please confirm your recent activity. {{details}}",
			redFlags: []string{"unexpected sender", "request to confirm activity", "link in text message"},
		},
		models.UrgencyHigh: {
			subject: "{{platform}} security alert",
			body:    "{{platform}} security: suspicious login detected. Verify now or access will be locked: {{details}}",
			redFlags: []string{"urgent verification demand", "threat of lockout", "link in text message", "unexpected sender"},
		},
		models.UrgencyCritical: {
			subject: "{{platform}} final warning",
			body:    "FINAL WARNING from {{platform}}: your account will be deleted in 1 hour. Act immediately: {{details}}",
			redFlags: []string{"extreme deadline", "all-caps pressure", "threat of deletion", "link in text message", "unexpected sender"},
		},
	},
	models.ChannelWebsite: {
		models.UrgencyLow: {
			subject: "{{platform}} sign-in",
			body:    "Welcome back to {{platform}}. Please sign in to continue. {{details}}",
			redFlags: []string{"look-alike domain", "no https indicator"},
		},
		models.UrgencyMedium: {
			subject: "{{platform}} session expired",
			body:    "Your {{platform}} session has expired. Sign in again to restore access. {{details}}",
			redFlags: []string{"look-alike domain", "unprompted re-authentication", "no https indicator"},
		},
		models.UrgencyHigh: {
			subject: "{{platform}} security checkpoint",
			body:    "Security checkpoint: unusual activity requires you to re-enter your {{platform}} credentials now. {{details}}",
			redFlags: []string{"credential harvesting form", "urgency banner", "look-alike domain", "no https indicator"},
		},
		models.UrgencyCritical: {
			subject: "{{platform}} account recovery",
			body:    "IMMEDIATE ACTION REQUIRED: confirm your {{platform}} password and payment details to prevent account deletion. {{details}}",
			redFlags: []string{"password and payment request", "extreme deadline", "all-caps pressure", "look-alike domain", "no https indicator"},
		},
	},
}

func (p *SimulatedProvider) Generate(ctx context.Context, req GenerateRequest) (*models.ContentArtifact, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	tmpl := artifactTemplates[req.Kind][req.Urgency]

	platform := req.TargetPlatform
	if platform == "" {
		platform = "your service"
	}
	details := req.CustomDetails
	if details == "" {
		details = "https://account-verify.example.com/confirm"
	}

	substitute := func(s string) string {
		s = strings.ReplaceAll(s, "{{platform}}", platform)
		s = strings.ReplaceAll(s, "{{details}}", details)
		return s
	}

	return &models.ContentArtifact{
		Subject:   substitute(tmpl.subject),
		Body:      substitute(tmpl.body),
		Channel:   req.Kind,
		Urgency:   req.Urgency,
		RedFlags:  append([]string{}, tmpl.redFlags...),
		Simulated: true,
		Provider:  simulatedProviderName,
	}, nil
}

// Response markers used to grade freeform answers. Safe markers describe
// trained behavior, risky markers describe compliance with the lure.
var (
	safeResponseMarkers = []string{
		"report", "phishing", "scam", "delete", "ignore", "suspicious",
		"don't click", "do not click", "verify with", "contact it", "official website",
	}
	riskyResponseMarkers = []string{
		"click", "clicked", "open the link", "password", "log in", "login",
		"provide", "reply with", "call the number", "enter my",
	}
)

func (p *SimulatedProvider) AnalyzeResponse(ctx context.Context, req AnalyzeRequest) (*models.AnalysisResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	lower := strings.ToLower(req.ResponseText)
	safeHits := countKeywords(lower, safeResponseMarkers)
	riskyHits := countKeywords(lower, riskyResponseMarkers)

	// Start mid-scale and move with the evidence: risky behavior raises the
	// vulnerability score, trained behavior lowers it.
	score := 5 + riskyHits*2 - safeHits*2
	if score > 10 {
		score = 10
	}
	if score < 0 {
		score = 0
	}

	missed := []string{}
	for _, flag := range req.Context.RedFlags {
		if !strings.Contains(lower, strings.ToLower(flag)) {
			missed = append(missed, flag)
		}
	}

	level := models.RiskLevelForScore(score)

	return &models.AnalysisResult{
		VulnerabilityScore: score,
		MissedRedFlags:     missed,
		Recommendations:    recommendationsFor(level, req.Context.Channel),
		RiskLevel:          level,
		Simulated:          true,
	}, nil
}

func recommendationsFor(level models.RiskLevel, channel models.Channel) []string {
	recs := []string{
		"Verify unexpected requests through an independent channel before acting.",
		"Check the sender address or domain character by character.",
	}

	switch level {
	case models.RiskHigh:
		recs = append(recs,
			"Never enter credentials from a link you did not initiate.",
			"Report suspected phishing to your security team immediately.")
	case models.RiskMedium:
		recs = append(recs,
			"Slow down when a message applies time pressure; urgency is the attacker's tool.")
	default:
		recs = append(recs,
			"Keep treating unexpected messages with the same skepticism.")
	}

	if channel == models.ChannelSMS {
		recs = append(recs, "Do not tap links in text messages from unknown numbers.")
	}

	return recs
}

func (p *SimulatedProvider) GenerateEducational(ctx context.Context, topic string, difficulty models.Difficulty) (*models.EducationalContent, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("%w: topic is required", models.ErrValidation)
	}
	if !difficulty.Valid() {
		return nil, fmt.Errorf("%w: invalid difficulty %q", models.ErrValidation, string(difficulty))
	}

	depth := map[models.Difficulty]string{
		models.DifficultyBeginner:     "This introduction covers the basics",
		models.DifficultyIntermediate: "This module builds on the fundamentals",
		models.DifficultyAdvanced:     "This deep dive examines attacker tradecraft",
	}[difficulty]

	body := fmt.Sprintf(
		"%s of %s.\n\nSocial-engineering attacks succeed by exploiting trust, urgency, and authority. "+
			"Attackers impersonate services you rely on and press you to act before thinking. "+
			"The reliable defense is process: verify out of band, inspect addresses, and report anything unexpected.",
		depth, topic)

	return &models.EducationalContent{
		Topic:      topic,
		Difficulty: difficulty,
		Title:      fmt.Sprintf("Recognizing %s", topic),
		Body:       body,
		KeyTakeaways: []string{
			"Urgency and authority pressure are the two most common manipulation signals.",
			"Verify requests through a channel you initiate, not one the message provides.",
			"Reporting a suspected attack protects everyone, not just you.",
		},
		Simulated: true,
	}, nil
}

func (p *SimulatedProvider) Detect(ctx context.Context, text string) (*models.DetectionResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", models.ErrValidation)
	}
	return detectText(text), nil
}
