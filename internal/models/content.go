package models

// ContentArtifact is generated phishing-style content. Both provider
// implementations populate every field; Simulated and Provider are the only
// provenance signals exposed to callers.
type ContentArtifact struct {
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	Channel   Channel  `json:"channel"`
	Urgency   Urgency  `json:"urgency"`
	RedFlags  []string `json:"red_flags"`
	Simulated bool     `json:"simulated"`
	Provider  string   `json:"provider"`
}

// AnalysisResult grades a freeform user response against a simulation context.
type AnalysisResult struct {
	VulnerabilityScore int       `json:"vulnerability_score"` // 0-10
	MissedRedFlags     []string  `json:"missed_red_flags"`
	Recommendations    []string  `json:"recommendations"`
	RiskLevel          RiskLevel `json:"risk_level"`
	Simulated          bool      `json:"simulated"`
}

// DetectionResult is the per-signal breakdown of raw-text phishing detection.
type DetectionResult struct {
	UrgencyScore        int      `json:"urgency_score"`
	AuthorityScore      int      `json:"authority_score"`
	EmotionScore        int      `json:"emotional_manipulation_score"`
	SuspiciousElements  []string `json:"suspicious_elements"`
	PhishingProbability int      `json:"phishing_probability"` // 0-100
}

// EducationalContent is a generated training module for one topic.
type EducationalContent struct {
	Topic        string     `json:"topic"`
	Difficulty   Difficulty `json:"difficulty"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	KeyTakeaways []string   `json:"key_takeaways"`
	Simulated    bool       `json:"simulated"`
}
