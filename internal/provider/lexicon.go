package provider

import (
	"strings"

	"phishguard-backend/internal/models"
)

// Keyword lexicons for offline phishing detection. Signal weights follow the
// common observation that authority framing is the strongest single indicator
// in credential-phishing text, urgency second, emotional pressure third.
var (
	urgencyKeywords = []string{
		"urgent", "immediately", "asap", "right away", "now",
		"within 24 hours", "expires", "act fast", "time sensitive",
		"today", "last chance", "final notice", "hurry",
	}

	authorityKeywords = []string{
		"verify", "account", "suspended", "security team", "administrator",
		"bank", "it department", "compliance", "official", "ceo",
		"confirm your identity", "unauthorized", "policy",
	}

	emotionKeywords = []string{
		"will be suspended", "will be closed", "will be deleted",
		"lose access", "permanently", "risk", "warning", "consequences",
		"congratulations", "winner", "selected", "free",
	}
)

const (
	signalHitValue = 30 // each lexicon hit adds 30 to its sub-score, capped at 100

	// highBandFloor enforces the documented guarantee: two or more urgency
	// hits combined with at least one authority or emotion hit never score
	// below the high band, regardless of how the weighted blend lands.
	highBandFloor = 60
)

// detectText runs the fixed-lexicon analysis. Two or more urgency hits
// combined with at least one authority or emotion hit always lands the
// probability at 60 or above (the documented high band).
func detectText(text string) *models.DetectionResult {
	lower := strings.ToLower(text)

	urgencyHits := countKeywords(lower, urgencyKeywords)
	authorityHits := countKeywords(lower, authorityKeywords)
	emotionHits := countKeywords(lower, emotionKeywords)

	result := &models.DetectionResult{
		UrgencyScore:       capScore(urgencyHits * signalHitValue),
		AuthorityScore:     capScore(authorityHits * signalHitValue),
		EmotionScore:       capScore(emotionHits * signalHitValue),
		SuspiciousElements: suspiciousElements(text, lower),
	}

	// Weighted blend of the three sub-scores.
	probability := float64(result.AuthorityScore)*0.35 +
		float64(result.UrgencyScore)*0.40 +
		float64(result.EmotionScore)*0.25

	// Structural oddities (raw links, caps shouting) push the probability up
	// even when the lexicons are quiet.
	probability += float64(len(result.SuspiciousElements)) * 5

	if urgencyHits >= 2 && (authorityHits >= 1 || emotionHits >= 1) && probability < highBandFloor {
		probability = highBandFloor
	}

	result.PhishingProbability = capScore(int(probability + 0.5))
	return result
}

func countKeywords(text string, keywords []string) int {
	count := 0
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			count++
		}
	}
	return count
}

func suspiciousElements(original, lower string) []string {
	elements := []string{}

	if strings.Contains(lower, "http://") {
		elements = append(elements, "unencrypted link")
	}
	if strings.Contains(lower, "bit.ly/") || strings.Contains(lower, "tinyurl.com/") {
		elements = append(elements, "shortened link")
	}
	if strings.Contains(lower, "password") || strings.Contains(lower, "credential") {
		elements = append(elements, "credential request")
	}
	if strings.Contains(lower, "attachment") || strings.Contains(lower, ".exe") || strings.Contains(lower, ".zip") {
		elements = append(elements, "attachment lure")
	}
	for _, word := range strings.Fields(original) {
		trimmed := strings.Trim(word, "!?.,:;")
		if len(trimmed) >= 4 && trimmed == strings.ToUpper(trimmed) && trimmed != strings.ToLower(trimmed) {
			elements = append(elements, "all-caps emphasis")
			break
		}
	}
	if strings.Count(original, "!") >= 1 {
		elements = append(elements, "exclamatory pressure")
	}

	return elements
}

func capScore(n int) int {
	if n > 100 {
		return 100
	}
	if n < 0 {
		return 0
	}
	return n
}
