// Package scoring turns a session's interaction log into a vulnerability
// assessment. Everything here is pure: same inputs, same output, no I/O.
package scoring

import (
	"math"

	"phishguard-backend/internal/models"
)

// Score grades an ordered interaction log against its template.
//
// Each answered step contributes +w for a correct decision and -w for a risky
// one, where w is the step's configured weight (unset weights count as 1).
// The raw sum is normalized against the maximum achievable over ALL steps:
//
//	score = round((raw + max) / (2*max) * 100)
//
// so a perfect run scores 100, an all-risky run scores 0, and unanswered
// steps sit at the midline while the breakdown reports them separately.
// With no scoreable steps the result is 0 with the NoData flag set.
func Score(interactions []models.Interaction, template *models.SimulationTemplate) models.ScoreResult {
	result := models.ScoreResult{
		Steps: make([]models.StepOutcome, 0, len(template.Steps)),
	}

	answered := make(map[int]models.Interaction, len(interactions))
	for _, interaction := range interactions {
		if interaction.StepIndex >= 0 && interaction.StepIndex < len(template.Steps) {
			answered[interaction.StepIndex] = interaction
		}
	}

	raw := 0
	max := 0
	for i, step := range template.Steps {
		weight := step.StepWeight()
		max += weight

		outcome := models.StepOutcome{StepIndex: i, Weight: weight}

		interaction, ok := answered[i]
		if !ok {
			result.Unanswered++
			result.Steps = append(result.Steps, outcome)
			continue
		}

		outcome.Answered = true
		outcome.Correct = interaction.Correct
		if option := step.Option(interaction.OptionID); option != nil {
			outcome.Feedback = option.Feedback
		}

		if interaction.Correct {
			raw += weight
			result.Correct++
		} else {
			raw -= weight
			result.Risky++
		}

		result.Steps = append(result.Steps, outcome)
	}

	if max == 0 || len(answered) == 0 {
		result.NoData = true
		result.Score = 0
		return result
	}

	normalized := float64(raw+max) / float64(2*max) * 100
	result.Score = clamp(int(math.Round(normalized)))
	return result
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
