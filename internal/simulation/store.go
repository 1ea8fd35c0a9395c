package simulation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"phishguard-backend/internal/models"
)

// SessionStore is the persistence boundary for sessions and the only shared
// mutable state in the engine. Implementations must serialize Mutate calls
// per session id while letting different sessions proceed in parallel, and
// must enforce the one-active-session-per-(actor,template) rule in Create.
type SessionStore interface {
	// Create persists a new session. Returns models.ErrSessionConflict when
	// an Active session already exists for the same actor and template.
	Create(ctx context.Context, session *models.Session) error

	// Get returns a snapshot of the session or models.ErrSessionNotFound.
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)

	// Mutate applies fn to the session under the per-session lock. If fn
	// returns an error nothing is written and the error is returned
	// unchanged. On success the updated snapshot is returned.
	Mutate(ctx context.Context, id uuid.UUID, fn func(*models.Session) error) (*models.Session, error)

	// ListExpired returns ids of Active sessions with no activity since the
	// cutoff. Used by the expiry watchdog.
	ListExpired(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// cloneSession copies a session deeply enough that callers cannot alias the
// store's internal slices.
func cloneSession(s *models.Session) *models.Session {
	clone := *s
	clone.Interactions = append([]models.Interaction(nil), s.Interactions...)
	clone.Artifacts = append([]models.ContentArtifact(nil), s.Artifacts...)
	if s.FinalScore != nil {
		score := *s.FinalScore
		score.Steps = append([]models.StepOutcome(nil), s.FinalScore.Steps...)
		clone.FinalScore = &score
	}
	return &clone
}
