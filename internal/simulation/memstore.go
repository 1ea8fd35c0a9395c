package simulation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"phishguard-backend/internal/models"
)

type activePair struct {
	actorID    uuid.UUID
	templateID uuid.UUID
}

type sessionEntry struct {
	mu      sync.Mutex
	session *models.Session
}

// MemoryStore is the in-process SessionStore. Each session carries its own
// lock so transitions on one session never block transitions on another; the
// store-level lock only guards the maps.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*sessionEntry
	active   map[activePair]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[uuid.UUID]*sessionEntry),
		active:   make(map[activePair]uuid.UUID),
	}
}

func (s *MemoryStore) Create(ctx context.Context, session *models.Session) error {
	pair := activePair{actorID: session.ActorID, templateID: session.TemplateID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.active[pair]; exists {
		return models.ErrSessionConflict
	}

	s.sessions[session.ID] = &sessionEntry{session: cloneSession(session)}
	if session.State == models.SessionActive {
		s.active[pair] = session.ID
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, models.ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneSession(entry.session), nil
}

func (s *MemoryStore) Mutate(ctx context.Context, id uuid.UUID, fn func(*models.Session) error) (*models.Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, models.ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	wasActive := entry.session.State == models.SessionActive

	// fn works on a copy; a failed transition leaves the stored session
	// untouched.
	working := cloneSession(entry.session)
	if err := fn(working); err != nil {
		return nil, err
	}
	entry.session = working

	if wasActive && working.State != models.SessionActive {
		pair := activePair{actorID: working.ActorID, templateID: working.TemplateID}
		s.mu.Lock()
		if s.active[pair] == id {
			delete(s.active, pair)
		}
		s.mu.Unlock()
	}

	return cloneSession(working), nil
}

func (s *MemoryStore) ListExpired(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	s.mu.RLock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, entry := range s.sessions {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	var expired []uuid.UUID
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.session.State == models.SessionActive && entry.session.LastActivityAt.Before(cutoff) {
			expired = append(expired, entry.session.ID)
		}
		entry.mu.Unlock()
	}
	return expired, nil
}
