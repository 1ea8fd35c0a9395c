package simulation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"phishguard-backend/internal/models"
)

func newActiveSession(actorID, templateID uuid.UUID) *models.Session {
	now := time.Now().UTC()
	return &models.Session{
		ID:             uuid.New(),
		TemplateID:     templateID,
		ActorID:        actorID,
		State:          models.SessionActive,
		Interactions:   []models.Interaction{},
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	session := newActiveSession(uuid.New(), uuid.New())

	if err := store.Create(context.Background(), session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != session.ID || got.State != models.SessionActive {
		t.Errorf("Got wrong session back: %+v", got)
	}
}

func TestMemoryStore_GetUnknownID(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), uuid.New())
	if !errors.Is(err, models.ErrSessionNotFound) {
		t.Fatalf("Expected session not found, got %v", err)
	}
}

func TestMemoryStore_ActivePairConflict(t *testing.T) {
	store := NewMemoryStore()
	actorID, templateID := uuid.New(), uuid.New()

	if err := store.Create(context.Background(), newActiveSession(actorID, templateID)); err != nil {
		t.Fatalf("First create failed: %v", err)
	}

	err := store.Create(context.Background(), newActiveSession(actorID, templateID))
	if !errors.Is(err, models.ErrSessionConflict) {
		t.Fatalf("Expected conflict for duplicate active pair, got %v", err)
	}
}

func TestMemoryStore_ConflictClearsOnTerminalState(t *testing.T) {
	store := NewMemoryStore()
	actorID, templateID := uuid.New(), uuid.New()
	session := newActiveSession(actorID, templateID)

	if err := store.Create(context.Background(), session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := store.Mutate(context.Background(), session.ID, func(s *models.Session) error {
		s.State = models.SessionAbandoned
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}

	if err := store.Create(context.Background(), newActiveSession(actorID, templateID)); err != nil {
		t.Fatalf("Pair must be reusable after the first session went terminal: %v", err)
	}
}

func TestMemoryStore_MutateErrorLeavesSessionUntouched(t *testing.T) {
	store := NewMemoryStore()
	session := newActiveSession(uuid.New(), uuid.New())
	store.Create(context.Background(), session)

	boom := errors.New("transition rejected")
	_, err := store.Mutate(context.Background(), session.ID, func(s *models.Session) error {
		s.State = models.SessionCompleted
		s.Interactions = append(s.Interactions, models.Interaction{StepIndex: 0})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected fn error back, got %v", err)
	}

	got, _ := store.Get(context.Background(), session.ID)
	if got.State != models.SessionActive {
		t.Errorf("Failed mutation must not change state, got %s", got.State)
	}
	if len(got.Interactions) != 0 {
		t.Error("Failed mutation must not append interactions")
	}
}

func TestMemoryStore_GetReturnsSnapshot(t *testing.T) {
	store := NewMemoryStore()
	session := newActiveSession(uuid.New(), uuid.New())
	store.Create(context.Background(), session)

	got, _ := store.Get(context.Background(), session.ID)
	got.State = models.SessionCompleted
	got.Interactions = append(got.Interactions, models.Interaction{StepIndex: 99})

	fresh, _ := store.Get(context.Background(), session.ID)
	if fresh.State != models.SessionActive || len(fresh.Interactions) != 0 {
		t.Error("Mutating a returned snapshot must not affect the stored session")
	}
}

func TestMemoryStore_ConcurrentMutationsSerialized(t *testing.T) {
	store := NewMemoryStore()
	session := newActiveSession(uuid.New(), uuid.New())
	store.Create(context.Background(), session)

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			store.Mutate(context.Background(), session.ID, func(s *models.Session) error {
				s.ExpectedStep++
				return nil
			})
		}()
	}
	wg.Wait()

	got, _ := store.Get(context.Background(), session.ID)
	if got.ExpectedStep != workers {
		t.Errorf("Expected %d serialized increments, got %d", workers, got.ExpectedStep)
	}
}

func TestMemoryStore_ListExpired(t *testing.T) {
	store := NewMemoryStore()

	stale := newActiveSession(uuid.New(), uuid.New())
	stale.LastActivityAt = time.Now().UTC().Add(-time.Hour)
	fresh := newActiveSession(uuid.New(), uuid.New())

	store.Create(context.Background(), stale)
	store.Create(context.Background(), fresh)

	// Terminal sessions never expire, however old.
	done := newActiveSession(uuid.New(), uuid.New())
	done.LastActivityAt = time.Now().UTC().Add(-time.Hour)
	store.Create(context.Background(), done)
	store.Mutate(context.Background(), done.ID, func(s *models.Session) error {
		s.State = models.SessionCompleted
		return nil
	})

	expired, err := store.ListExpired(context.Background(), time.Now().UTC().Add(-30*time.Minute))
	if err != nil {
		t.Fatalf("ListExpired failed: %v", err)
	}
	if len(expired) != 1 || expired[0] != stale.ID {
		t.Errorf("Expected only the stale active session, got %v", expired)
	}
}

func TestWatchdog_SweepExpiresIdleSessions(t *testing.T) {
	template := testTemplate()
	manager, _ := newTestManager(t, template)

	start, err := manager.Start(context.Background(), template.ID, uuid.New())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	store := manager.store.(*MemoryStore)
	store.Mutate(context.Background(), start.Session.ID, func(s *models.Session) error {
		s.LastActivityAt = time.Now().UTC().Add(-time.Hour)
		return nil
	})

	watchdog := NewWatchdog(manager, store, 30*time.Minute)
	watchdog.Sweep(context.Background())

	session, _ := manager.Get(context.Background(), start.Session.ID)
	if session.State != models.SessionAbandoned {
		t.Errorf("Sweep must abandon idle sessions, got %s", session.State)
	}
}
