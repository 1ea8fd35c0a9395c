package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"phishguard-backend/internal/models"
)

// SessionRepo is the Postgres-backed session store. Mutations run inside a
// transaction holding a row lock, so concurrent transitions on the same
// session serialize while different sessions proceed in parallel. The
// one-active-session-per-(actor,template) rule is enforced by a partial
// unique index.
type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

const sessionColumns = `id, template_id, actor_id, state, expected_step,
	interactions_json, artifacts_json, final_score_json, created_at, last_activity_at, completed_at`

func (r *SessionRepo) Create(ctx context.Context, s *models.Session) error {
	interactionsBytes, artifactsBytes, scoreBytes, err := marshalSessionJSON(s)
	if err != nil {
		return err
	}

	query := `INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = r.pool.Exec(ctx, query,
		s.ID, s.TemplateID, s.ActorID, s.State, s.ExpectedStep,
		interactionsBytes, artifactsBytes, scoreBytes, s.CreatedAt, s.LastActivityAt, s.CompletedAt,
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return models.ErrSessionConflict
	}
	return err
}

func (r *SessionRepo) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (r *SessionRepo) Mutate(ctx context.Context, id uuid.UUID, fn func(*models.Session) error) (*models.Session, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, id)
	session, err := scanSession(row)
	if err != nil {
		return nil, err
	}

	if err := fn(session); err != nil {
		return nil, err
	}

	interactionsBytes, artifactsBytes, scoreBytes, err := marshalSessionJSON(session)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `UPDATE sessions SET state = $1, expected_step = $2, interactions_json = $3,
		artifacts_json = $4, final_score_json = $5, last_activity_at = $6, completed_at = $7 WHERE id = $8`,
		session.State, session.ExpectedStep, interactionsBytes,
		artifactsBytes, scoreBytes, session.LastActivityAt, session.CompletedAt, id,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return session, nil
}

func (r *SessionRepo) ListExpired(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id FROM sessions WHERE state = $1 AND last_activity_at < $2",
		models.SessionActive, cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByActor returns an actor's sessions, newest first.
func (r *SessionRepo) ListByActor(ctx context.Context, actorID uuid.UUID) ([]*models.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE actor_id = $1 ORDER BY created_at DESC`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func marshalSessionJSON(s *models.Session) (interactions, artifacts, score []byte, err error) {
	interactions, err = json.Marshal(s.Interactions)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal interactions: %w", err)
	}
	artifacts, err = json.Marshal(s.Artifacts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal artifacts: %w", err)
	}
	if s.FinalScore != nil {
		score, err = json.Marshal(s.FinalScore)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal final score: %w", err)
		}
	}
	return interactions, artifacts, score, nil
}

func scanSession(row pgx.Row) (*models.Session, error) {
	s := &models.Session{}
	var interactionsBytes, artifactsBytes, scoreBytes []byte

	err := row.Scan(
		&s.ID, &s.TemplateID, &s.ActorID, &s.State, &s.ExpectedStep,
		&interactionsBytes, &artifactsBytes, &scoreBytes, &s.CreatedAt, &s.LastActivityAt, &s.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(interactionsBytes, &s.Interactions); err != nil {
		return nil, fmt.Errorf("unmarshal interactions: %w", err)
	}
	if err := json.Unmarshal(artifactsBytes, &s.Artifacts); err != nil {
		return nil, fmt.Errorf("unmarshal artifacts: %w", err)
	}
	if len(scoreBytes) > 0 {
		s.FinalScore = &models.ScoreResult{}
		if err := json.Unmarshal(scoreBytes, s.FinalScore); err != nil {
			return nil, fmt.Errorf("unmarshal final score: %w", err)
		}
	}
	return s, nil
}
