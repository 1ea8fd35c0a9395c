package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"phishguard-backend/internal/models"
)

type TemplateRepo struct {
	pool *pgxpool.Pool
}

func NewTemplateRepo(pool *pgxpool.Pool) *TemplateRepo {
	return &TemplateRepo{pool: pool}
}

func (r *TemplateRepo) Create(ctx context.Context, t *models.SimulationTemplate) error {
	t.ID = uuid.New()

	stepsBytes, err := json.Marshal(t.Steps)
	if err != nil {
		return fmt.Errorf("marshal template steps: %w", err)
	}

	query := `INSERT INTO templates (id, title, channel, difficulty, target_platform, active, steps_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		t.ID, t.Title, t.Channel, t.Difficulty, t.TargetPlatform, t.Active, stepsBytes,
	).Scan(&t.CreatedAt)
}

func (r *TemplateRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SimulationTemplate, error) {
	t := &models.SimulationTemplate{}
	var stepsBytes []byte

	query := `SELECT id, title, channel, difficulty, target_platform, active, steps_json, created_at
		FROM templates WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Title, &t.Channel, &t.Difficulty, &t.TargetPlatform, &t.Active, &stepsBytes, &t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(stepsBytes, &t.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal template steps: %w", err)
	}
	return t, nil
}

func (r *TemplateRepo) List(ctx context.Context, activeOnly bool) ([]*models.SimulationTemplate, error) {
	query := `SELECT id, title, channel, difficulty, target_platform, active, steps_json, created_at
		FROM templates ORDER BY created_at DESC`
	if activeOnly {
		query = `SELECT id, title, channel, difficulty, target_platform, active, steps_json, created_at
			FROM templates WHERE active = TRUE ORDER BY created_at DESC`
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := make([]*models.SimulationTemplate, 0)
	for rows.Next() {
		t := &models.SimulationTemplate{}
		var stepsBytes []byte
		if err := rows.Scan(&t.ID, &t.Title, &t.Channel, &t.Difficulty, &t.TargetPlatform, &t.Active, &stepsBytes, &t.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(stepsBytes, &t.Steps); err != nil {
			return nil, fmt.Errorf("unmarshal template steps: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (r *TemplateRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, "UPDATE templates SET active = $1 WHERE id = $2", active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrTemplateNotFound
	}
	return nil
}

func (r *TemplateRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM templates WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrTemplateNotFound
	}
	return nil
}
