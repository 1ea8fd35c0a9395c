package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"phishguard-backend/internal/models"
)

// DeliveryRepo is the audit log of outbound sends. Rows are append-only.
type DeliveryRepo struct {
	pool *pgxpool.Pool
}

func NewDeliveryRepo(pool *pgxpool.Pool) *DeliveryRepo {
	return &DeliveryRepo{pool: pool}
}

// RecordBatch persists every per-recipient result of one dispatch, success
// and failure alike.
func (r *DeliveryRepo) RecordBatch(ctx context.Context, jobID uuid.UUID, results []models.DeliveryResult) error {
	for _, result := range results {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO deliveries (id, job_id, recipient_name, recipient_address, channel, ok, error, sent_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New(), jobID, result.Recipient.Name, result.Recipient.Address,
			result.Channel, result.OK, result.Error, result.SentAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListByJob returns the per-recipient results recorded for a dispatch job.
func (r *DeliveryRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.DeliveryResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT recipient_name, recipient_address, channel, ok, error, sent_at
		 FROM deliveries WHERE job_id = $1 ORDER BY sent_at`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]models.DeliveryResult, 0)
	for rows.Next() {
		var result models.DeliveryResult
		if err := rows.Scan(
			&result.Recipient.Name, &result.Recipient.Address,
			&result.Channel, &result.OK, &result.Error, &result.SentAt,
		); err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
