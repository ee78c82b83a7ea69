package postgres

import (
	"context"

	"github.com/baharkarakas/betsave-core/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type webhookFailuresRepo struct{ pool *pgxpool.Pool }

func (r *webhookFailuresRepo) Create(ctx context.Context, f models.WebhookFailure) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO webhook_failures(id, partner_name, event_id, job_key, attempts, last_error) VALUES($1,$2,$3,$4,$5,$6)`,
		f.ID, f.PartnerName, f.EventID, f.JobKey, f.Attempts, f.LastError,
	)
	return err
}

func (r *webhookFailuresRepo) List(ctx context.Context, limit, offset int) ([]models.WebhookFailure, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, partner_name, event_id, job_key, attempts, last_error, created_at
  FROM webhook_failures
 ORDER BY created_at DESC
 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.WebhookFailure{}
	for rows.Next() {
		var f models.WebhookFailure
		if err := rows.Scan(&f.ID, &f.PartnerName, &f.EventID, &f.JobKey, &f.Attempts, &f.LastError, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
