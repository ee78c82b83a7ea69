package postgres

import (
	"context"

	"github.com/baharkarakas/betsave-core/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type partnersRepo struct{ pool *pgxpool.Pool }

const partnerCols = `id, name, api_key, api_secret, status, COALESCE(webhook_url, ''), created_at, updated_at`

func (r *partnersRepo) GetByAPIKey(ctx context.Context, apiKey string) (models.Partner, error) {
	return r.getOne(ctx, `SELECT `+partnerCols+` FROM partners WHERE api_key=$1`, apiKey)
}

func (r *partnersRepo) GetByName(ctx context.Context, name string) (models.Partner, error) {
	return r.getOne(ctx, `SELECT `+partnerCols+` FROM partners WHERE name=$1`, name)
}

func (r *partnersRepo) getOne(ctx context.Context, q string, arg string) (models.Partner, error) {
	var p models.Partner
	err := r.pool.QueryRow(ctx, q, arg).Scan(
		&p.ID, &p.Name, &p.APIKey, &p.APISecret, &p.Status, &p.WebhookURL, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, mapErr(err)
}
