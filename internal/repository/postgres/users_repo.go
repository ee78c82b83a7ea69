// internal/repository/postgres/users_repo.go
package postgres

import (
	"context"

	"github.com/baharkarakas/betsave-core/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type usersRepo struct{ pool *pgxpool.Pool }

func (r *usersRepo) GetByPhone(ctx context.Context, phone string) (models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, phone_number, verified, status, auto_save, created_at, updated_at
		   FROM users WHERE phone_number=$1`, phone,
	).Scan(&u.ID, &u.PhoneNumber, &u.Verified, &u.Status, &u.AutoSave, &u.CreatedAt, &u.UpdatedAt)
	return u, mapErr(err)
}

func (r *usersRepo) GetLink(ctx context.Context, partnerID, userID string) (models.PartnerUser, error) {
	var l models.PartnerUser
	err := r.pool.QueryRow(ctx,
		`SELECT partner_id, partner_name, user_id, phone_number, source, status, created_at
		   FROM partner_users WHERE partner_id=$1 AND user_id=$2`, partnerID, userID,
	).Scan(&l.PartnerID, &l.PartnerName, &l.UserID, &l.PhoneNumber, &l.Source, &l.Status, &l.CreatedAt)
	return l, mapErr(err)
}

func (r *usersRepo) EnsureLink(ctx context.Context, l models.PartnerUser) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO partner_users(partner_id, partner_name, user_id, phone_number, source, status)
		 VALUES($1,$2,$3,$4,$5,$6)
		 ON CONFLICT DO NOTHING`,
		l.PartnerID, l.PartnerName, l.UserID, l.PhoneNumber, l.Source, l.Status,
	)
	return mapErr(err)
}
