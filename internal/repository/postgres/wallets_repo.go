package postgres

import (
	"context"

	"github.com/baharkarakas/betsave-core/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type walletsRepo struct{ pool *pgxpool.Pool }

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *walletsRepo) Get(ctx context.Context, userID string) (models.Wallet, error) {
	return getWallet(ctx, r.pool, userID)
}

func getWallet(ctx context.Context, q queryRower, userID string) (models.Wallet, error) {
	var w models.Wallet
	err := q.QueryRow(ctx,
		`SELECT user_id, balance, last_processed_ledger_id, updated_at
		   FROM wallets
		  WHERE user_id=$1`,
		userID,
	).Scan(&w.UserID, &w.Balance, &w.LastProcessedLedgerID, &w.UpdatedAt)
	return w, mapErr(err)
}
