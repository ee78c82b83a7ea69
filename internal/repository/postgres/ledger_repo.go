package postgres

import (
	"context"

	"github.com/baharkarakas/betsave-core/internal/models"
	repo "github.com/baharkarakas/betsave-core/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ledgerRepo struct{ pool *pgxpool.Pool }

const ledgerCols = `id, event_id, user_id, account, amount, currency, reference, created_at`

func scanEntry(row pgx.Row) (models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := row.Scan(&e.ID, &e.EventID, &e.UserID, &e.Account, &e.Amount, &e.Currency, &e.Reference, &e.CreatedAt)
	return e, mapErr(err)
}

// WithTx runs fn in a single read-committed transaction. The savings unique
// index and the wallet upsert carry the concurrency guarantees.
func (r *ledgerRepo) WithTx(ctx context.Context, fn func(repo.LedgerTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	if err := fn(&ledgerTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *ledgerRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+ledgerCols+`
  FROM ledger_entries
 WHERE user_id=$1
 ORDER BY created_at DESC, account
 LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (r *ledgerRepo) ListByEvent(ctx context.Context, eventID string) ([]models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ledgerCols+` FROM ledger_entries WHERE event_id=$1 ORDER BY account`, eventID)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (r *ledgerRepo) TotalSaved(ctx context.Context) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::bigint FROM ledger_entries WHERE account='USER_SAVINGS'`,
	).Scan(&total)
	return total, err
}

func collectEntries(rows pgx.Rows) ([]models.LedgerEntry, error) {
	defer rows.Close()
	out := []models.LedgerEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type ledgerTx struct{ tx pgx.Tx }

func (t *ledgerTx) FindSavingsEntry(ctx context.Context, eventID, userID string) (models.LedgerEntry, error) {
	return scanEntry(t.tx.QueryRow(ctx, `
SELECT `+ledgerCols+`
  FROM ledger_entries
 WHERE event_id=$1 AND user_id=$2 AND account='USER_SAVINGS'`, eventID, userID))
}

func (t *ledgerTx) InsertEntries(ctx context.Context, entries []models.LedgerEntry) error {
	b := &pgx.Batch{}
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		e := entries[i]
		b.Queue(`
INSERT INTO ledger_entries (id, event_id, user_id, account, amount, currency, reference)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			e.ID, e.EventID, e.UserID, e.Account, e.Amount, e.Currency, e.Reference)
	}
	br := t.tx.SendBatch(ctx, b)
	for range entries {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return mapErr(err)
		}
	}
	return mapErr(br.Close())
}

func (t *ledgerTx) IncrementWallet(ctx context.Context, userID string, delta int64, lastLedgerID string) (models.Wallet, error) {
	var w models.Wallet
	err := t.tx.QueryRow(ctx, `
INSERT INTO wallets (user_id, balance, last_processed_ledger_id, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (user_id) DO UPDATE
   SET balance = wallets.balance + EXCLUDED.balance,
       last_processed_ledger_id = EXCLUDED.last_processed_ledger_id,
       updated_at = now()
RETURNING user_id, balance, last_processed_ledger_id, updated_at`,
		userID, delta, lastLedgerID,
	).Scan(&w.UserID, &w.Balance, &w.LastProcessedLedgerID, &w.UpdatedAt)
	return w, mapErr(err)
}

func (t *ledgerTx) GetWallet(ctx context.Context, userID string) (models.Wallet, error) {
	return getWallet(ctx, t.tx, userID)
}
