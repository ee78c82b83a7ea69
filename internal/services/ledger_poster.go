package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/baharkarakas/betsave-core/internal/metrics"
	"github.com/baharkarakas/betsave-core/internal/models"
	repo "github.com/baharkarakas/betsave-core/internal/repository"
)

var ErrLedgerImbalance = errors.New("ledger entries do not balance")

// Posting is one savings credit. EventID is the internal event row id.
type Posting struct {
	UserID    string
	EventID   string
	Amount    int64
	Reference string
}

type PostResult struct {
	Wallet         models.Wallet
	SavingsEntryID string
	// Duplicate is set when the event was already credited and nothing was written.
	Duplicate bool
}

// LedgerPoster writes the balanced clearing/savings pair and the wallet
// increment in one transaction.
type LedgerPoster struct {
	ledger   repo.Ledger
	currency string
	log      *slog.Logger
}

func NewLedgerPoster(l repo.Ledger, currency string, log *slog.Logger) *LedgerPoster {
	if log == nil {
		log = slog.Default()
	}
	return &LedgerPoster{ledger: l, currency: currency, log: log}
}

// Post credits p.Amount to the user's savings at most once per (event, user).
// A poster that loses the unique-index race to a concurrent one runs again so
// the idempotency check answers with the winner's result.
func (lp *LedgerPoster) Post(ctx context.Context, p Posting) (PostResult, error) {
	if p.Amount <= 0 {
		metrics.LedgerPostings.WithLabelValues("error").Inc()
		return PostResult{}, ErrInvalidAmount
	}
	res, err := lp.post(ctx, p)
	if errors.Is(err, repo.ErrDuplicate) {
		lp.log.Info("ledger race lost, re-checking", "event_id", p.EventID, "user_id", p.UserID)
		res, err = lp.post(ctx, p)
	}
	switch {
	case err != nil:
		metrics.LedgerPostings.WithLabelValues("error").Inc()
	case res.Duplicate:
		metrics.LedgerPostings.WithLabelValues("duplicate").Inc()
	default:
		metrics.LedgerPostings.WithLabelValues("posted").Inc()
		metrics.SavingsCredited.Add(float64(p.Amount))
	}
	return res, err
}

func (lp *LedgerPoster) post(ctx context.Context, p Posting) (PostResult, error) {
	var res PostResult
	err := lp.ledger.WithTx(ctx, func(tx repo.LedgerTx) error {
		existing, err := tx.FindSavingsEntry(ctx, p.EventID, p.UserID)
		switch {
		case err == nil:
			w, err := tx.GetWallet(ctx, p.UserID)
			if err != nil && !errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("read wallet: %w", err)
			}
			res = PostResult{Wallet: w, SavingsEntryID: existing.ID, Duplicate: true}
			return nil
		case !errors.Is(err, repo.ErrNotFound):
			return fmt.Errorf("check savings entry: %w", err)
		}

		entries := lp.pair(p)
		if sum := models.SumEntries(entries); sum != 0 {
			return fmt.Errorf("%w: sum %d", ErrLedgerImbalance, sum)
		}
		if err := tx.InsertEntries(ctx, entries); err != nil {
			return fmt.Errorf("insert entries: %w", err)
		}
		savings := entries[1]
		w, err := tx.IncrementWallet(ctx, p.UserID, savings.Amount, savings.ID)
		if err != nil {
			return fmt.Errorf("update wallet: %w", err)
		}
		res = PostResult{Wallet: w, SavingsEntryID: savings.ID}
		return nil
	})
	if err != nil {
		return PostResult{}, err
	}
	return res, nil
}

// pair returns the clearing debit followed by the savings credit.
func (lp *LedgerPoster) pair(p Posting) []models.LedgerEntry {
	base := models.LedgerEntry{
		EventID:   p.EventID,
		UserID:    p.UserID,
		Currency:  lp.currency,
		Reference: p.Reference,
	}
	debit, credit := base, base
	debit.Account, debit.Amount = models.AccountOperatorClearing, -p.Amount
	credit.Account, credit.Amount = models.AccountUserSavings, p.Amount
	return []models.LedgerEntry{debit, credit}
}
