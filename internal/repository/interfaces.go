package repository

import (
	"context"
	"errors"
	"time"

	"github.com/baharkarakas/betsave-core/internal/models"
)

var (
	ErrNotFound  = errors.New("repository: not found")
	ErrDuplicate = errors.New("repository: duplicate key")
)

// Partners is the read side of the partner registry.
type Partners interface {
	GetByAPIKey(ctx context.Context, apiKey string) (models.Partner, error)
	GetByName(ctx context.Context, name string) (models.Partner, error)
}

// Users is the read side of the user/eligibility registry.
type Users interface {
	GetByPhone(ctx context.Context, phone string) (models.User, error)
	GetLink(ctx context.Context, partnerID, userID string) (models.PartnerUser, error)
	// EnsureLink inserts the link unless one already exists for (partner, user).
	EnsureLink(ctx context.Context, link models.PartnerUser) error
}

type Events interface {
	GetByKey(ctx context.Context, partnerName, eventID string) (models.Event, error)
	GetByID(ctx context.Context, id string) (models.Event, error)
	// Create inserts the event unless (partner_name, event_id) exists; inserted
	// is false when another row already holds the natural key.
	Create(ctx context.Context, ev models.Event) (created models.Event, inserted bool, err error)
	// Claim moves RECEIVED -> PROCESSING; ErrNotFound when no RECEIVED row matched.
	Claim(ctx context.Context, partnerName, eventID string) (models.Event, error)
	MarkProcessed(ctx context.Context, id string, savings int64) error
	MarkFailed(ctx context.Context, id string, reason string) error
	// ResetStale moves PROCESSING rows not touched since before back to RECEIVED.
	ResetStale(ctx context.Context, before time.Time, limit int) ([]models.Event, error)
	ListReceivedBefore(ctx context.Context, before time.Time, limit int) ([]models.Event, error)
	List(ctx context.Context, f models.EventFilter) ([]models.Event, error)
	CountByStatus(ctx context.Context, partnerName string) (map[models.EventStatus]int64, error)
}

// LedgerTx is the unit of work handed to Ledger.WithTx.
type LedgerTx interface {
	FindSavingsEntry(ctx context.Context, eventID, userID string) (models.LedgerEntry, error)
	InsertEntries(ctx context.Context, entries []models.LedgerEntry) error
	IncrementWallet(ctx context.Context, userID string, delta int64, lastLedgerID string) (models.Wallet, error)
	GetWallet(ctx context.Context, userID string) (models.Wallet, error)
}

type Ledger interface {
	// WithTx runs fn in one database transaction; any error rolls everything back.
	WithTx(ctx context.Context, fn func(LedgerTx) error) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.LedgerEntry, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.LedgerEntry, error)
	TotalSaved(ctx context.Context) (int64, error)
}

type Wallets interface {
	Get(ctx context.Context, userID string) (models.Wallet, error)
}

// Jobs is the durable queue storage.
type Jobs interface {
	// Enqueue inserts the job unless (queue, key) exists.
	Enqueue(ctx context.Context, job models.Job) (inserted bool, err error)
	// Claim leases the next runnable job; ErrNotFound when the queue is idle.
	Claim(ctx context.Context, queue string, lease time.Duration) (models.Job, error)
	Complete(ctx context.Context, id string) error
	Retry(ctx context.Context, id string, runAt time.Time, lastErr string) error
	Bury(ctx context.Context, id string, lastErr string) error
	// Rearm resets a done or dead job to pending with a fresh attempt budget.
	// Pending and running jobs are left alone.
	Rearm(ctx context.Context, queue, key string) (bool, error)
	Depth(ctx context.Context, queue string) (int64, error)
}

type WebhookFailures interface {
	Create(ctx context.Context, f models.WebhookFailure) error
	List(ctx context.Context, limit, offset int) ([]models.WebhookFailure, error)
}
