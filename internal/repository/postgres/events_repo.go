package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/baharkarakas/betsave-core/internal/models"
	repo "github.com/baharkarakas/betsave-core/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type eventsRepo struct{ pool *pgxpool.Pool }

const eventCols = `id, partner_name, event_id, user_id, phone, type, amount, status, failure_reason, savings_amount, created_at, updated_at`

func scanEvent(row pgx.Row) (models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.PartnerName, &e.EventID, &e.UserID, &e.Phone, &e.Type, &e.Amount,
		&e.Status, &e.FailureReason, &e.SavingsAmount, &e.CreatedAt, &e.UpdatedAt)
	return e, mapErr(err)
}

func collectEvents(rows pgx.Rows, err error) ([]models.Event, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *eventsRepo) GetByKey(ctx context.Context, partnerName, eventID string) (models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx,
		`SELECT `+eventCols+` FROM events WHERE partner_name=$1 AND event_id=$2`, partnerName, eventID))
}

func (r *eventsRepo) GetByID(ctx context.Context, id string) (models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventCols+` FROM events WHERE id=$1`, id))
}

func (r *eventsRepo) Create(ctx context.Context, ev models.Event) (models.Event, bool, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	created, err := scanEvent(r.pool.QueryRow(ctx, `
INSERT INTO events (id, partner_name, event_id, user_id, phone, type, amount, status, failure_reason)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (partner_name, event_id) DO NOTHING
RETURNING `+eventCols,
		ev.ID, ev.PartnerName, ev.EventID, ev.UserID, ev.Phone, ev.Type, ev.Amount, ev.Status, ev.FailureReason,
	))
	if errors.Is(err, repo.ErrNotFound) {
		// natural key already taken: hand back the existing row
		existing, err := r.GetByKey(ctx, ev.PartnerName, ev.EventID)
		return existing, false, err
	}
	if err != nil {
		return models.Event{}, false, err
	}
	return created, true, nil
}

func (r *eventsRepo) Claim(ctx context.Context, partnerName, eventID string) (models.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `
UPDATE events
   SET status='PROCESSING', updated_at=now()
 WHERE partner_name=$1 AND event_id=$2 AND status='RECEIVED'
RETURNING `+eventCols, partnerName, eventID))
}

func (r *eventsRepo) MarkProcessed(ctx context.Context, id string, savings int64) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE events
   SET status='PROCESSED', savings_amount=$2, updated_at=now()
 WHERE id=$1 AND status='PROCESSING'`, id, savings)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *eventsRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE events
   SET status='FAILED', failure_reason=$2, updated_at=now()
 WHERE id=$1 AND status='PROCESSING'`, id, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *eventsRepo) ResetStale(ctx context.Context, before time.Time, limit int) ([]models.Event, error) {
	return collectEvents(r.pool.Query(ctx, `
UPDATE events
   SET status='RECEIVED', updated_at=now()
 WHERE id IN (
       SELECT id FROM events
        WHERE status='PROCESSING' AND updated_at < $1
        ORDER BY updated_at
        LIMIT $2
        FOR UPDATE SKIP LOCKED)
   AND status='PROCESSING'
RETURNING `+eventCols, before, limit))
}

func (r *eventsRepo) ListReceivedBefore(ctx context.Context, before time.Time, limit int) ([]models.Event, error) {
	return collectEvents(r.pool.Query(ctx, `
SELECT `+eventCols+`
  FROM events
 WHERE status='RECEIVED' AND updated_at < $1
 ORDER BY updated_at
 LIMIT $2`, before, limit))
}

func (r *eventsRepo) List(ctx context.Context, f models.EventFilter) ([]models.Event, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if f.PartnerName != "" {
		add("partner_name=?", f.PartnerName)
	}
	if f.UserID != "" {
		add("user_id=?", f.UserID)
	}
	if f.Status != "" {
		add("status=?", f.Status)
	}

	q := `SELECT ` + eventCols + ` FROM events`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	q += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	return collectEvents(r.pool.Query(ctx, q, args...))
}

func (r *eventsRepo) CountByStatus(ctx context.Context, partnerName string) (map[models.EventStatus]int64, error) {
	rows, err := r.pool.Query(ctx, `
SELECT status, count(*)
  FROM events
 WHERE ($1 = '' OR partner_name = $1)
 GROUP BY status`, partnerName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[models.EventStatus]int64{}
	for rows.Next() {
		var (
			s models.EventStatus
			n int64
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}
