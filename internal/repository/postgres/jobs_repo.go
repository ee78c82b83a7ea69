package postgres

import (
	"context"
	"time"

	"github.com/baharkarakas/betsave-core/internal/models"
	repo "github.com/baharkarakas/betsave-core/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type jobsRepo struct{ pool *pgxpool.Pool }

func (r *jobsRepo) Enqueue(ctx context.Context, j models.Job) (bool, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	runAt := j.RunAt
	if runAt.IsZero() {
		runAt = time.Now()
	}
	tag, err := r.pool.Exec(ctx, `
INSERT INTO jobs (id, queue, job_key, payload, max_attempts, backoff_ms, run_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (queue, job_key) DO NOTHING`,
		j.ID, j.Queue, j.Key, []byte(j.Payload), j.MaxAttempts, j.Backoff.Milliseconds(), runAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Claim picks the oldest runnable job. A running job whose lease expired is
// runnable again, which is what gives at-least-once delivery after a crash.
func (r *jobsRepo) Claim(ctx context.Context, queue string, lease time.Duration) (models.Job, error) {
	var (
		j         models.Job
		backoffMS int64
	)
	err := r.pool.QueryRow(ctx, `
UPDATE jobs
   SET status='running',
       attempts=attempts+1,
       locked_until=now() + ($2::bigint * interval '1 millisecond'),
       updated_at=now()
 WHERE id = (
       SELECT id FROM jobs
        WHERE queue=$1
          AND ((status='pending' AND run_at <= now())
            OR (status='running' AND locked_until < now()))
        ORDER BY run_at
        LIMIT 1
        FOR UPDATE SKIP LOCKED)
RETURNING id, queue, job_key, payload, status, attempts, max_attempts, backoff_ms, run_at, last_error, created_at, updated_at`,
		queue, lease.Milliseconds(),
	).Scan(&j.ID, &j.Queue, &j.Key, &j.Payload, &j.Status, &j.Attempts, &j.MaxAttempts, &backoffMS,
		&j.RunAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return models.Job{}, mapErr(err)
	}
	j.Backoff = time.Duration(backoffMS) * time.Millisecond
	return j, nil
}

func (r *jobsRepo) Complete(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE jobs SET status='done', locked_until=NULL, updated_at=now() WHERE id=$1`, id)
}

func (r *jobsRepo) Retry(ctx context.Context, id string, runAt time.Time, lastErr string) error {
	return r.exec(ctx, `
UPDATE jobs
   SET status='pending', run_at=$2, last_error=$3, locked_until=NULL, updated_at=now()
 WHERE id=$1`, id, runAt, lastErr)
}

func (r *jobsRepo) Bury(ctx context.Context, id string, lastErr string) error {
	return r.exec(ctx, `
UPDATE jobs
   SET status='dead', last_error=$2, locked_until=NULL, updated_at=now()
 WHERE id=$1`, id, lastErr)
}

func (r *jobsRepo) Rearm(ctx context.Context, queue, key string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE jobs
   SET status='pending', attempts=0, run_at=now(), last_error='', locked_until=NULL, updated_at=now()
 WHERE queue=$1 AND job_key=$2 AND status IN ('done','dead')`, queue, key)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *jobsRepo) Depth(ctx context.Context, queue string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM jobs WHERE queue=$1 AND status IN ('pending','running')`, queue,
	).Scan(&n)
	return n, err
}

func (r *jobsRepo) exec(ctx context.Context, q string, args ...any) error {
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}
