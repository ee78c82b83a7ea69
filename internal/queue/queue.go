// Package queue is the producer side of the durable job queues. Jobs live in
// Postgres (repository.Jobs); worker.Pool is the consumer side.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/baharkarakas/betsave-core/internal/models"
	repo "github.com/baharkarakas/betsave-core/internal/repository"
)

const (
	EventProcessing = "event-processing"
	PartnerWebhook  = "partner-webhook"
)

var ErrClosed = errors.New("queue: broker closed")

// Policy is the retry budget of a queue.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

var (
	EventPolicy   = Policy{MaxAttempts: 5, Backoff: 5 * time.Second}
	WebhookPolicy = Policy{MaxAttempts: 5, Backoff: 10 * time.Second}
)

const maxDelay = time.Hour

// Delay is the wait before retrying after the given (1-based) attempt:
// base × 2^(attempt−1), capped at one hour.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Backoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	return d
}

// Broker is the shared handle over the jobs store. It is constructed once at
// startup and handed to every producer and consumer.
type Broker struct {
	jobs repo.Jobs

	mu     sync.RWMutex
	closed bool
}

func NewBroker(jobs repo.Jobs) *Broker {
	return &Broker{jobs: jobs}
}

// Jobs exposes the underlying store to worker pools.
func (b *Broker) Jobs() repo.Jobs { return b.jobs }

// Close makes later enqueues fail with ErrClosed. It does not touch stored jobs.
func (b *Broker) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *Broker) Closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

func (b *Broker) Queue(name string, p Policy) *Queue {
	return &Queue{b: b, name: name, policy: p}
}

// Queue is a named queue with a retry policy.
type Queue struct {
	b      *Broker
	name   string
	policy Policy
}

func (q *Queue) Name() string   { return q.name }
func (q *Queue) Policy() Policy { return q.policy }

// Enqueue stores payload under key. A key that is already present (in any
// status) is left alone and inserted is false.
func (q *Queue) Enqueue(ctx context.Context, key string, payload any) (inserted bool, err error) {
	if q.b.Closed() {
		return false, ErrClosed
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("queue %s: encode payload: %w", q.name, err)
	}
	inserted, err = q.b.jobs.Enqueue(ctx, models.Job{
		Queue:       q.name,
		Key:         key,
		Payload:     raw,
		MaxAttempts: q.policy.MaxAttempts,
		Backoff:     q.policy.Backoff,
	})
	if err != nil {
		return false, fmt.Errorf("queue %s: enqueue %s: %w", q.name, key, err)
	}
	return inserted, nil
}

// Rearm resets the job under key to pending with a fresh attempt budget,
// enqueuing payload when no job exists yet.
func (q *Queue) Rearm(ctx context.Context, key string, payload any) error {
	if q.b.Closed() {
		return ErrClosed
	}
	inserted, err := q.Enqueue(ctx, key, payload)
	if err != nil || inserted {
		return err
	}
	if _, err := q.b.jobs.Rearm(ctx, q.name, key); err != nil {
		return fmt.Errorf("queue %s: rearm %s: %w", q.name, key, err)
	}
	return nil
}

func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.b.jobs.Depth(ctx, q.name)
}

// Decode unmarshals a job payload.
func Decode[T any](job models.Job) (T, error) {
	var v T
	if err := json.Unmarshal(job.Payload, &v); err != nil {
		return v, fmt.Errorf("queue %s: decode %s: %w", job.Queue, job.Key, err)
	}
	return v, nil
}
