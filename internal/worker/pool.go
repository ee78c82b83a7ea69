// Package worker runs queue consumers: a fixed number of goroutines claim jobs,
// run a handler, and apply the job's retry policy.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/baharkarakas/betsave-core/internal/metrics"
	"github.com/baharkarakas/betsave-core/internal/models"
	"github.com/baharkarakas/betsave-core/internal/queue"
	repo "github.com/baharkarakas/betsave-core/internal/repository"
)

// Handler processes one job. A nil error completes the job; any other error
// schedules a retry until the attempt budget is spent.
type Handler func(ctx context.Context, job models.Job) error

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the job is buried at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

type Options struct {
	Queue        string
	Workers      int
	PollInterval time.Duration
	// Lease bounds a single handler run; the store makes the job claimable
	// again once it passes.
	Lease time.Duration
	// OnDead runs after a job is buried.
	OnDead func(ctx context.Context, job models.Job, err error)
	Now    func() time.Time
	Logger *slog.Logger
}

type Pool struct {
	jobs    repo.Jobs
	handler Handler
	opts    Options
	wg      sync.WaitGroup
}

func NewPool(jobs repo.Jobs, h Handler, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Lease <= 0 {
		opts.Lease = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Logger = opts.Logger.With("queue", opts.Queue)
	return &Pool{jobs: jobs, handler: h, opts: opts}
}

// Start launches the workers. They stop claiming once ctx is cancelled;
// in-flight jobs run to completion.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.loop(ctx)
		}()
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() { p.wg.Wait() }

// Run is Start followed by Wait.
func (p *Pool) Run(ctx context.Context) {
	p.Start(ctx)
	p.Wait()
}

func (p *Pool) loop(ctx context.Context) {
	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		worked, err := p.RunOnce(ctx)
		if err != nil {
			p.opts.Logger.Error("claim failed", "err", err)
		}
		if worked {
			t.Reset(0)
		} else {
			t.Reset(p.opts.PollInterval)
		}
	}
}

// RunOnce claims and handles at most one job. worked is false when the queue
// had nothing runnable.
func (p *Pool) RunOnce(ctx context.Context) (worked bool, err error) {
	job, err := p.jobs.Claim(ctx, p.opts.Queue, p.opts.Lease)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	p.handle(ctx, job)
	return true, nil
}

func (p *Pool) handle(parent context.Context, job models.Job) {
	// bookkeeping must land even when shutdown has begun
	ctx := context.WithoutCancel(parent)
	log := p.opts.Logger.With("job", job.Key, "attempt", job.Attempts)

	// a lease-expired job can come back after its last attempt
	if job.Attempts > job.MaxAttempts {
		p.bury(ctx, job, errors.New("attempts exhausted after lease expiry"))
		return
	}

	hctx, cancel := context.WithTimeout(ctx, p.opts.Lease)
	err := p.safeCall(hctx, job)
	cancel()

	switch {
	case err == nil:
		if cerr := p.jobs.Complete(ctx, job.ID); cerr != nil {
			log.Error("complete job", "err", cerr)
		}
		metrics.JobsTotal.WithLabelValues(p.opts.Queue, "done").Inc()
	case IsPermanent(err) || job.LastAttempt():
		log.Warn("job failed permanently", "err", err)
		p.bury(ctx, job, err)
	default:
		delay := queue.Policy{MaxAttempts: job.MaxAttempts, Backoff: job.Backoff}.Delay(job.Attempts)
		log.Warn("job failed, retrying", "err", err, "delay", delay)
		if rerr := p.jobs.Retry(ctx, job.ID, p.opts.Now().Add(delay), err.Error()); rerr != nil {
			log.Error("schedule retry", "err", rerr)
		}
		metrics.JobsTotal.WithLabelValues(p.opts.Queue, "retry").Inc()
	}
}

func (p *Pool) bury(ctx context.Context, job models.Job, cause error) {
	if err := p.jobs.Bury(ctx, job.ID, cause.Error()); err != nil {
		p.opts.Logger.Error("bury job", "job", job.Key, "err", err)
	}
	metrics.JobsTotal.WithLabelValues(p.opts.Queue, "dead").Inc()
	if p.opts.OnDead != nil {
		p.opts.OnDead(ctx, job, cause)
	}
}

func (p *Pool) safeCall(ctx context.Context, job models.Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p.opts.Logger.Error("job handler panic", "job", job.Key, "panic", rec)
			err = errors.New("handler panic")
		}
	}()
	return p.handler(ctx, job)
}
