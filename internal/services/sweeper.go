package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/baharkarakas/betsave-core/internal/metrics"
	"github.com/baharkarakas/betsave-core/internal/models"
	"github.com/baharkarakas/betsave-core/internal/queue"
	repo "github.com/baharkarakas/betsave-core/internal/repository"
)

const sweepBatch = 100

type SweepStats struct {
	Reset      int // PROCESSING -> RECEIVED
	Requeued   int // RECEIVED events re-armed
	Unfinished int // rows that could not be re-armed this round
}

// Sweeper returns events stuck in RECEIVED or PROCESSING to the queue.
type Sweeper struct {
	events repo.Events
	queue  *queue.Queue
	lease  time.Duration
	now    func() time.Time
	log    *slog.Logger
}

func NewSweeper(events repo.Events, q *queue.Queue, lease time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{events: events, queue: q, lease: lease, now: time.Now, log: log}
}

// Sweep runs one pass. Events untouched for longer than the lease are
// considered abandoned.
func (s *Sweeper) Sweep(ctx context.Context) (SweepStats, error) {
	var st SweepStats
	cutoff := s.now().Add(-s.lease)

	stale, err := s.events.ResetStale(ctx, cutoff, sweepBatch)
	if err != nil {
		return st, fmt.Errorf("reset stale events: %w", err)
	}
	for _, ev := range stale {
		s.log.Warn("processing lease expired, event reset", "partner", ev.PartnerName, "event_id", ev.EventID)
		if s.rearm(ctx, ev) {
			st.Reset++
			metrics.SweptEvents.WithLabelValues(string(models.EventProcessing)).Inc()
		} else {
			st.Unfinished++
		}
	}

	waiting, err := s.events.ListReceivedBefore(ctx, cutoff, sweepBatch)
	if err != nil {
		return st, fmt.Errorf("list waiting events: %w", err)
	}
	for _, ev := range waiting {
		if s.rearm(ctx, ev) {
			st.Requeued++
			metrics.SweptEvents.WithLabelValues(string(models.EventReceived)).Inc()
		} else {
			st.Unfinished++
		}
	}
	return st, nil
}

func (s *Sweeper) rearm(ctx context.Context, ev models.Event) bool {
	err := s.queue.Rearm(ctx, ev.JobKey(), queue.EventJob{EventID: ev.EventID, PartnerName: ev.PartnerName})
	if err != nil {
		s.log.Error("re-arm event job", "partner", ev.PartnerName, "event_id", ev.EventID, "err", err)
		return false
	}
	return true
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st, err := s.Sweep(ctx)
			if err != nil {
				s.log.Error("sweep failed", "err", err)
				continue
			}
			if st.Reset+st.Requeued+st.Unfinished > 0 {
				s.log.Info("sweep done", "reset", st.Reset, "requeued", st.Requeued, "unfinished", st.Unfinished)
			}
		}
	}
}
