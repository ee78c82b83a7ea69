package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/betsave-core/internal/metrics"
	"github.com/baharkarakas/betsave-core/internal/models"
	"github.com/baharkarakas/betsave-core/internal/queue"
	repo "github.com/baharkarakas/betsave-core/internal/repository"
	"github.com/baharkarakas/betsave-core/internal/worker"
)

const reasonNotClaimable = "event not found or already processed"

// EventProcessor turns a RECEIVED event into a ledger posting and a terminal
// status, then schedules the partner notification.
type EventProcessor struct {
	events   repo.Events
	poster   *LedgerPoster
	webhooks *queue.Queue
	fraction decimal.Decimal
	log      *slog.Logger
}

func NewEventProcessor(events repo.Events, poster *LedgerPoster, webhooks *queue.Queue, fraction decimal.Decimal, log *slog.Logger) *EventProcessor {
	if log == nil {
		log = slog.Default()
	}
	return &EventProcessor{events: events, poster: poster, webhooks: webhooks, fraction: fraction, log: log}
}

// Handle is the worker.Handler of the event-processing queue.
func (p *EventProcessor) Handle(ctx context.Context, job models.Job) error {
	in, err := queue.Decode[queue.EventJob](job)
	if err != nil {
		return worker.Permanent(err)
	}
	_, err = p.Process(ctx, in)
	return err
}

// OnDead logs events whose processing job ran out of attempts. The sweeper
// picks the event up again once its lease expires.
func (p *EventProcessor) OnDead(_ context.Context, job models.Job, err error) {
	p.log.Error("event job dead-lettered", "job", job.Key, "attempts", job.Attempts, "err", err)
}

// Process runs one event through the pipeline. The returned error is non-nil
// only for infrastructure failures that left the event without a terminal
// status; those are worth retrying.
func (p *EventProcessor) Process(ctx context.Context, in queue.EventJob) (queue.Outcome, error) {
	log := p.log.With("partner", in.PartnerName, "event_id", in.EventID)

	ev, err := p.events.Claim(ctx, in.PartnerName, in.EventID)
	if errors.Is(err, repo.ErrNotFound) {
		return p.unclaimable(ctx, in, log)
	}
	if err != nil {
		return queue.Outcome{}, fmt.Errorf("claim event: %w", err)
	}

	out := p.apply(ctx, ev, log)
	if out.Status == models.EventProcessed {
		err = p.events.MarkProcessed(ctx, ev.ID, out.SavingsAmount)
	} else {
		err = p.events.MarkFailed(ctx, ev.ID, out.Reason)
	}
	if err != nil {
		// the event stays PROCESSING; a retry or the sweeper finishes it and
		// the ledger gate stops a second credit
		return queue.Outcome{}, fmt.Errorf("mark %s: %w", out.Status, err)
	}

	metrics.EventsProcessed.WithLabelValues(string(out.Status)).Inc()
	if out.Status == models.EventProcessed {
		log.Info("event processed", "savings", out.SavingsAmount)
	} else {
		log.Warn("event failed", "reason", out.Reason)
	}
	p.notify(ctx, in, out, log)
	return out, nil
}

// apply computes the savings and posts them. It never returns an error: every
// failure becomes a FAILED outcome with a reason.
func (p *EventProcessor) apply(ctx context.Context, ev models.Event, log *slog.Logger) queue.Outcome {
	fail := func(reason string) queue.Outcome {
		return queue.Outcome{Status: models.EventFailed, Reason: reason}
	}
	if ev.UserID == nil || *ev.UserID == "" {
		return fail("event has no user")
	}
	savings, err := SavingsFor(ev.Amount, p.fraction)
	if err != nil {
		return fail(err.Error())
	}

	res, err := p.poster.Post(ctx, Posting{
		UserID:    *ev.UserID,
		EventID:   ev.ID,
		Amount:    savings,
		Reference: ev.PartnerName + "_" + ev.Type,
	})
	if err != nil {
		log.Error("ledger posting failed", "err", err)
		return fail(err.Error())
	}
	if res.Duplicate {
		log.Info("savings already credited", "entry_id", res.SavingsEntryID)
	}
	return queue.Outcome{Status: models.EventProcessed, SavingsAmount: savings}
}

// unclaimable handles a job whose event is not RECEIVED. A terminal event is
// re-notified with its stored outcome; the webhook job key keeps that to one
// delivery. An event another worker holds is left to that worker.
func (p *EventProcessor) unclaimable(ctx context.Context, in queue.EventJob, log *slog.Logger) (queue.Outcome, error) {
	out := queue.Outcome{Status: models.EventFailed, Reason: reasonNotClaimable}

	ev, err := p.events.GetByKey(ctx, in.PartnerName, in.EventID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		log.Warn("event job without event")
		p.notify(ctx, in, out, log)
	case err != nil:
		return queue.Outcome{}, fmt.Errorf("lookup event: %w", err)
	case ev.Status.Terminal():
		out = queue.Outcome{Status: ev.Status, Reason: ev.FailureReason}
		if ev.Status == models.EventProcessed {
			out = queue.Outcome{Status: ev.Status, SavingsAmount: ev.SavingsAmount}
		}
		p.notify(ctx, in, out, log)
	default:
		log.Info("event not claimable", "status", ev.Status)
	}
	return out, nil
}

func (p *EventProcessor) notify(ctx context.Context, in queue.EventJob, out queue.Outcome, log *slog.Logger) {
	_, err := p.webhooks.Enqueue(ctx, models.WebhookJobKey(in.PartnerName, in.EventID), queue.WebhookJob{
		EventID:     in.EventID,
		PartnerName: in.PartnerName,
		Result:      out,
	})
	if err != nil {
		log.Error("enqueue webhook", "err", err)
	}
}
