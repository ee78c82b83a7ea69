package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/baharkarakas/betsave-core/internal/auth"
	"github.com/baharkarakas/betsave-core/internal/metrics"
	"github.com/baharkarakas/betsave-core/internal/models"
	"github.com/baharkarakas/betsave-core/internal/queue"
	repo "github.com/baharkarakas/betsave-core/internal/repository"
	"github.com/baharkarakas/betsave-core/internal/worker"
)

// WebhookPayload is the body partners receive.
type WebhookPayload struct {
	EventID       string             `json:"eventId"`
	Status        models.EventStatus `json:"status"`
	SavingsAmount *int64             `json:"savingsAmount,omitempty"`
	Reason        string             `json:"reason,omitempty"`
}

func NewWebhookPayload(job queue.WebhookJob) WebhookPayload {
	p := WebhookPayload{EventID: job.EventID, Status: job.Result.Status}
	if job.Result.Status == models.EventProcessed {
		amount := job.Result.SavingsAmount
		p.SavingsAmount = &amount
	} else {
		p.Reason = job.Result.Reason
	}
	return p
}

// WebhookNotifier delivers signed outcome notifications to partners.
type WebhookNotifier struct {
	partners repo.Partners
	failures repo.WebhookFailures
	client   *http.Client
	now      func() time.Time
	log      *slog.Logger
}

func NewWebhookNotifier(partners repo.Partners, failures repo.WebhookFailures, timeout time.Duration, log *slog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &WebhookNotifier{
		partners: partners,
		failures: failures,
		client:   &http.Client{Timeout: timeout},
		now:      time.Now,
		log:      log,
	}
}

// Handle is the worker.Handler of the partner-webhook queue.
func (n *WebhookNotifier) Handle(ctx context.Context, job models.Job) error {
	in, err := queue.Decode[queue.WebhookJob](job)
	if err != nil {
		return worker.Permanent(err)
	}
	return n.Deliver(ctx, in)
}

// Deliver makes one delivery attempt. The partner is read fresh each time so
// a changed URL or secret takes effect on the next retry.
func (n *WebhookNotifier) Deliver(ctx context.Context, job queue.WebhookJob) error {
	log := n.log.With("partner", job.PartnerName, "event_id", job.EventID)

	p, err := n.partners.GetByName(ctx, job.PartnerName)
	if errors.Is(err, repo.ErrNotFound) {
		log.Warn("webhook skipped: partner not found")
		metrics.WebhookDeliveries.WithLabelValues("skipped").Inc()
		return nil
	}
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues("error").Inc()
		return fmt.Errorf("lookup partner: %w", err)
	}
	if p.WebhookURL == "" {
		log.Info("webhook skipped: no url configured")
		metrics.WebhookDeliveries.WithLabelValues("skipped").Inc()
		return nil
	}

	body, err := json.Marshal(NewWebhookPayload(job))
	if err != nil {
		return worker.Permanent(err)
	}
	ts := strconv.FormatInt(n.now().UnixMilli(), 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.WebhookURL, bytes.NewReader(body))
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues("error").Inc()
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.HeaderAPIKey, p.APIKey)
	req.Header.Set(auth.HeaderTimestamp, ts)
	req.Header.Set(auth.HeaderSignature, auth.PayloadSignature(p.APISecret, ts, body))

	resp, err := n.client.Do(req)
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues("error").Inc()
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.WebhookDeliveries.WithLabelValues("error").Inc()
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	log.Info("webhook delivered", "status", job.Result.Status)
	metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
	return nil
}

// OnDead records a notification that exhausted its retries. Event and ledger
// state are not touched.
func (n *WebhookNotifier) OnDead(ctx context.Context, job models.Job, cause error) {
	metrics.WebhookDeliveries.WithLabelValues("exhausted").Inc()
	f := models.WebhookFailure{
		JobKey:    job.Key,
		Attempts:  job.Attempts,
		LastError: cause.Error(),
	}
	if in, err := queue.Decode[queue.WebhookJob](job); err == nil {
		f.PartnerName, f.EventID = in.PartnerName, in.EventID
	}
	n.log.Error("webhook delivery exhausted",
		"partner", f.PartnerName, "event_id", f.EventID, "attempts", f.Attempts, "err", cause)
	if err := n.failures.Create(ctx, f); err != nil {
		n.log.Error("record webhook failure", "job", job.Key, "err", err)
	}
}
