package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/baharkarakas/betsave-core/internal/metrics"
	"github.com/baharkarakas/betsave-core/internal/models"
	"github.com/baharkarakas/betsave-core/internal/queue"
	repo "github.com/baharkarakas/betsave-core/internal/repository"
)

// StatusSkipped answers a replay of an event the system already holds.
const StatusSkipped = "SKIPPED"

const reasonUserNotFound = "user not found"

type IngestRequest struct {
	EventID string
	Phone   string
	Amount  int64
	Type    string
}

type IngestResult struct {
	Status  string `json:"status"`
	EventID string `json:"eventId"`
	Reason  string `json:"reason,omitempty"`
}

// IntakeService admits partner events exactly once per (partner, eventId).
type IntakeService struct {
	events repo.Events
	users  repo.Users
	queue  *queue.Queue
	log    *slog.Logger
}

func NewIntakeService(events repo.Events, users repo.Users, q *queue.Queue, log *slog.Logger) *IntakeService {
	if log == nil {
		log = slog.Default()
	}
	return &IntakeService{events: events, users: users, queue: q, log: log}
}

// Ingest records the event and schedules processing. Business rejections are
// persisted as FAILED events and reported in the result, not as an error.
func (s *IntakeService) Ingest(ctx context.Context, partner models.PartnerIdentity, req IngestRequest) (IngestResult, error) {
	if req.Type == "" {
		req.Type = models.DefaultEventType
	}
	log := s.log.With("partner", partner.Name, "event_id", req.EventID)

	_, err := s.events.GetByKey(ctx, partner.Name, req.EventID)
	if err == nil {
		metrics.EventsIngested.WithLabelValues(StatusSkipped).Inc()
		return IngestResult{Status: StatusSkipped, EventID: req.EventID}, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return IngestResult{}, fmt.Errorf("lookup event: %w", err)
	}

	user, reason, err := s.eligibility(ctx, partner, req.Phone)
	if err != nil {
		return IngestResult{}, err
	}

	ev := models.Event{
		PartnerName: partner.Name,
		EventID:     req.EventID,
		Phone:       req.Phone,
		Type:        req.Type,
		Amount:      req.Amount,
	}
	if user != nil {
		ev.UserID = &user.ID
	}

	if reason != "" {
		ev.Status = models.EventFailed
		ev.FailureReason = reason
		if _, inserted, err := s.events.Create(ctx, ev); err != nil {
			return IngestResult{}, fmt.Errorf("record rejected event: %w", err)
		} else if !inserted {
			metrics.EventsIngested.WithLabelValues(StatusSkipped).Inc()
			return IngestResult{Status: StatusSkipped, EventID: req.EventID}, nil
		}
		log.Info("event rejected", "reason", reason)
		metrics.EventsIngested.WithLabelValues(string(models.EventFailed)).Inc()
		return IngestResult{Status: string(models.EventFailed), EventID: req.EventID, Reason: reason}, nil
	}

	ev.Status = models.EventReceived
	created, inserted, err := s.events.Create(ctx, ev)
	if err != nil {
		return IngestResult{}, fmt.Errorf("record event: %w", err)
	}
	if !inserted {
		// a concurrent request with the same key won the insert
		metrics.EventsIngested.WithLabelValues(StatusSkipped).Inc()
		return IngestResult{Status: StatusSkipped, EventID: req.EventID}, nil
	}

	if err := s.users.EnsureLink(ctx, models.PartnerUser{
		PartnerID:   partner.ID,
		PartnerName: partner.Name,
		UserID:      user.ID,
		PhoneNumber: user.PhoneNumber,
		Source:      models.LinkInferred,
		Status:      models.PartnerActive,
	}); err != nil {
		log.Warn("infer partner link", "err", err)
	}

	// the sweeper re-enqueues RECEIVED events whose job never landed
	if _, err := s.queue.Enqueue(ctx, created.JobKey(), queue.EventJob{
		EventID:     created.EventID,
		PartnerName: created.PartnerName,
	}); err != nil {
		log.Error("enqueue event job", "err", err)
	}

	log.Info("event received", "amount", req.Amount, "type", req.Type)
	metrics.EventsIngested.WithLabelValues(string(models.EventReceived)).Inc()
	return IngestResult{Status: string(models.EventReceived), EventID: req.EventID}, nil
}

// eligibility returns the user and "" when they may receive automated
// savings from partner, or the rejection reason otherwise.
func (s *IntakeService) eligibility(ctx context.Context, partner models.PartnerIdentity, phone string) (*models.User, string, error) {
	u, err := s.users.GetByPhone(ctx, phone)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, reasonUserNotFound, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}

	var link *models.PartnerUser
	l, err := s.users.GetLink(ctx, partner.ID, u.ID)
	switch {
	case err == nil:
		link = &l
	case !errors.Is(err, repo.ErrNotFound):
		return nil, "", fmt.Errorf("lookup partner link: %w", err)
	}
	return &u, u.Ineligibility(link), nil
}
