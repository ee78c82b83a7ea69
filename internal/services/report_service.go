package services

import (
	"context"
	"fmt"

	"github.com/baharkarakas/betsave-core/internal/models"
	"github.com/baharkarakas/betsave-core/internal/queue"
	repo "github.com/baharkarakas/betsave-core/internal/repository"
)

// ReportService backs the read-only partner and admin surfaces.
type ReportService struct {
	events   repo.Events
	ledger   repo.Ledger
	wallets  repo.Wallets
	failures repo.WebhookFailures
	queues   []*queue.Queue
}

func NewReportService(events repo.Events, ledger repo.Ledger, wallets repo.Wallets, failures repo.WebhookFailures, queues ...*queue.Queue) *ReportService {
	return &ReportService{events: events, ledger: ledger, wallets: wallets, failures: failures, queues: queues}
}

// PartnerEvents lists a partner's own events, newest first.
func (s *ReportService) PartnerEvents(ctx context.Context, partnerName string, status models.EventStatus, limit, offset int) ([]models.Event, error) {
	return s.events.List(ctx, models.EventFilter{PartnerName: partnerName, Status: status, Limit: limit, Offset: offset})
}

func (s *ReportService) PartnerEvent(ctx context.Context, partnerName, eventID string) (models.Event, error) {
	return s.events.GetByKey(ctx, partnerName, eventID)
}

func (s *ReportService) Events(ctx context.Context, f models.EventFilter) ([]models.Event, error) {
	return s.events.List(ctx, f)
}

type EventDetail struct {
	Event   models.Event         `json:"event"`
	Entries []models.LedgerEntry `json:"entries"`
}

// EventDetail returns an event by internal id with the ledger rows it produced.
func (s *ReportService) EventDetail(ctx context.Context, id string) (EventDetail, error) {
	ev, err := s.events.GetByID(ctx, id)
	if err != nil {
		return EventDetail{}, err
	}
	entries, err := s.ledger.ListByEvent(ctx, ev.ID)
	if err != nil {
		return EventDetail{}, fmt.Errorf("event entries: %w", err)
	}
	return EventDetail{Event: ev, Entries: entries}, nil
}

func (s *ReportService) Ledger(ctx context.Context, userID string, limit, offset int) ([]models.LedgerEntry, error) {
	return s.ledger.ListByUser(ctx, userID, limit, offset)
}

func (s *ReportService) Wallet(ctx context.Context, userID string) (models.Wallet, error) {
	return s.wallets.Get(ctx, userID)
}

func (s *ReportService) WebhookFailures(ctx context.Context, limit, offset int) ([]models.WebhookFailure, error) {
	return s.failures.List(ctx, limit, offset)
}

type Overview struct {
	EventsByStatus map[models.EventStatus]int64 `json:"events_by_status"`
	TotalSaved     int64                        `json:"total_saved"`
	QueueDepth     map[string]int64             `json:"queue_depth"`
}

func (s *ReportService) Overview(ctx context.Context) (Overview, error) {
	counts, err := s.events.CountByStatus(ctx, "")
	if err != nil {
		return Overview{}, fmt.Errorf("count events: %w", err)
	}
	total, err := s.ledger.TotalSaved(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("total saved: %w", err)
	}
	depth, err := s.QueueDepths(ctx)
	if err != nil {
		return Overview{}, err
	}
	return Overview{EventsByStatus: counts, TotalSaved: total, QueueDepth: depth}, nil
}

// QueueDepths reports pending plus running jobs per queue.
func (s *ReportService) QueueDepths(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(s.queues))
	for _, q := range s.queues {
		n, err := q.Depth(ctx)
		if err != nil {
			return nil, fmt.Errorf("queue depth %s: %w", q.Name(), err)
		}
		out[q.Name()] = n
	}
	return out, nil
}
