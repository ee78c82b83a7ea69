package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/betsave-core/internal/models"
	"github.com/baharkarakas/betsave-core/internal/queue"
	"github.com/baharkarakas/betsave-core/internal/repository/memory"
	"github.com/baharkarakas/betsave-core/internal/worker"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// pipeline wires every service over one in-memory store.
type pipeline struct {
	st       *memory.Store
	clk      *testClock
	partner  models.Partner
	user     models.User
	events   *queue.Queue
	webhooks *queue.Queue

	intake    *IntakeService
	poster    *LedgerPoster
	processor *EventProcessor
	notifier  *WebhookNotifier
	sweeper   *Sweeper
	reports   *ReportService
}

const testPhone = "+254700000001"

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	clk := &testClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	st := memory.NewStore()
	st.Now = clk.Now

	partner := st.AddPartner(models.Partner{
		Name:      "acme",
		APIKey:    "acme-key",
		APISecret: "acme-secret",
		Status:    models.PartnerActive,
	})
	user := st.AddUser(models.User{
		PhoneNumber: testPhone,
		Verified:    true,
		Status:      models.UserActive,
		AutoSave:    true,
	})

	broker := queue.NewBroker(st.Jobs())
	eq := broker.Queue(queue.EventProcessing, queue.EventPolicy)
	wq := broker.Queue(queue.PartnerWebhook, queue.WebhookPolicy)

	poster := NewLedgerPoster(st.Ledger(), "KES", nil)
	notifier := NewWebhookNotifier(st.Partners(), st.WebhookFailures(), time.Second, nil)
	notifier.now = clk.Now
	sweeper := NewSweeper(st.Events(), eq, 10*time.Minute, nil)
	sweeper.now = clk.Now

	return &pipeline{
		st:        st,
		clk:       clk,
		partner:   partner,
		user:      user,
		events:    eq,
		webhooks:  wq,
		intake:    NewIntakeService(st.Events(), st.Users(), eq, nil),
		poster:    poster,
		processor: NewEventProcessor(st.Events(), poster, wq, decimal.RequireFromString("0.1"), nil),
		notifier:  notifier,
		sweeper:   sweeper,
		reports:   NewReportService(st.Events(), st.Ledger(), st.Wallets(), st.WebhookFailures(), eq, wq),
	}
}

func (p *pipeline) identity() models.PartnerIdentity {
	return models.PartnerIdentity{ID: p.partner.ID, Name: p.partner.Name}
}

func (p *pipeline) ingest(t *testing.T, eventID string, amount int64) IngestResult {
	t.Helper()
	res, err := p.intake.Ingest(context.Background(), p.identity(), IngestRequest{
		EventID: eventID, Phone: testPhone, Amount: amount,
	})
	if err != nil {
		t.Fatalf("ingest %s: %v", eventID, err)
	}
	return res
}

func (p *pipeline) eventPool() *worker.Pool {
	return worker.NewPool(p.st.Jobs(), p.processor.Handle, worker.Options{
		Queue: queue.EventProcessing, Now: p.clk.Now, OnDead: p.processor.OnDead,
	})
}

func (p *pipeline) webhookPool() *worker.Pool {
	return worker.NewPool(p.st.Jobs(), p.notifier.Handle, worker.Options{
		Queue: queue.PartnerWebhook, Now: p.clk.Now, OnDead: p.notifier.OnDead,
	})
}

// drain runs pool until nothing is runnable at the current clock.
func drain(t *testing.T, pool *worker.Pool) int {
	t.Helper()
	n := 0
	for {
		worked, err := pool.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("run once: %v", err)
		}
		if !worked {
			return n
		}
		n++
		if n > 1000 {
			t.Fatal("queue never drained")
		}
	}
}

func (p *pipeline) event(t *testing.T, eventID string) models.Event {
	t.Helper()
	ev, err := p.st.Events().GetByKey(context.Background(), p.partner.Name, eventID)
	if err != nil {
		t.Fatalf("event %s: %v", eventID, err)
	}
	return ev
}

func (p *pipeline) balance(t *testing.T) int64 {
	t.Helper()
	w, err := p.st.Wallets().Get(context.Background(), p.user.ID)
	if err != nil {
		return 0
	}
	return w.Balance
}
