// Package memory holds in-memory repositories with the same contracts as the
// postgres ones. Tests across the module run the pipeline against it.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/baharkarakas/betsave-core/internal/models"
	repo "github.com/baharkarakas/betsave-core/internal/repository"
	"github.com/google/uuid"
)

// Store keeps every table behind one mutex. Ledger transactions hold the
// lock for their whole duration, so they are serialised.
type Store struct {
	mu sync.Mutex

	partners map[string]models.Partner // by id
	users    map[string]models.User    // by id
	links    map[string]models.PartnerUser
	events   map[string]*models.Event // by id
	ledger   []models.LedgerEntry
	wallets  map[string]models.Wallet
	jobs     map[string]*models.Job // by id
	failures []models.WebhookFailure

	// Now stamps rows and schedules jobs; tests may replace it.
	Now func() time.Time
}

func NewStore() *Store {
	return &Store{
		partners: map[string]models.Partner{},
		users:    map[string]models.User{},
		links:    map[string]models.PartnerUser{},
		events:   map[string]*models.Event{},
		wallets:  map[string]models.Wallet{},
		jobs:     map[string]*models.Job{},
		Now:      time.Now,
	}
}

func (s *Store) Partners() repo.Partners               { return partners{s} }
func (s *Store) Users() repo.Users                     { return users{s} }
func (s *Store) Events() repo.Events                   { return events{s} }
func (s *Store) Ledger() repo.Ledger                   { return ledger{s} }
func (s *Store) Wallets() repo.Wallets                 { return wallets{s} }
func (s *Store) Jobs() repo.Jobs                       { return jobs{s} }
func (s *Store) WebhookFailures() repo.WebhookFailures { return failures{s} }

// ---------- seeding / inspection helpers ----------

func (s *Store) AddPartner(p models.Partner) models.Partner {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.PartnerActive
	}
	s.partners[p.ID] = p
	return p
}

func (s *Store) UpdatePartner(p models.Partner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partners[p.ID] = p
}

func (s *Store) AddUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.users[u.ID] = u
	return u
}

func (s *Store) AddLink(l models.PartnerUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[l.PartnerID+"/"+l.UserID] = l
}

func (s *Store) Link(partnerID, userID string) (models.PartnerUser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[partnerID+"/"+userID]
	return l, ok
}

func (s *Store) AllEvents() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// SetEventUpdatedAt backdates an event, for lease tests.
func (s *Store) SetEventUpdatedAt(id string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.events[id]; ok {
		e.UpdatedAt = t
	}
}

// SetEventStatus forces a status, for crash simulations.
func (s *Store) SetEventStatus(id string, st models.EventStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.events[id]; ok {
		e.Status = st
	}
}

func (s *Store) AllEntries() []models.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.LedgerEntry(nil), s.ledger...)
}

func (s *Store) AllJobs(queue string) []models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Job
	for _, j := range s.jobs {
		if queue == "" || j.Queue == queue {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out
}

func (s *Store) Failures() []models.WebhookFailure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WebhookFailure(nil), s.failures...)
}

// ---------- partners ----------

type partners struct{ s *Store }

func (r partners) GetByAPIKey(ctx context.Context, apiKey string) (models.Partner, error) {
	return r.find(ctx, func(p models.Partner) bool { return p.APIKey == apiKey })
}

func (r partners) GetByName(ctx context.Context, name string) (models.Partner, error) {
	return r.find(ctx, func(p models.Partner) bool { return p.Name == name })
}

func (r partners) find(ctx context.Context, match func(models.Partner) bool) (models.Partner, error) {
	if err := ctx.Err(); err != nil {
		return models.Partner{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.partners {
		if match(p) {
			return p, nil
		}
	}
	return models.Partner{}, repo.ErrNotFound
}

// ---------- users ----------

type users struct{ s *Store }

func (r users) GetByPhone(_ context.Context, phone string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.PhoneNumber == phone {
			return u, nil
		}
	}
	return models.User{}, repo.ErrNotFound
}

func (r users) GetLink(_ context.Context, partnerID, userID string) (models.PartnerUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.links[partnerID+"/"+userID]
	if !ok {
		return models.PartnerUser{}, repo.ErrNotFound
	}
	return l, nil
}

func (r users) EnsureLink(_ context.Context, l models.PartnerUser) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := l.PartnerID + "/" + l.UserID
	if _, ok := r.s.links[k]; !ok {
		l.CreatedAt = r.s.Now()
		r.s.links[k] = l
	}
	return nil
}

// ---------- events ----------

type events struct{ s *Store }

func (r events) byKey(partnerName, eventID string) *models.Event {
	for _, e := range r.s.events {
		if e.PartnerName == partnerName && e.EventID == eventID {
			return e
		}
	}
	return nil
}

func (r events) GetByKey(_ context.Context, partnerName, eventID string) (models.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e := r.byKey(partnerName, eventID); e != nil {
		return *e, nil
	}
	return models.Event{}, repo.ErrNotFound
}

func (r events) GetByID(_ context.Context, id string) (models.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.events[id]; ok {
		return *e, nil
	}
	return models.Event{}, repo.ErrNotFound
}

func (r events) Create(_ context.Context, ev models.Event) (models.Event, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e := r.byKey(ev.PartnerName, ev.EventID); e != nil {
		return *e, false, nil
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	now := r.s.Now()
	ev.CreatedAt, ev.UpdatedAt = now, now
	cp := ev
	r.s.events[ev.ID] = &cp
	return ev, true, nil
}

func (r events) Claim(_ context.Context, partnerName, eventID string) (models.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e := r.byKey(partnerName, eventID)
	if e == nil || !models.CanTransition(e.Status, models.EventProcessing) {
		return models.Event{}, repo.ErrNotFound
	}
	e.Status = models.EventProcessing
	e.UpdatedAt = r.s.Now()
	return *e, nil
}

func (r events) finish(id string, to models.EventStatus, mutate func(*models.Event)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok || !models.CanTransition(e.Status, to) {
		return repo.ErrNotFound
	}
	e.Status = to
	e.UpdatedAt = r.s.Now()
	mutate(e)
	return nil
}

func (r events) MarkProcessed(_ context.Context, id string, savings int64) error {
	return r.finish(id, models.EventProcessed, func(e *models.Event) { e.SavingsAmount = savings })
}

func (r events) MarkFailed(_ context.Context, id string, reason string) error {
	return r.finish(id, models.EventFailed, func(e *models.Event) { e.FailureReason = reason })
}

func (r events) ResetStale(_ context.Context, before time.Time, limit int) ([]models.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Event
	for _, e := range r.sorted() {
		if len(out) >= limit {
			break
		}
		if e.Status == models.EventProcessing && e.UpdatedAt.Before(before) {
			e.Status = models.EventReceived
			e.UpdatedAt = r.s.Now()
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r events) ListReceivedBefore(_ context.Context, before time.Time, limit int) ([]models.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Event
	for _, e := range r.sorted() {
		if len(out) >= limit {
			break
		}
		if e.Status == models.EventReceived && e.UpdatedAt.Before(before) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r events) sorted() []*models.Event {
	all := make([]*models.Event, 0, len(r.s.events))
	for _, e := range r.s.events {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.Before(all[j].UpdatedAt) })
	return all
}

func (r events) List(_ context.Context, f models.EventFilter) ([]models.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []models.Event
	for _, e := range r.s.events {
		if f.PartnerName != "" && e.PartnerName != f.PartnerName {
			continue
		}
		if f.UserID != "" && (e.UserID == nil || *e.UserID != f.UserID) {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		all = append(all, *e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, f.Limit, f.Offset), nil
}

func (r events) CountByStatus(_ context.Context, partnerName string) (map[models.EventStatus]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[models.EventStatus]int64{}
	for _, e := range r.s.events {
		if partnerName == "" || e.PartnerName == partnerName {
			out[e.Status]++
		}
	}
	return out, nil
}

// ---------- ledger ----------

type ledger struct{ s *Store }

// ledgerTx stages writes and applies them only on commit.
type ledgerTx struct {
	s       *Store
	entries []models.LedgerEntry
	wallets map[string]models.Wallet
}

func (r ledger) WithTx(ctx context.Context, fn func(repo.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx := &ledgerTx{s: r.s, wallets: map[string]models.Wallet{}}
	if err := fn(tx); err != nil {
		return err
	}
	r.s.ledger = append(r.s.ledger, tx.entries...)
	for id, w := range tx.wallets {
		r.s.wallets[id] = w
	}
	return nil
}

func (t *ledgerTx) FindSavingsEntry(_ context.Context, eventID, userID string) (models.LedgerEntry, error) {
	for _, set := range [][]models.LedgerEntry{t.s.ledger, t.entries} {
		for _, e := range set {
			if e.EventID == eventID && e.UserID == userID && e.Account == models.AccountUserSavings {
				return e, nil
			}
		}
	}
	return models.LedgerEntry{}, repo.ErrNotFound
}

func (t *ledgerTx) InsertEntries(ctx context.Context, entries []models.LedgerEntry) error {
	for i := range entries {
		e := &entries[i]
		if e.Account == models.AccountUserSavings {
			if _, err := t.FindSavingsEntry(ctx, e.EventID, e.UserID); err == nil {
				return repo.ErrDuplicate
			}
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		e.CreatedAt = t.s.Now()
		t.entries = append(t.entries, *e)
	}
	return nil
}

func (t *ledgerTx) IncrementWallet(ctx context.Context, userID string, delta int64, lastLedgerID string) (models.Wallet, error) {
	w, err := t.GetWallet(ctx, userID)
	if err != nil {
		w = models.Wallet{UserID: userID}
	}
	w.Balance += delta
	id := lastLedgerID
	w.LastProcessedLedgerID = &id
	w.UpdatedAt = t.s.Now()
	t.wallets[userID] = w
	return w, nil
}

func (t *ledgerTx) GetWallet(_ context.Context, userID string) (models.Wallet, error) {
	if w, ok := t.wallets[userID]; ok {
		return w, nil
	}
	if w, ok := t.s.wallets[userID]; ok {
		return w, nil
	}
	return models.Wallet{}, repo.ErrNotFound
}

func (r ledger) ListByUser(_ context.Context, userID string, limit, offset int) ([]models.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.LedgerEntry
	for i := len(r.s.ledger) - 1; i >= 0; i-- {
		if r.s.ledger[i].UserID == userID {
			out = append(out, r.s.ledger[i])
		}
	}
	return page(out, limit, offset), nil
}

func (r ledger) ListByEvent(_ context.Context, eventID string) ([]models.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.LedgerEntry
	for _, e := range r.s.ledger {
		if e.EventID == eventID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r ledger) TotalSaved(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var total int64
	for _, e := range r.s.ledger {
		if e.Account == models.AccountUserSavings {
			total += e.Amount
		}
	}
	return total, nil
}

type wallets struct{ s *Store }

func (r wallets) Get(_ context.Context, userID string) (models.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if w, ok := r.s.wallets[userID]; ok {
		return w, nil
	}
	return models.Wallet{}, repo.ErrNotFound
}

// ---------- jobs ----------

type jobs struct{ s *Store }

func (r jobs) find(queue, key string) *models.Job {
	for _, j := range r.s.jobs {
		if j.Queue == queue && j.Key == key {
			return j
		}
	}
	return nil
}

func (r jobs) Enqueue(_ context.Context, j models.Job) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.find(j.Queue, j.Key) != nil {
		return false, nil
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	now := r.s.Now()
	if j.RunAt.IsZero() {
		j.RunAt = now
	}
	j.Status = models.JobPending
	j.CreatedAt, j.UpdatedAt = now, now
	j.Payload = append(json.RawMessage(nil), j.Payload...)
	r.s.jobs[j.ID] = &j
	return true, nil
}

func (r jobs) Claim(_ context.Context, queue string, lease time.Duration) (models.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.Now()
	var next *models.Job
	for _, j := range r.s.jobs {
		if j.Queue != queue {
			continue
		}
		runnable := j.Status == models.JobPending && !j.RunAt.After(now)
		expired := j.Status == models.JobRunning && j.RunAt.Before(now)
		if !runnable && !expired {
			continue
		}
		if next == nil || j.RunAt.Before(next.RunAt) {
			next = j
		}
	}
	if next == nil {
		return models.Job{}, repo.ErrNotFound
	}
	next.Status = models.JobRunning
	next.Attempts++
	// while running, RunAt doubles as the lease deadline
	next.RunAt = now.Add(lease)
	next.UpdatedAt = now
	return *next, nil
}

func (r jobs) set(id string, mutate func(*models.Job)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.jobs[id]
	if !ok {
		return repo.ErrNotFound
	}
	mutate(j)
	j.UpdatedAt = r.s.Now()
	return nil
}

func (r jobs) Complete(_ context.Context, id string) error {
	return r.set(id, func(j *models.Job) { j.Status = models.JobDone })
}

func (r jobs) Retry(_ context.Context, id string, runAt time.Time, lastErr string) error {
	return r.set(id, func(j *models.Job) {
		j.Status = models.JobPending
		j.RunAt = runAt
		j.LastError = lastErr
	})
}

func (r jobs) Bury(_ context.Context, id string, lastErr string) error {
	return r.set(id, func(j *models.Job) {
		j.Status = models.JobDead
		j.LastError = lastErr
	})
}

func (r jobs) Rearm(_ context.Context, queue, key string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j := r.find(queue, key)
	if j == nil || (j.Status != models.JobDone && j.Status != models.JobDead) {
		return false, nil
	}
	j.Status = models.JobPending
	j.Attempts = 0
	j.LastError = ""
	j.RunAt = r.s.Now()
	return true, nil
}

func (r jobs) Depth(_ context.Context, queue string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, j := range r.s.jobs {
		if j.Queue == queue && (j.Status == models.JobPending || j.Status == models.JobRunning) {
			n++
		}
	}
	return n, nil
}

// ---------- webhook failures ----------

type failures struct{ s *Store }

func (r failures) Create(_ context.Context, f models.WebhookFailure) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.CreatedAt = r.s.Now()
	r.s.failures = append(r.s.failures, f)
	return nil
}

func (r failures) List(_ context.Context, limit, offset int) ([]models.WebhookFailure, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.WebhookFailure, 0, len(r.s.failures))
	for i := len(r.s.failures) - 1; i >= 0; i-- {
		out = append(out, r.s.failures[i])
	}
	return page(out, limit, offset), nil
}

func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return []T{}
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
