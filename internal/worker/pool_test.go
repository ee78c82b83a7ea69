package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/baharkarakas/betsave-core/internal/models"
	"github.com/baharkarakas/betsave-core/internal/queue"
	"github.com/baharkarakas/betsave-core/internal/repository/memory"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func setup(t *testing.T, policy queue.Policy) (*memory.Store, *queue.Queue, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	st := memory.NewStore()
	st.Now = clk.Now
	q := queue.NewBroker(st.Jobs()).Queue("test", policy)
	if _, err := q.Enqueue(context.Background(), "k1", map[string]string{"a": "b"}); err != nil {
		t.Fatal(err)
	}
	return st, q, clk
}

func TestRetryWithBackoffThenSuccess(t *testing.T) {
	st, _, clk := setup(t, queue.Policy{MaxAttempts: 3, Backoff: 5 * time.Second})
	ctx := context.Background()

	calls := 0
	p := NewPool(st.Jobs(), func(ctx context.Context, job models.Job) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	}, Options{Queue: "test", Now: clk.Now})

	if worked, err := p.RunOnce(ctx); !worked || err != nil {
		t.Fatalf("first run: %v %v", worked, err)
	}
	j := st.AllJobs("test")[0]
	if j.Status != models.JobPending || j.LastError != "transient" {
		t.Fatalf("job should be pending retry: %+v", j)
	}
	if want := clk.Now().Add(5 * time.Second); !j.RunAt.Equal(want) {
		t.Fatalf("run_at = %s, want %s", j.RunAt, want)
	}

	// not yet due
	if worked, _ := p.RunOnce(ctx); worked {
		t.Fatal("job ran before its backoff elapsed")
	}
	clk.Advance(5 * time.Second)
	if worked, _ := p.RunOnce(ctx); !worked {
		t.Fatal("job not picked up after backoff")
	}
	if j := st.AllJobs("test")[0]; j.Status != models.JobDone || j.Attempts != 2 {
		t.Fatalf("job should be done after 2 attempts: %+v", j)
	}
}

func TestBuryAfterMaxAttemptsCallsOnDead(t *testing.T) {
	st, _, clk := setup(t, queue.Policy{MaxAttempts: 2, Backoff: time.Second})
	ctx := context.Background()

	var dead []models.Job
	p := NewPool(st.Jobs(), func(context.Context, models.Job) error {
		return errors.New("down")
	}, Options{
		Queue: "test",
		Now:   clk.Now,
		OnDead: func(_ context.Context, job models.Job, err error) {
			dead = append(dead, job)
		},
	})

	_, _ = p.RunOnce(ctx)
	clk.Advance(time.Second)
	_, _ = p.RunOnce(ctx)

	j := st.AllJobs("test")[0]
	if j.Status != models.JobDead || j.Attempts != 2 {
		t.Fatalf("job should be dead after 2 attempts: %+v", j)
	}
	if len(dead) != 1 || dead[0].Key != "k1" {
		t.Fatalf("OnDead calls: %+v", dead)
	}
}

func TestPermanentErrorBuriesImmediately(t *testing.T) {
	st, _, clk := setup(t, queue.EventPolicy)
	p := NewPool(st.Jobs(), func(context.Context, models.Job) error {
		return Permanent(errors.New("bad payload"))
	}, Options{Queue: "test", Now: clk.Now})

	_, _ = p.RunOnce(context.Background())
	if j := st.AllJobs("test")[0]; j.Status != models.JobDead || j.Attempts != 1 {
		t.Fatalf("want dead after 1 attempt: %+v", j)
	}
}

func TestExpiredLeaseIsRedelivered(t *testing.T) {
	st, _, clk := setup(t, queue.Policy{MaxAttempts: 1, Backoff: time.Second})
	ctx := context.Background()

	// a worker claims and then disappears
	if _, err := st.Jobs().Claim(ctx, "test", time.Minute); err != nil {
		t.Fatal(err)
	}
	clk.Advance(2 * time.Minute)

	ran := false
	var buried bool
	p := NewPool(st.Jobs(), func(context.Context, models.Job) error {
		ran = true
		return nil
	}, Options{Queue: "test", Now: clk.Now, OnDead: func(context.Context, models.Job, error) { buried = true }})

	if worked, _ := p.RunOnce(ctx); !worked {
		t.Fatal("expired job not reclaimed")
	}
	// attempt 2 of a 1-attempt budget
	if ran || !buried {
		t.Fatalf("over-budget redelivery should be buried, ran=%v buried=%v", ran, buried)
	}
}

func TestPanicIsRetried(t *testing.T) {
	st, _, clk := setup(t, queue.EventPolicy)
	p := NewPool(st.Jobs(), func(context.Context, models.Job) error {
		panic("boom")
	}, Options{Queue: "test", Now: clk.Now})

	_, _ = p.RunOnce(context.Background())
	if j := st.AllJobs("test")[0]; j.Status != models.JobPending || j.LastError != "handler panic" {
		t.Fatalf("panic should schedule a retry: %+v", j)
	}
}

func TestRunDrainsAndStopsOnCancel(t *testing.T) {
	st := memory.NewStore()
	q := queue.NewBroker(st.Jobs()).Queue("test", queue.EventPolicy)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, k := range []string{"a", "b", "c", "d"} {
		if _, err := q.Enqueue(ctx, k, struct{}{}); err != nil {
			t.Fatal(err)
		}
	}

	var n atomic.Int32
	p := NewPool(st.Jobs(), func(context.Context, models.Job) error {
		if n.Add(1) == 4 {
			cancel()
		}
		return nil
	}, Options{Queue: "test", Workers: 2, PollInterval: 10 * time.Millisecond})

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}
	if n.Load() != 4 {
		t.Fatalf("handled %d jobs, want 4", n.Load())
	}
}
