package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/carehub-backend/pkg/logger"
	"github.com/angelmondragon/carehub-backend/pkg/metrics"
)

type fakeLease struct {
	released bool
	extends  int
	lost     bool
}

func (f *fakeLease) Extend(context.Context) error {
	f.extends++
	if f.lost {
		return errLeaseLost
	}
	return nil
}

func (f *fakeLease) Release(context.Context) error { f.released = true; return nil }

type fakeLocker struct {
	mu      sync.Mutex
	held    map[string]bool
	err     error
	ttl     time.Duration
	leases  []*fakeLease
	loseAll bool
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]bool{}} }

func (f *fakeLocker) Acquire(_ context.Context, job string) (Lease, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held[job] {
		return nil, false, nil
	}
	lease := &fakeLease{lost: f.loseAll}
	f.leases = append(f.leases, lease)
	return lease, true, nil
}

func (f *fakeLocker) TTL() time.Duration { return f.ttl }

type testJob struct {
	name string
	err  error
	runs int
	run  func(ctx context.Context) error
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) error {
	t.runs++
	if t.run != nil {
		return t.run(ctx)
	}
	return t.err
}

func newTestService(t *testing.T, locker Locker, schedules ...Schedule) (*Service, *time.Time) {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:    logger.Nop(),
		Schedules: schedules,
		Locker:    locker,
		Metrics:   metrics.NewCronJobMetrics(nil),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestServiceRunsEachJobOnItsOwnCadence(t *testing.T) {
	hourly := &testJob{name: "hourly"}
	daily := &testJob{name: "daily", err: errors.New("boom")}
	locker := newFakeLocker()
	svc, now := newTestService(t, locker,
		Schedule{Job: hourly, Every: time.Hour},
		Schedule{Job: daily, Every: 24 * time.Hour},
	)
	ctx := context.Background()

	svc.runDue(ctx)
	if hourly.runs != 1 || daily.runs != 1 {
		t.Fatalf("expected both jobs on first tick, got hourly=%d daily=%d", hourly.runs, daily.runs)
	}

	*now = now.Add(30 * time.Minute)
	svc.runDue(ctx)
	if hourly.runs != 1 {
		t.Fatalf("hourly job ran early: %d", hourly.runs)
	}

	*now = now.Add(30 * time.Minute)
	svc.runDue(ctx)
	if hourly.runs != 2 || daily.runs != 1 {
		t.Fatalf("expected hourly=2 daily=1, got hourly=%d daily=%d", hourly.runs, daily.runs)
	}
	for i, lease := range locker.leases {
		if !lease.released {
			t.Fatalf("lease %d not released", i)
		}
	}
}

func TestServiceSkipsJobHeldElsewhere(t *testing.T) {
	job := &testJob{name: "loan-reminder"}
	locker := newFakeLocker()
	locker.held["loan-reminder"] = true
	svc, now := newTestService(t, locker, Schedule{Job: job, Every: time.Hour})

	svc.runDue(context.Background())
	if job.runs != 0 {
		t.Fatalf("held job must not run, ran %d", job.runs)
	}

	// The slot still advances; another worker covered this interval.
	locker.held["loan-reminder"] = false
	*now = now.Add(time.Minute)
	svc.runDue(context.Background())
	if job.runs != 0 {
		t.Fatalf("job ran before its next slot: %d", job.runs)
	}
}

func TestServiceRetriesAfterLockError(t *testing.T) {
	job := &testJob{name: "outbox-retention"}
	locker := newFakeLocker()
	locker.err = errors.New("redis down")
	svc, now := newTestService(t, locker, Schedule{Job: job, Every: 24 * time.Hour})

	svc.runDue(context.Background())
	if job.runs != 0 {
		t.Fatalf("job ran without a lock")
	}
	locker.err = nil
	*now = now.Add(time.Minute)
	svc.runDue(context.Background())
	if job.runs != 1 {
		t.Fatalf("expected retry on next tick, ran %d", job.runs)
	}
}

func TestServiceCancelsRunWhenLeaseLost(t *testing.T) {
	locker := newFakeLocker()
	locker.ttl = 20 * time.Millisecond
	locker.loseAll = true
	job := &testJob{name: "slow", run: func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return nil
		}
	}}
	svc, _ := newTestService(t, locker, Schedule{Job: job, Every: time.Hour})

	start := time.Now()
	svc.runDue(context.Background())
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("run was not canceled after losing the lease (%s)", elapsed)
	}
	if locker.leases[0].extends == 0 {
		t.Fatal("expected at least one extend attempt")
	}
}

func TestNewServiceValidatesSchedules(t *testing.T) {
	locker := newFakeLocker()
	cases := map[string][]Schedule{
		"duplicate": {{Job: &testJob{name: "a"}, Every: time.Hour}, {Job: &testJob{name: "a"}, Every: time.Hour}},
		"interval":  {{Job: &testJob{name: "a"}}},
		"name":      {{Job: &testJob{}, Every: time.Hour}},
	}
	for name, schedules := range cases {
		if _, err := NewService(ServiceParams{Logger: logger.Nop(), Locker: locker, Schedules: schedules}); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := NewService(ServiceParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected locker required")
	}
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "tick"}
	svc, _ := newTestService(t, newFakeLocker(), Schedule{Job: job, Every: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
