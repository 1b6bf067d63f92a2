package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/carehub-backend/pkg/logger"
	"github.com/angelmondragon/carehub-backend/pkg/metrics"
)

const defaultTick = time.Minute

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger    *logger.Logger
	Schedules []Schedule
	Locker    Locker
	Metrics   *metrics.CronJobMetrics
	// Tick is how often the timetable is checked for due jobs.
	Tick time.Duration
}

// Service runs each scheduled job on its own cadence, holding a per-job lock
// for the length of the run.
type Service struct {
	logg    *logger.Logger
	table   *timetable
	locker  Locker
	metrics *metrics.CronJobMetrics
	tick    time.Duration
	now     func() time.Time
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	table, err := newTimetable(params.Schedules)
	if err != nil {
		return nil, err
	}
	tick := params.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	return &Service{
		logg:    params.Logger,
		table:   table,
		locker:  params.Locker,
		metrics: params.Metrics,
		tick:    tick,
		now:     time.Now,
	}, nil
}

// Run checks the timetable every tick until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.runDue(ctx)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

func (s *Service) runDue(ctx context.Context) {
	for _, slot := range s.table.due(s.now()) {
		if ctx.Err() != nil {
			return
		}
		s.runSlot(ctx, slot)
	}
}

func (s *Service) runSlot(ctx context.Context, slot *slot) {
	name := slot.job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})

	lease, ok, err := s.locker.Acquire(jobCtx, name)
	if err != nil {
		// Leave the slot due so the next tick retries.
		s.logg.Error(jobCtx, "lock acquire failed", err)
		return
	}
	slot.advance(s.now())
	if !ok {
		s.logg.Debug(jobCtx, "job held by another worker")
		s.metrics.IncSkipped(name)
		return
	}

	runCtx, cancel := context.WithCancel(jobCtx)
	heartbeat := make(chan struct{})
	go func() {
		defer close(heartbeat)
		s.keepAlive(runCtx, cancel, lease)
	}()

	start := time.Now()
	err = slot.job.Run(runCtx)
	duration := time.Since(start)
	cancel()
	<-heartbeat

	if relErr := lease.Release(jobCtx); relErr != nil {
		s.logg.Error(jobCtx, "failed to release job lock", relErr)
	}

	s.metrics.ObserveDuration(name, duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(name)
		return
	}
	s.logg.Info(jobCtx, "job completed")
	s.metrics.IncSuccess(name)
}

// keepAlive extends the lease at half its TTL and cancels the run if the
// lease is lost.
func (s *Service) keepAlive(ctx context.Context, cancel context.CancelFunc, lease Lease) {
	interval := s.locker.TTL() / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lease.Extend(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logg.Error(ctx, "job lease lost, stopping run", err)
				cancel()
				return
			}
		}
	}
}
