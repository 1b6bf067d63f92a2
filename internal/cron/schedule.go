package cron

import (
	"context"
	"fmt"
	"time"
)

// Job represents a scheduled task that runs inside the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Schedule runs Job once every Every.
type Schedule struct {
	Job   Job
	Every time.Duration
}

type slot struct {
	job   Job
	every time.Duration
	next  time.Time
}

// timetable tracks when each scheduled job is next due. Every job is due on
// the first tick.
type timetable struct {
	slots []*slot
}

func newTimetable(schedules []Schedule) (*timetable, error) {
	seen := make(map[string]struct{}, len(schedules))
	table := &timetable{}
	for _, s := range schedules {
		if s.Job == nil {
			continue
		}
		name := s.Job.Name()
		if name == "" {
			return nil, fmt.Errorf("job name required")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("job %q scheduled twice", name)
		}
		if s.Every <= 0 {
			return nil, fmt.Errorf("job %q needs a positive interval", name)
		}
		seen[name] = struct{}{}
		table.slots = append(table.slots, &slot{job: s.Job, every: s.Every})
	}
	return table, nil
}

func (t *timetable) due(now time.Time) []*slot {
	var out []*slot
	for _, s := range t.slots {
		if !now.Before(s.next) {
			out = append(out, s)
		}
	}
	return out
}

func (s *slot) advance(now time.Time) {
	s.next = now.Add(s.every)
}
