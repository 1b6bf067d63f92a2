package relay

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	maxBackoff   = 10 * time.Second
	jitterWindow = 250 * time.Millisecond
)

// pacer picks the pause before the next batch. Failures double the pause up
// to maxBackoff; a full success resets it.
type pacer struct {
	base    time.Duration
	current time.Duration
	jitter  func() time.Duration
}

func newPacer(base time.Duration) *pacer {
	return &pacer{
		base:    base,
		current: base,
		jitter:  func() time.Duration { return time.Duration(rand.Int64N(int64(jitterWindow))) },
	}
}

func (p *pacer) next(stats Stats, err error) time.Duration {
	if err != nil {
		p.current *= 2
		if p.current > maxBackoff {
			p.current = maxBackoff
		}
		return p.current + p.jitter()
	}
	p.current = p.base
	if stats.Claimed > 0 && stats.Retried == 0 {
		return 0
	}
	return p.base + p.jitter()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
