package main

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	maxBackoff   = 10 * time.Second
	jitterWindow = 250 * time.Millisecond
)

// pacer decides how long the loop waits between batches. Failures double the
// wait up to max; any success resets it.
type pacer struct {
	base, max, current time.Duration
}

func newPacer(base, max time.Duration) *pacer {
	return &pacer{base: base, max: max, current: base}
}

func (p *pacer) after(found bool, err error) time.Duration {
	switch {
	case err != nil:
		p.current = nextBackoff(p.current, p.base, p.max)
		return withJitter(p.current)
	case found:
		p.current = p.base
		return 0
	default:
		p.current = p.base
		return withJitter(p.base)
	}
}

func nextBackoff(current, base, limit time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, limit)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
