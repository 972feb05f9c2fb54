// Copyright (c) 2023 BVK Chaitanya

package clock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Historical is the virtual-time scheduler used for backtest replay. It
// has no independent clock; Step advances the virtual time and replays
// the registered interval tickers synchronously.
type Historical struct {
	mu sync.Mutex

	now time.Time

	nextID    int
	tickerMap map[string]*simTicker
}

type simTicker struct {
	interval time.Duration
	tick     Ticker

	// pending is the elapsed time not yet consumed by replays.
	pending time.Duration
}

var _ Clock = (*Historical)(nil)

// NewHistorical creates a virtual-time scheduler starting at the given
// instant.
func NewHistorical(start time.Time) *Historical {
	return &Historical{
		now:       start.UTC(),
		tickerMap: make(map[string]*simTicker),
	}
}

func (c *Historical) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Step advances the virtual time by delta and replays every registered
// interval ticker once per full interval elapsed, carrying any remainder
// forward to the next Step. A single Step spanning multiple intervals
// replays the ticker multiple times back to back. Replay order across
// different tickers is unspecified, but each ticker's own invocations
// are strictly time-ordered. The first callback error is returned after
// all tickers are replayed.
func (c *Historical) Step(ctx context.Context, delta time.Duration) error {
	c.mu.Lock()
	c.now = c.now.Add(delta)
	ids := make([]string, 0, len(c.tickerMap))
	for id := range c.tickerMap {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		c.mu.Lock()
		t, ok := c.tickerMap[id]
		if !ok {
			c.mu.Unlock()
			continue
		}
		t.pending += delta
		c.mu.Unlock()

		for {
			c.mu.Lock()
			if t.pending <= t.interval {
				c.mu.Unlock()
				break
			}
			t.pending -= t.interval
			c.mu.Unlock()

			if err := t.tick(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (c *Historical) AddTicker(interval time.Duration, tick Ticker) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := fmt.Sprintf("ticker%d", c.nextID)
	c.nextID++
	c.tickerMap[id] = &simTicker{interval: interval, tick: tick}
	return id
}

// AddDailyTicker is not supported in virtual time; it returns an inert
// handle that never fires.
func (c *Historical) AddDailyTicker(hour float64, tick Ticker) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := fmt.Sprintf("tickerDaily%d", c.nextID)
	c.nextID++
	return id
}

func (c *Historical) RemoveTicker(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tickerMap, id)
}
