// Copyright (c) 2023 BVK Chaitanya

package clock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bvk/accumbot/ctxutil"
)

const dailyPollInterval = 10 * time.Second

// Realtime is the wall-clock scheduler. Every interval ticker runs on
// its own goroutine, so successive firings of one ticker are strictly
// sequential, but firings of different tickers are not ordered relative
// to each other.
type Realtime struct {
	cg ctxutil.CloseGroup

	// gmtOffset adjusts the sampled hour-of-day for daily tickers.
	gmtOffset time.Duration

	// pollInterval is the sampling period for daily tickers.
	pollInterval time.Duration

	// nowFunc is replaced in tests.
	nowFunc func() time.Time

	mu        sync.Mutex
	nextID    int
	cancelMap map[string]context.CancelFunc
}

var _ Clock = (*Realtime)(nil)

// NewRealtime creates a wall-clock scheduler. The gmtOffset is applied
// to the sampled hour-of-day of daily tickers.
func NewRealtime(gmtOffset time.Duration) *Realtime {
	return &Realtime{
		gmtOffset:    gmtOffset,
		pollInterval: dailyPollInterval,
		nowFunc:      time.Now,
		cancelMap:    make(map[string]context.CancelFunc),
	}
}

// Close cancels all registered tickers and waits for in-flight
// invocations to return.
func (c *Realtime) Close() {
	c.cg.Close()
}

func (c *Realtime) Now() time.Time {
	return c.nowFunc().UTC()
}

func (c *Realtime) register(prefix string, cancel context.CancelFunc) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := fmt.Sprintf("%s%d", prefix, c.nextID)
	c.nextID++
	c.cancelMap[id] = cancel
	return id
}

func (c *Realtime) AddTicker(interval time.Duration, tick Ticker) string {
	tctx, tcancel := context.WithCancel(c.cg.Context())
	id := c.register("ticker", tcancel)

	c.cg.Go(func(context.Context) {
		timer := time.NewTicker(interval)
		defer timer.Stop()
		for {
			select {
			case <-tctx.Done():
				return
			case <-timer.C:
				invokeTicker(tctx, id, tick)
			}
		}
	})
	return id
}

func (c *Realtime) AddDailyTicker(hour float64, tick Ticker) string {
	tctx, tcancel := context.WithCancel(c.cg.Context())
	id := c.register("tickerDaily", tcancel)

	c.cg.Go(func(context.Context) {
		// Seed with the current sample so that a registration after the
		// configured hour does not fire until the next upward crossing.
		prevHour := hourOfDay(c.Now(), c.gmtOffset)
		timer := time.NewTicker(c.pollInterval)
		defer timer.Stop()
		for {
			select {
			case <-tctx.Done():
				return
			case <-timer.C:
				curHour := hourOfDay(c.Now(), c.gmtOffset)
				if dailyCrossing(prevHour, curHour, hour) {
					invokeTicker(tctx, id, tick)
				}
				prevHour = curHour
			}
		}
	})
	return id
}

func (c *Realtime) RemoveTicker(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.cancelMap[id]; ok {
		cancel()
		delete(c.cancelMap, id)
	}
}

// dailyCrossing reports whether the sampled hour-of-day made a strict
// low-to-high crossing of the configured hour between two samples. The
// guard keeps polling jitter near the boundary from firing twice and
// resets naturally when the sampled hour wraps past midnight.
func dailyCrossing(prevHour, curHour, hour float64) bool {
	return prevHour <= hour && curHour > hour
}

// invokeTicker runs one ticker callback. Failures are logged and
// swallowed so that a failing tick cannot unregister its ticker or take
// down the scheduler.
func invokeTicker(ctx context.Context, id string, tick Ticker) {
	if err := tick(ctx); err != nil {
		slog.Error("ticker callback has failed", "ticker", id, "err", err)
	}
}
