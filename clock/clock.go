// Copyright (c) 2023 BVK Chaitanya

// Package clock implements the time source and ticker scheduling used by
// the trading bots. Two implementations are available: a wall-clock
// backed scheduler for live trading and a virtual-time scheduler for
// deterministic backtest replay.
package clock

import (
	"context"
	"time"
)

// Ticker is a scheduled callback. Errors returned by a ticker are logged
// and swallowed; they never unregister the ticker or stop the scheduler.
type Ticker func(ctx context.Context) error

// Clock is the scheduling interface consumed by the strategies. Now
// returns the current instant in UTC. AddTicker arranges for tick to be
// invoked once per interval and returns an opaque handle. AddDailyTicker
// arranges for tick to fire once per day when the configured hour-of-day
// is first crossed upward. RemoveTicker cancels a handle and is
// idempotent; it only affects future firings.
type Clock interface {
	Now() time.Time

	AddTicker(interval time.Duration, tick Ticker) string

	AddDailyTicker(hour float64, tick Ticker) string

	RemoveTicker(id string)
}

// Day is the length of one UTC day.
const Day = 24 * time.Hour

// hourOfDay returns the fractional hour-of-day for the given instant
// after applying the GMT offset.
func hourOfDay(t time.Time, gmtOffset time.Duration) float64 {
	ms := (t.UnixMilli() + gmtOffset.Milliseconds()) % Day.Milliseconds()
	if ms < 0 {
		ms += Day.Milliseconds()
	}
	return float64(ms) / float64(time.Hour.Milliseconds())
}
