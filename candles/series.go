// Copyright (c) 2023 BVK Chaitanya

package candles

import (
	"fmt"
	"math"
	"os"
	"time"
)

// ValueFunc extracts the value being averaged from a bar.
type ValueFunc func(c *Candlestick) float64

// AvgPrice is the volume-weighted average trade price of a bar.
func AvgPrice(c *Candlestick) float64 {
	return c.QuoteVolume / c.BaseVolume
}

// HighPrice is the bar's high.
func HighPrice(c *Candlestick) float64 {
	return c.High
}

// LowPrice is the bar's low.
func LowPrice(c *Candlestick) float64 {
	return c.Low
}

// Series is an immutable, time-ordered view over candlestick bars,
// oldest first. A Series is never empty.
type Series struct {
	candlesticks []Candlestick

	start time.Time
	end   time.Time
}

// NewSeries creates a series over the given bars. The input must be
// non-empty, each bar must open before it closes and bars must be
// time-ordered without overlap.
func NewSeries(candlesticks []Candlestick) (*Series, error) {
	if len(candlesticks) == 0 {
		return nil, fmt.Errorf("candlestick series cannot be empty: %w", os.ErrInvalid)
	}
	for i, c := range candlesticks {
		if !c.OpenTime.Before(c.CloseTime) {
			return nil, fmt.Errorf("bar %d opens at/after its close time: %w", i, os.ErrInvalid)
		}
		if i > 0 && candlesticks[i-1].CloseTime.After(c.OpenTime) {
			return nil, fmt.Errorf("bar %d overlaps the previous bar: %w", i, os.ErrInvalid)
		}
	}
	return &Series{
		candlesticks: candlesticks,
		start:        candlesticks[0].OpenTime,
		end:          candlesticks[len(candlesticks)-1].CloseTime,
	}, nil
}

// Start returns the open time of the oldest bar.
func (s *Series) Start() time.Time {
	return s.start
}

// End returns the close time of the newest bar.
func (s *Series) End() time.Time {
	return s.end
}

// Len returns the number of bars.
func (s *Series) Len() int {
	return len(s.candlesticks)
}

// Last returns the newest bar.
func (s *Series) Last() *Candlestick {
	return &s.candlesticks[len(s.candlesticks)-1]
}

// MovingAverage returns the arithmetic mean of value over the last
// min(windowSize, Len) bars. A windowSize below one is clamped to one.
func (s *Series) MovingAverage(windowSize int, value ValueFunc) float64 {
	if windowSize < 1 {
		windowSize = 1
	}
	n := len(s.candlesticks)
	if windowSize > n {
		windowSize = n
	}
	accumulated := 0.0
	for i := 0; i < windowSize; i++ {
		accumulated += value(&s.candlesticks[n-i-1])
	}
	return accumulated / float64(windowSize)
}

// ExponentialMovingAverage returns a bounded-window EMA approximation of
// value. The decay is clamped to [0, 0.999] and the effective window is
// 3/(1-decay) bars, capped to the series length. The fold is seeded with
// the oldest bar of the window and moves forward to the newest bar, so
// the result never reflects history beyond the window.
func (s *Series) ExponentialMovingAverage(decay float64, value ValueFunc) float64 {
	decay = math.Min(math.Max(decay, 0), 0.999)
	n := len(s.candlesticks)

	window := int(3 / (1 - decay))
	if window > n {
		window = n
	}
	if window < 1 {
		window = 1
	}

	result := value(&s.candlesticks[n-window])
	for i := n - window + 1; i < n; i++ {
		result = result*decay + (1-decay)*value(&s.candlesticks[i])
	}
	return result
}

// AvgPriceMA is the moving average of the per-bar average price.
func (s *Series) AvgPriceMA(windowSize int) float64 {
	return s.MovingAverage(windowSize, AvgPrice)
}

// HighPriceMA is the moving average of the bar highs.
func (s *Series) HighPriceMA(windowSize int) float64 {
	return s.MovingAverage(windowSize, HighPrice)
}

// LowPriceMA is the moving average of the bar lows.
func (s *Series) LowPriceMA(windowSize int) float64 {
	return s.MovingAverage(windowSize, LowPrice)
}

// AvgPriceEMA is the exponential moving average of the per-bar average
// price.
func (s *Series) AvgPriceEMA(decay float64) float64 {
	return s.ExponentialMovingAverage(decay, AvgPrice)
}

// HighPriceEMA is the exponential moving average of the bar highs.
func (s *Series) HighPriceEMA(decay float64) float64 {
	return s.ExponentialMovingAverage(decay, HighPrice)
}

// LowPriceEMA is the exponential moving average of the bar lows.
func (s *Series) LowPriceEMA(decay float64) float64 {
	return s.ExponentialMovingAverage(decay, LowPrice)
}
