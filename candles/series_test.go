// Copyright (c) 2023 BVK Chaitanya

package candles

import (
	"errors"
	"math"
	"os"
	"testing"
	"time"
)

func testSeries(t *testing.T, closes ...float64) *Series {
	t.Helper()
	start := time.Date(2023, time.September, 24, 0, 0, 0, 0, time.UTC)
	var cs []Candlestick
	for i, v := range closes {
		cs = append(cs, Candlestick{
			OpenTime:    start.Add(time.Duration(i) * time.Hour),
			CloseTime:   start.Add(time.Duration(i+1) * time.Hour),
			Open:        v,
			Close:       v,
			Low:         v - 1,
			High:        v + 1,
			BaseVolume:  1,
			QuoteVolume: v,
		})
	}
	s, err := NewSeries(cs)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewSeriesValidation(t *testing.T) {
	if _, err := NewSeries(nil); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("empty series: want %v, got %v", os.ErrInvalid, err)
	}

	at := time.Unix(1000, 0)
	if _, err := NewSeries([]Candlestick{{OpenTime: at, CloseTime: at}}); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("zero-length bar: want %v, got %v", os.ErrInvalid, err)
	}

	overlapping := []Candlestick{
		{OpenTime: at, CloseTime: at.Add(2 * time.Minute)},
		{OpenTime: at.Add(time.Minute), CloseTime: at.Add(3 * time.Minute)},
	}
	if _, err := NewSeries(overlapping); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("overlapping bars: want %v, got %v", os.ErrInvalid, err)
	}
}

func TestSeriesBounds(t *testing.T) {
	s := testSeries(t, 1, 2, 3)
	if got := s.Start(); !got.Equal(time.Date(2023, time.September, 24, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", got)
	}
	if got := s.End(); !got.Equal(time.Date(2023, time.September, 24, 3, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %s", got)
	}
	if s.Len() != 3 {
		t.Fatalf("len: want 3, got %d", s.Len())
	}
	if s.Last().Close != 3 {
		t.Fatalf("last close: want 3, got %v", s.Last().Close)
	}
}

func TestMovingAverage(t *testing.T) {
	s := testSeries(t, 10, 20, 30, 40)

	// A window at least as large as the series is the arithmetic mean of
	// the whole series.
	for _, w := range []int{4, 5, 100} {
		if got := s.MovingAverage(w, func(c *Candlestick) float64 { return c.Close }); got != 25 {
			t.Fatalf("window %d: want 25, got %v", w, got)
		}
	}

	// Smaller windows average the most recent bars only.
	if got := s.MovingAverage(2, func(c *Candlestick) float64 { return c.Close }); got != 35 {
		t.Fatalf("window 2: want 35, got %v", got)
	}

	// Windows below one clamp to the last bar.
	if got := s.MovingAverage(0, func(c *Candlestick) float64 { return c.Close }); got != 40 {
		t.Fatalf("window 0: want 40, got %v", got)
	}
	if got := s.MovingAverage(-3, func(c *Candlestick) float64 { return c.Close }); got != 40 {
		t.Fatalf("window -3: want 40, got %v", got)
	}
}

func TestExponentialMovingAverage(t *testing.T) {
	s := testSeries(t, 10, 20, 30, 40, 50)

	// Zero decay converges to the most recent bar.
	if got := s.ExponentialMovingAverage(0, func(c *Candlestick) float64 { return c.Close }); got != 50 {
		t.Fatalf("decay 0: want 50, got %v", got)
	}

	// Decay below zero clamps to zero.
	if got := s.ExponentialMovingAverage(-1, func(c *Candlestick) float64 { return c.Close }); got != 50 {
		t.Fatalf("decay -1: want 50, got %v", got)
	}

	// With a high decay, appending one bar changes the result only
	// negligibly.
	flat := make([]float64, 100)
	for i := range flat {
		flat[i] = 100
	}
	before := testSeries(t, flat...).ExponentialMovingAverage(0.999, AvgPrice)
	appended := testSeries(t, append(flat, 101)...).ExponentialMovingAverage(0.999, AvgPrice)
	if math.Abs(appended-before) > 0.01 {
		t.Fatalf("decay 0.999 must be stable: %v -> %v", before, appended)
	}

	// Decays above the cap clamp to 0.999.
	capped := testSeries(t, append(flat, 101)...).ExponentialMovingAverage(2, AvgPrice)
	if capped != appended {
		t.Fatalf("decay above cap must clamp: want %v, got %v", appended, capped)
	}
}

func TestPriceGetters(t *testing.T) {
	c := &Candlestick{Low: 5, High: 15, BaseVolume: 2, QuoteVolume: 30}
	if got := AvgPrice(c); got != 15 {
		t.Fatalf("avg price: want 15, got %v", got)
	}
	if got := HighPrice(c); got != 15 {
		t.Fatalf("high: want 15, got %v", got)
	}
	if got := LowPrice(c); got != 5 {
		t.Fatalf("low: want 5, got %v", got)
	}

	s := testSeries(t, 10, 20)
	if got := s.AvgPriceMA(10); got != 15 {
		t.Fatalf("avg price MA: want 15, got %v", got)
	}
	if got := s.HighPriceMA(10); got != 16 {
		t.Fatalf("high MA: want 16, got %v", got)
	}
	if got := s.LowPriceMA(10); got != 14 {
		t.Fatalf("low MA: want 14, got %v", got)
	}
}
