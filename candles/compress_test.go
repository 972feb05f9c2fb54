// Copyright (c) 2023 BVK Chaitanya

package candles

import (
	"errors"
	"os"
	"testing"
	"time"
)

func minuteBars(start time.Time, closes []float64) []Candlestick {
	var cs []Candlestick
	for i, v := range closes {
		cs = append(cs, Candlestick{
			OpenTime:    start.Add(time.Duration(i) * time.Minute),
			CloseTime:   start.Add(time.Duration(i+1) * time.Minute),
			Open:        v - 0.5,
			Close:       v,
			Low:         v - 1,
			High:        v + 1,
			BaseVolume:  1,
			QuoteVolume: v,
		})
	}
	return cs
}

func TestCompress(t *testing.T) {
	start := time.Date(2023, time.September, 24, 0, 0, 0, 0, time.UTC)
	closes := make([]float64, 3*60)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	src := minuteBars(start, closes)

	res, err := Compress(src, Scale1h)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 3 {
		t.Fatalf("buckets: want 3, got %d", len(res))
	}

	var srcBase, srcQuote, resBase, resQuote float64
	for _, c := range src {
		srcBase += c.BaseVolume
		srcQuote += c.QuoteVolume
	}
	for _, c := range res {
		resBase += c.BaseVolume
		resQuote += c.QuoteVolume
	}
	if srcBase != resBase || srcQuote != resQuote {
		t.Fatalf("volumes must be conserved: %v/%v vs %v/%v", srcBase, srcQuote, resBase, resQuote)
	}

	first := res[0]
	if !first.OpenTime.Equal(start) || !first.CloseTime.Equal(start.Add(time.Hour)) {
		t.Fatalf("first bucket spans %s..%s", first.OpenTime, first.CloseTime)
	}
	if first.Open != src[0].Open || first.Close != src[59].Close {
		t.Fatalf("first bucket open/close: got %v/%v", first.Open, first.Close)
	}
	if first.High != src[59].High || first.Low != src[0].Low {
		t.Fatalf("first bucket high/low: got %v/%v", first.High, first.Low)
	}

	// The compressed sequence is still a valid series.
	if _, err := NewSeries(res); err != nil {
		t.Fatal(err)
	}
}

func TestCompressUnaligned(t *testing.T) {
	// Start 30 minutes past the hour; the leading partial bucket absorbs
	// the bars before the first boundary.
	start := time.Date(2023, time.September, 24, 0, 30, 0, 0, time.UTC)
	closes := make([]float64, 90)
	for i := range closes {
		closes[i] = float64(i)
	}

	res, err := Compress(minuteBars(start, closes), Scale1h)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 {
		t.Fatalf("buckets: want 2, got %d", len(res))
	}
	if got := res[0].CloseTime; !got.Equal(start.Add(30 * time.Minute)) {
		t.Fatalf("partial bucket close: want %s, got %s", start.Add(30*time.Minute), got)
	}
}

func TestCompressErrors(t *testing.T) {
	start := time.Date(2023, time.September, 24, 0, 0, 0, 0, time.UTC)
	if _, err := Compress(minuteBars(start, []float64{1, 2}), Scale1h); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("too few bars: want %v, got %v", os.ErrInvalid, err)
	}

	var hrs []Candlestick
	for i := 0; i < 5; i++ {
		hrs = append(hrs, Candlestick{
			OpenTime:  start.Add(time.Duration(i) * time.Hour),
			CloseTime: start.Add(time.Duration(i+1) * time.Hour),
		})
	}
	if _, err := Compress(hrs, Scale1m); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("target finer than source: want %v, got %v", os.ErrInvalid, err)
	}
}
