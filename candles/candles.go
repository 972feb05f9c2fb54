// Copyright (c) 2023 BVK Chaitanya

// Package candles implements candlestick time-series with bounded-window
// moving-average analytics.
package candles

import (
	"time"
)

// Candlestick is a single OHLCV bar. Times are UTC and OpenTime is
// strictly before CloseTime.
type Candlestick struct {
	OpenTime  time.Time
	CloseTime time.Time

	Open  float64
	Close float64
	Low   float64
	High  float64

	BaseVolume  float64
	QuoteVolume float64
}

// Scale identifies a candlestick bar duration in the venue's notation.
type Scale string

const (
	Scale1m  Scale = "1m"
	Scale3m  Scale = "3m"
	Scale5m  Scale = "5m"
	Scale15m Scale = "15m"
	Scale30m Scale = "30m"
	Scale1h  Scale = "1h"
	Scale4h  Scale = "4h"
	Scale8h  Scale = "8h"
	Scale1d  Scale = "1d"
	Scale3d  Scale = "3d"
	Scale1w  Scale = "1w"
	Scale1M  Scale = "1M"
)

var scaleMinutesMap = map[Scale]int{
	Scale1m:  1,
	Scale3m:  3,
	Scale5m:  5,
	Scale15m: 15,
	Scale30m: 30,
	Scale1h:  60,
	Scale4h:  4 * 60,
	Scale8h:  8 * 60,
	Scale1d:  24 * 60,
	Scale3d:  3 * 24 * 60,
	Scale1w:  7 * 24 * 60,
	Scale1M:  30 * 24 * 60,
}

// Minutes returns the bar length in minutes. Unknown scales return zero.
func (s Scale) Minutes() int {
	return scaleMinutesMap[s]
}

// Duration returns the bar length. Unknown scales return zero.
func (s Scale) Duration() time.Duration {
	return time.Duration(s.Minutes()) * time.Minute
}
