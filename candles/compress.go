// Copyright (c) 2023 BVK Chaitanya

package candles

import (
	"fmt"
	"math"
	"os"
)

// Compress aggregates a fine-scale sequence of bars into the given
// coarser target scale. Bars before the first bucket boundary are folded
// into a partial leading bucket. Volumes are summed, highs and lows are
// folded and the bucket takes its open from the first and its close from
// the last member bar. At least three input bars are required to infer
// the source scale.
func Compress(candlesticks []Candlestick, target Scale) ([]Candlestick, error) {
	if len(candlesticks) < 3 {
		return nil, fmt.Errorf("too few bars to compress: %w", os.ErrInvalid)
	}
	targetDur := target.Duration()
	srcDur := candlesticks[1].CloseTime.Sub(candlesticks[1].OpenTime)
	if srcDur <= 0 || targetDur < srcDur {
		return nil, fmt.Errorf("cannot compress %s bars into %q: %w", srcDur, target, os.ErrInvalid)
	}
	ratio := int(math.Round(float64(targetDur) / float64(srcDur)))
	if ratio < 1 {
		ratio = 1
	}

	// Bars before the first aligned boundary fold into a short bucket.
	start := 0
	for start < len(candlesticks) && candlesticks[start].OpenTime.UnixMilli()%targetDur.Milliseconds() != 0 {
		start++
	}

	var res []Candlestick
	prevBucket := math.MinInt
	for i, c := range candlesticks {
		curBucket := int(math.Floor(float64(i-start)/float64(ratio) + 1e-6))
		if curBucket != prevBucket {
			res = append(res, c)
			prevBucket = curBucket
			continue
		}
		last := &res[len(res)-1]
		last.CloseTime = c.CloseTime
		last.Close = c.Close
		last.High = math.Max(last.High, c.High)
		last.Low = math.Min(last.Low, c.Low)
		last.BaseVolume += c.BaseVolume
		last.QuoteVolume += c.QuoteVolume
	}
	return res, nil
}
