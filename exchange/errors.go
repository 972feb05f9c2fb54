// Copyright (c) 2023 BVK Chaitanya

package exchange

import "errors"

var (
	// ErrNoConversionPath is returned when two assets are not connected
	// by any trading-pair path of at most two hops.
	ErrNoConversionPath = errors.New("no conversion path")

	// ErrInvariant marks internal invariant violations, like a
	// conversion sequence terminating in the wrong asset. These signal
	// programming bugs; the triggering operation is aborted and the
	// failure logged loudly.
	ErrInvariant = errors.New("internal invariant violation")
)
