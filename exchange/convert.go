// Copyright (c) 2023 BVK Chaitanya

package exchange

import (
	"fmt"
	"log/slog"
	"os"
)

// DefaultHubAssets is the hub-asset priority order used for two-hop
// conversions when the account is not configured with its own list.
var DefaultHubAssets = []string{"USDT", "BTC", "BUSD", "ETH"}

// PairGraph is the trading-pair graph implied by a venue's symbol
// listing: assets are nodes and every pair is an edge between its base
// and quote. The graph is built once per metadata refresh and is
// read-only afterwards.
type PairGraph struct {
	pairMap map[Symbol]struct{}

	adjacencyMap map[string][]Symbol
}

// NewPairGraph builds the graph for the given symbol listing.
func NewPairGraph(symbols []Symbol) *PairGraph {
	g := &PairGraph{
		pairMap:      make(map[Symbol]struct{}),
		adjacencyMap: make(map[string][]Symbol),
	}
	for _, s := range symbols {
		if _, ok := g.pairMap[s]; ok {
			continue
		}
		g.pairMap[s] = struct{}{}
		g.adjacencyMap[s.Base] = append(g.adjacencyMap[s.Base], s)
		g.adjacencyMap[s.Quote] = append(g.adjacencyMap[s.Quote], s)
	}
	return g
}

// HasPair reports whether the exact base/quote pair is listed.
func (g *PairGraph) HasPair(s Symbol) bool {
	_, ok := g.pairMap[s]
	return ok
}

// HasAsset reports whether the asset appears in any listed pair.
func (g *PairGraph) HasAsset(asset string) bool {
	return len(g.adjacencyMap[asset]) > 0
}

// Pairs returns all pairs incident to the asset.
func (g *PairGraph) Pairs(asset string) []Symbol {
	return g.adjacencyMap[asset]
}

// ShortestExchangeSequence finds a conversion path from one asset to
// another: the direct pair first, then the reverse pair, then a two-hop
// path through the hub assets in their priority order, trying the hub
// as the quote of the first leg with the second leg in either
// orientation. The search is deliberately bounded to two hops; assets
// connected only through longer paths fail with ErrNoConversionPath.
func (g *PairGraph) ShortestExchangeSequence(fromAsset, toAsset string, hubs []string) ([]Symbol, error) {
	if len(hubs) == 0 {
		hubs = DefaultHubAssets
	}
	if !g.HasAsset(fromAsset) || !g.HasAsset(toAsset) {
		return nil, fmt.Errorf("asset %q or %q is not traded: %w", fromAsset, toAsset, ErrNoConversionPath)
	}

	if direct := (Symbol{Base: fromAsset, Quote: toAsset}); g.HasPair(direct) {
		return []Symbol{direct}, nil
	}
	if reverse := (Symbol{Base: toAsset, Quote: fromAsset}); g.HasPair(reverse) {
		return []Symbol{reverse}, nil
	}

	for _, hub := range hubs {
		first := Symbol{Base: fromAsset, Quote: hub}
		if !g.HasPair(first) {
			continue
		}
		if second := (Symbol{Base: hub, Quote: toAsset}); g.HasPair(second) {
			return []Symbol{first, second}, nil
		}
		if second := (Symbol{Base: toAsset, Quote: hub}); g.HasPair(second) {
			return []Symbol{first, second}, nil
		}
	}
	return nil, fmt.Errorf("no path from %q to %q within two hops: %w", fromAsset, toAsset, ErrNoConversionPath)
}

// ConvertBalance walks a conversion sequence leg by leg: when the
// running asset is a pair's base the leg sells at the bid; when it is
// the quote the leg buys at the ask. The terminal asset must equal the
// target; a mismatch means the sequence was constructed wrong and is
// reported as an internal invariant violation, never returned silently.
func ConvertBalance(balance AssetBalance, targetAsset string, sequence []Symbol, tickerMap map[Symbol]*Ticker) (AssetBalance, error) {
	amount, asset := balance.Amount, balance.Asset
	for _, sym := range sequence {
		ticker, ok := tickerMap[sym]
		if !ok {
			return AssetBalance{}, fmt.Errorf("no ticker for pair %s: %w", sym, os.ErrNotExist)
		}
		switch asset {
		case sym.Base:
			amount, asset = amount*ticker.BidPrice, sym.Quote
		case sym.Quote:
			amount, asset = amount/ticker.AskPrice, sym.Base
		default:
			slog.Error("conversion sequence does not touch the running asset",
				"asset", asset, "pair", sym, "sequence", sequence)
			return AssetBalance{}, fmt.Errorf("pair %s does not touch asset %q: %w", sym, asset, ErrInvariant)
		}
	}
	if asset != targetAsset {
		slog.Error("conversion sequence terminated in the wrong asset",
			"want", targetAsset, "got", asset, "sequence", sequence)
		return AssetBalance{}, fmt.Errorf("conversion ends in %q instead of %q: %w", asset, targetAsset, ErrInvariant)
	}
	return AssetBalance{Asset: asset, Amount: amount}, nil
}
