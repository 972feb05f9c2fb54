// Copyright (c) 2023 BVK Chaitanya

package exchange

import (
	"errors"
	"math"
	"testing"
)

var testPairs = []Symbol{
	{Base: "BTC", Quote: "USDT"},
	{Base: "ETH", Quote: "USDT"},
	{Base: "ETH", Quote: "BTC"},
	{Base: "LTC", Quote: "BTC"},
	{Base: "ADA", Quote: "USDT"},
	{Base: "ADA", Quote: "BTC"},
	{Base: "AAA", Quote: "BBB"},
}

func TestShortestExchangeSequence(t *testing.T) {
	g := NewPairGraph(testPairs)

	// Direct pair.
	seq, err := g.ShortestExchangeSequence("BTC", "USDT", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(seq) != 1 || seq[0] != (Symbol{Base: "BTC", Quote: "USDT"}) {
		t.Fatalf("direct: got %v", seq)
	}

	// Only the reverse pair exists.
	seq, err = g.ShortestExchangeSequence("USDT", "BTC", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(seq) != 1 || seq[0] != (Symbol{Base: "BTC", Quote: "USDT"}) {
		t.Fatalf("reverse: got %v", seq)
	}

	// Two hops, hub as quote of the first leg and base of the second.
	seq, err = g.ShortestExchangeSequence("LTC", "USDT", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []Symbol{{Base: "LTC", Quote: "BTC"}, {Base: "BTC", Quote: "USDT"}}
	if len(seq) != 2 || seq[0] != want[0] || seq[1] != want[1] {
		t.Fatalf("two-hop: want %v, got %v", want, seq)
	}

	// Two hops with the second leg in the reversed orientation.
	seq, err = g.ShortestExchangeSequence("ETH", "ADA", nil)
	if err != nil {
		t.Fatal(err)
	}
	want = []Symbol{{Base: "ETH", Quote: "USDT"}, {Base: "ADA", Quote: "USDT"}}
	if len(seq) != 2 || seq[0] != want[0] || seq[1] != want[1] {
		t.Fatalf("two-hop reversed: want %v, got %v", want, seq)
	}

	// Hubs are tried in priority order: both BTC and USDT can bridge
	// ETH to ADA, so the first hub in the list wins.
	seq, err = g.ShortestExchangeSequence("ETH", "ADA", []string{"BTC", "USDT"})
	if err != nil {
		t.Fatal(err)
	}
	if seq[0] != (Symbol{Base: "ETH", Quote: "BTC"}) || seq[1] != (Symbol{Base: "ADA", Quote: "BTC"}) {
		t.Fatalf("hub priority: want the BTC hub, got %v", seq)
	}

	// Assets connected only through longer paths fail.
	if _, err := g.ShortestExchangeSequence("AAA", "USDT", nil); !errors.Is(err, ErrNoConversionPath) {
		t.Fatalf("depth>2: want %v, got %v", ErrNoConversionPath, err)
	}

	// Unknown assets fail.
	if _, err := g.ShortestExchangeSequence("NOPE", "USDT", nil); !errors.Is(err, ErrNoConversionPath) {
		t.Fatalf("unknown asset: want %v, got %v", ErrNoConversionPath, err)
	}
}

func TestPairGraph(t *testing.T) {
	g := NewPairGraph(testPairs)

	if !g.HasPair(Symbol{Base: "BTC", Quote: "USDT"}) {
		t.Fatalf("BTC/USDT must be listed")
	}
	if g.HasPair(Symbol{Base: "USDT", Quote: "BTC"}) {
		t.Fatalf("swapped base/quote is a different pair")
	}
	if n := len(g.Pairs("USDT")); n != 3 {
		t.Fatalf("USDT adjacency: want 3 pairs, got %d", n)
	}
	if g.HasAsset("NOPE") {
		t.Fatalf("unknown asset must not be present")
	}
}

func testTickers(prices map[Symbol][2]float64) map[Symbol]*Ticker {
	m := make(map[Symbol]*Ticker)
	for sym, p := range prices {
		m[sym] = &Ticker{
			Symbol:   sym,
			BidPrice: p[0],
			AskPrice: p[1],
			Price:    (p[0] + p[1]) / 2,
		}
	}
	return m
}

func TestConvertBalance(t *testing.T) {
	btcusdt := Symbol{Base: "BTC", Quote: "USDT"}
	tickers := testTickers(map[Symbol][2]float64{
		btcusdt: {99, 101},
	})

	// Base leg sells at the bid.
	out, err := ConvertBalance(AssetBalance{Asset: "BTC", Amount: 2}, "USDT", []Symbol{btcusdt}, tickers)
	if err != nil {
		t.Fatal(err)
	}
	if out.Asset != "USDT" || out.Amount != 198 {
		t.Fatalf("sell leg: got %+v", out)
	}

	// Quote leg buys at the ask; the round trip is scaled exactly by the
	// traversed bid/ask spread.
	back, err := ConvertBalance(out, "BTC", []Symbol{btcusdt}, tickers)
	if err != nil {
		t.Fatal(err)
	}
	if back.Asset != "BTC" {
		t.Fatalf("round trip asset: got %q", back.Asset)
	}
	if want := 2 * 99.0 / 101.0; math.Abs(back.Amount-want) > 1e-12 {
		t.Fatalf("round trip amount: want %v, got %v", want, back.Amount)
	}

	// A missing ticker is a data error, not an invariant violation.
	if _, err := ConvertBalance(AssetBalance{Asset: "ETH", Amount: 1}, "USDT",
		[]Symbol{{Base: "ETH", Quote: "USDT"}}, tickers); err == nil {
		t.Fatalf("missing ticker must fail")
	}

	// A sequence ending in the wrong asset is an invariant violation.
	if _, err := ConvertBalance(AssetBalance{Asset: "BTC", Amount: 1}, "ETH",
		[]Symbol{btcusdt}, tickers); !errors.Is(err, ErrInvariant) {
		t.Fatalf("wrong terminal asset: want %v, got %v", ErrInvariant, err)
	}

	// A sequence that never touches the running asset is an invariant
	// violation as well.
	if _, err := ConvertBalance(AssetBalance{Asset: "ADA", Amount: 1}, "USDT",
		[]Symbol{btcusdt}, tickers); !errors.Is(err, ErrInvariant) {
		t.Fatalf("untouched asset: want %v, got %v", ErrInvariant, err)
	}
}

func TestNewSymbolInfo(t *testing.T) {
	info, err := NewSymbolInfo(0.01, 0.0001, 0.001)
	if err != nil {
		t.Fatal(err)
	}
	if info.PricePrecision != 2 || info.AmountPrecision != 4 {
		t.Fatalf("precisions: got %d/%d", info.PricePrecision, info.AmountPrecision)
	}
	if info.AmountMin != 0.001 {
		t.Fatalf("amount min: got %v", info.AmountMin)
	}

	if _, err := NewSymbolInfo(0, 0.1, 0); err == nil {
		t.Fatalf("zero price step must be rejected")
	}
	if _, err := NewSymbolInfo(0.1, 0, 0); err == nil {
		t.Fatalf("zero amount step must be rejected")
	}
}
