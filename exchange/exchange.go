// Copyright (c) 2023 BVK Chaitanya

// Package exchange defines the trading-pair market model shared by all
// venue implementations: symbols, tickers, balances, orders, the Market
// and Account interfaces and the multi-hop asset conversion over the
// trading-pair graph.
package exchange

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/bvk/accumbot/candles"
)

// Symbol is a trading pair. Identity is the ordered base/quote pair;
// swapping base and quote names a different pair.
type Symbol struct {
	Base  string
	Quote string
}

// String returns the venue's concatenated BASEQUOTE identifier.
func (s Symbol) String() string {
	return s.Base + s.Quote
}

// SymbolInfo carries the venue-reported trading constraints of a pair.
type SymbolInfo struct {
	PriceStep      float64
	PricePrecision int

	AmountMin       float64
	AmountStep      float64
	AmountPrecision int
}

// NewSymbolInfo derives the precisions from the venue-reported steps.
// Steps must be positive; a zero step leaves the precision undefined.
func NewSymbolInfo(priceStep, amountStep, amountMin float64) (*SymbolInfo, error) {
	if priceStep <= 0 {
		return nil, fmt.Errorf("price step %v must be positive: %w", priceStep, os.ErrInvalid)
	}
	if amountStep <= 0 {
		return nil, fmt.Errorf("amount step %v must be positive: %w", amountStep, os.ErrInvalid)
	}
	return &SymbolInfo{
		PriceStep:       priceStep,
		PricePrecision:  int(math.Round(-math.Log10(priceStep))),
		AmountMin:       amountMin,
		AmountStep:      amountStep,
		AmountPrecision: int(math.Round(-math.Log10(amountStep))),
	}, nil
}

// Ticker is the current best bid/ask of a pair. Price is the mid price.
type Ticker struct {
	Symbol   Symbol
	BidPrice float64
	AskPrice float64
	Price    float64
}

// AskBid is one order-book level.
type AskBid struct {
	Price  float64
	Amount float64
}

// OrderBook is a snapshot of the top of a pair's book.
type OrderBook struct {
	Asks []AskBid
	Bids []AskBid
}

// AssetBalance is a plain amount of one asset.
type AssetBalance struct {
	Asset  string
	Amount float64
}

// TradingAssetBalance is an account holding. Amount is Free plus
// Locked; the split may drift while orders fill concurrently.
type TradingAssetBalance struct {
	Asset  string
	Amount float64
	Free   float64
	Locked float64
}

// Market is the per-pair facade. All operations may perform network
// I/O, are safe for concurrent use and are not mutually consistent
// across calls. Amounts and prices passed to the order operations must
// already be quantized to the pair's reported step/precision.
type Market interface {
	Symbol() Symbol

	GetLastPrice(ctx context.Context) (float64, error)
	GetCandlestickSeries(ctx context.Context, scale candles.Scale, length int) (*candles.Series, error)
	GetOrderBook(ctx context.Context) (*OrderBook, error)

	GetPricePrecision(ctx context.Context) (int, error)
	GetPriceStep(ctx context.Context) (float64, error)
	GetLotPrecision(ctx context.Context) (int, error)
	GetLotStep(ctx context.Context) (float64, error)
	GetMinAmount(ctx context.Context) (float64, error)

	BuyMarket(ctx context.Context, amount float64) (*Order, error)
	SellMarket(ctx context.Context, amount float64) (*Order, error)
	BuyLimit(ctx context.Context, amount, price float64) (*Order, error)
	SellLimit(ctx context.Context, amount, price float64) (*Order, error)

	GetBaseBalance(ctx context.Context) (*TradingAssetBalance, error)
	GetQuoteBalance(ctx context.Context) (*TradingAssetBalance, error)
}

// Account is an exchange account. Market instances are cached per pair
// and never evicted. Symbol listings may be cached with a bounded TTL;
// ticker prices are always fetched fresh.
type Account interface {
	GetMarket(ctx context.Context, symbol Symbol) (Market, error)

	GetAssetBalance(ctx context.Context, asset string) (*TradingAssetBalance, error)
	GetAllAssetBalances(ctx context.Context) ([]*TradingAssetBalance, error)

	GetAllSymbols(ctx context.Context) ([]Symbol, error)
	GetAllTickers(ctx context.Context) ([]*Ticker, error)

	// ConvertAsset values a balance in the target asset using the
	// shortest conversion sequence over the trading-pair graph. Pairs
	// reachable only through more than two hops fail with
	// ErrNoConversionPath.
	ConvertAsset(ctx context.Context, balance AssetBalance, targetAsset string) (AssetBalance, error)

	MakeMarketOrder(ctx context.Context, symbol Symbol, side Side, amount float64) (*Order, error)
	MakeLimitOrder(ctx context.Context, symbol Symbol, side Side, amount, price float64) (*Order, error)
	CancelOrder(ctx context.Context, symbol Symbol, id OrderID) (bool, error)
	GetOpenOrders(ctx context.Context, symbol *Symbol) ([]*Order, error)
	GetOrders(ctx context.Context, symbol *Symbol) ([]*Order, error)
}

// MarketBase implements the Market operations that delegate to the
// owning account. Venue markets embed it and add the data operations.
type MarketBase struct {
	symbol  Symbol
	account Account
}

// NewMarketBase creates the delegating half of a Market for the given
// pair and owning account.
func NewMarketBase(symbol Symbol, account Account) MarketBase {
	return MarketBase{symbol: symbol, account: account}
}

func (m *MarketBase) Symbol() Symbol {
	return m.symbol
}

func (m *MarketBase) BuyMarket(ctx context.Context, amount float64) (*Order, error) {
	return m.account.MakeMarketOrder(ctx, m.symbol, SideBuy, amount)
}

func (m *MarketBase) SellMarket(ctx context.Context, amount float64) (*Order, error) {
	return m.account.MakeMarketOrder(ctx, m.symbol, SideSell, amount)
}

func (m *MarketBase) BuyLimit(ctx context.Context, amount, price float64) (*Order, error) {
	return m.account.MakeLimitOrder(ctx, m.symbol, SideBuy, amount, price)
}

func (m *MarketBase) SellLimit(ctx context.Context, amount, price float64) (*Order, error) {
	return m.account.MakeLimitOrder(ctx, m.symbol, SideSell, amount, price)
}

func (m *MarketBase) GetBaseBalance(ctx context.Context) (*TradingAssetBalance, error) {
	return m.account.GetAssetBalance(ctx, m.symbol.Base)
}

func (m *MarketBase) GetQuoteBalance(ctx context.Context) (*TradingAssetBalance, error) {
	return m.account.GetAssetBalance(ctx, m.symbol.Quote)
}
