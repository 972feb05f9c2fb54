// Copyright (c) 2023 BVK Chaitanya

// Package bot implements the accumulation strategy: buy small amounts
// of a main asset and a rotating alternate asset on price dips, at
// most once per asset per day, and journal every buy.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bvk/accumbot/candles"
	"github.com/bvk/accumbot/clock"
	"github.com/bvk/accumbot/ctxutil"
	"github.com/bvk/accumbot/events"
	"github.com/bvk/accumbot/exchange"
	"github.com/bvk/accumbot/history"
	"github.com/bvkgo/kv"
)

const (
	updateInterval = time.Minute

	// dailyReportHour is when the daily results report goes out, as a
	// fractional hour of the clock's day.
	dailyReportHour = 8.5

	// dipThreshold buys when the last price falls below this fraction
	// of the hourly moving average.
	dipThreshold = 0.98

	// lateDayFraction forces the daily buy near the end of the day
	// even without a dip, so no day is skipped entirely.
	lateDayFraction = 0.8

	maWindow     = 8
	seriesLength = 10
)

// Config holds the accumulation parameters. Buy amounts are in the
// quote asset.
type Config struct {
	QuoteAsset string

	MainAsset          string
	MainAssetBuyAmount float64

	OtherAssets          []string
	OtherAssetsBuyAmount float64

	// MinOrderAmount is the venue's minimum order value in the quote
	// asset. Every buy is padded by this amount and immediately sold
	// back, so the journaled position stays at the configured size.
	MinOrderAmount float64
}

func (c *Config) Check() error {
	if len(c.QuoteAsset) == 0 || len(c.MainAsset) == 0 {
		return fmt.Errorf("quote and main assets cannot be empty: %w", os.ErrInvalid)
	}
	if c.MainAssetBuyAmount <= 0 || c.MinOrderAmount <= 0 {
		return fmt.Errorf("buy amounts must be positive: %w", os.ErrInvalid)
	}
	if len(c.OtherAssets) > 0 && c.OtherAssetsBuyAmount <= 0 {
		return fmt.Errorf("alternate asset buy amount must be positive: %w", os.ErrInvalid)
	}
	return nil
}

// Position is the aggregate of one asset's journaled buys, valued at
// current prices.
type Position struct {
	Asset string

	BaseAmount float64
	QuoteSpent float64
	QuoteValue float64
}

// Accumulator runs the strategy on its account's markets. Create with
// New and activate with Start; all trading happens on clock ticks.
type Accumulator struct {
	name string

	account    exchange.Account
	clock      clock.Clock
	dispatcher *events.Dispatcher

	orderLog *history.OrderLog

	cfg Config

	// settleDelay separates the padded buy from the pad-back sell so
	// the venue has settled the first fill.
	settleDelay time.Duration

	mu      sync.Mutex
	tickers []string
}

// New creates an accumulation bot journaling under the given name.
func New(name string, account exchange.Account, c clock.Clock, dispatcher *events.Dispatcher, db kv.Database, cfg Config) (*Accumulator, error) {
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid accumulation config: %w", err)
	}
	return &Accumulator{
		name:        name,
		account:     account,
		clock:       c,
		dispatcher:  dispatcher,
		orderLog:    history.NewOrderLog(db, name),
		cfg:         cfg,
		settleDelay: 1500 * time.Millisecond,
	}, nil
}

func (b *Accumulator) Name() string {
	return b.name
}

// Start registers the minute update ticker and the daily report
// ticker. Start is idempotent.
func (b *Accumulator) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.tickers) > 0 {
		return
	}
	b.tickers = append(b.tickers,
		b.clock.AddTicker(updateInterval, b.update),
		b.clock.AddDailyTicker(dailyReportHour, b.sendResults))
	b.dispatcher.Dispatch("bot-accumulation-start", map[string]any{"name": b.name})
}

// Stop removes the tickers. In-flight ticks complete on their own.
func (b *Accumulator) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, t := range b.tickers {
		b.clock.RemoveTicker(t)
	}
	b.tickers = nil
}

func (b *Accumulator) day(at time.Time) int64 {
	return at.UnixMilli() / clock.Day.Milliseconds()
}

func (b *Accumulator) altOfTheDay() string {
	if len(b.cfg.OtherAssets) == 0 {
		return ""
	}
	day := b.day(b.clock.Now())
	return b.cfg.OtherAssets[day%int64(len(b.cfg.OtherAssets))]
}

// update is the minute tick. At most one buy happens per tick.
func (b *Accumulator) update(ctx context.Context) error {
	quoteBalance, err := b.account.GetAssetBalance(ctx, b.cfg.QuoteAsset)
	if err != nil {
		return fmt.Errorf("could not fetch quote asset balance: %w", err)
	}
	minQuoteAmount := 2 * b.cfg.MinOrderAmount
	if quoteBalance.Free < minQuoteAmount {
		b.dispatcher.Dispatch("bot-accumulation-insufficient", map[string]any{
			"name":       b.name,
			"minAmount":  minQuoteAmount,
			"quoteAsset": b.cfg.QuoteAsset,
		})
		return nil
	}

	bought, err := b.assetsBoughtOn(ctx, b.day(b.clock.Now()))
	if err != nil {
		return err
	}

	if !bought[b.cfg.MainAsset] {
		ok, err := b.shouldBuy(ctx, b.cfg.MainAsset)
		if err != nil {
			return err
		}
		if ok {
			return b.buy(ctx, b.cfg.MainAssetBuyAmount, b.cfg.MainAsset)
		}
	}

	alt := b.altOfTheDay()
	if len(alt) == 0 || bought[alt] {
		return nil
	}
	ok, err := b.shouldBuy(ctx, alt)
	if err != nil {
		return err
	}
	if ok {
		return b.buy(ctx, b.cfg.OtherAssetsBuyAmount, alt)
	}
	return nil
}

// assetsBoughtOn returns the assets already bought on the given day
// with the configured quote asset.
func (b *Accumulator) assetsBoughtOn(ctx context.Context, day int64) (map[string]bool, error) {
	orders, err := b.orderLog.Orders(ctx)
	if err != nil {
		return nil, err
	}
	bought := make(map[string]bool)
	for _, order := range orders {
		if b.day(order.Time) == day && order.QuoteAsset == b.cfg.QuoteAsset {
			bought[order.Asset] = true
		}
	}
	return bought, nil
}

// shouldBuy is the dip check: the last price must be below 98% of the
// 8-bar moving average of hourly average prices, or the day must be
// nearly over.
func (b *Accumulator) shouldBuy(ctx context.Context, asset string) (bool, error) {
	now := b.clock.Now()
	dayFraction := float64(now.UnixMilli()%clock.Day.Milliseconds()) / float64(clock.Day.Milliseconds())

	market, err := b.account.GetMarket(ctx, exchange.Symbol{Base: asset, Quote: b.cfg.QuoteAsset})
	if err != nil {
		return false, fmt.Errorf("could not get market for %s: %w", asset, err)
	}
	series, err := market.GetCandlestickSeries(ctx, candles.Scale1h, seriesLength)
	if err != nil {
		return false, fmt.Errorf("could not fetch candlesticks for %s: %w", asset, err)
	}
	lastPrice, err := market.GetLastPrice(ctx)
	if err != nil {
		return false, fmt.Errorf("could not fetch last price of %s: %w", asset, err)
	}
	return lastPrice < series.AvgPriceMA(maWindow)*dipThreshold || dayFraction > lateDayFraction, nil
}

// buy spends quoteValue of the quote asset on the given asset. The
// market buy is padded by the minimum order value, bumped to the
// pair's minimum lot, and the pad is sold right back, so the order
// also works when quoteValue alone is below the venue minimum.
func (b *Accumulator) buy(ctx context.Context, quoteValue float64, asset string) error {
	symbol := exchange.Symbol{Base: asset, Quote: b.cfg.QuoteAsset}
	market, err := b.account.GetMarket(ctx, symbol)
	if err != nil {
		return fmt.Errorf("could not get market for %s: %w", asset, err)
	}
	price, err := market.GetLastPrice(ctx)
	if err != nil {
		return fmt.Errorf("could not fetch last price of %s: %w", asset, err)
	}

	sellAmount := b.cfg.MinOrderAmount / price
	minAmount, err := market.GetMinAmount(ctx)
	if err != nil {
		return fmt.Errorf("could not fetch minimum order amount of %s: %w", asset, err)
	}
	if sellAmount < minAmount {
		sellAmount = minAmount
	}
	buyAmount := sellAmount + quoteValue/price

	buyOrder, err := market.BuyMarket(ctx, buyAmount)
	if err != nil {
		return fmt.Errorf("could not buy %v %s: %w", buyAmount, asset, err)
	}

	// The journal entry precedes the pad-back sell; a buy whose pad
	// sell fails must still count as that day's buy.
	order := &history.Order{
		Time:       b.clock.Now(),
		Asset:      asset,
		Amount:     buyOrder.ExecutedBaseAmount - sellAmount,
		Price:      price,
		QuoteAsset: b.cfg.QuoteAsset,
	}
	if err := b.orderLog.Append(ctx, order); err != nil {
		return err
	}

	ctxutil.Sleep(ctx, b.settleDelay)
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	if _, err := market.SellMarket(ctx, sellAmount); err != nil {
		return fmt.Errorf("could not sell back %v %s: %w", sellAmount, asset, err)
	}

	lotPrecision, err := market.GetLotPrecision(ctx)
	if err != nil {
		slog.Error("could not fetch lot precision for buy event", "asset", asset, "err", err)
		lotPrecision = 8
	}
	b.dispatcher.Dispatch("bot-accumulation-buy", map[string]any{
		"name":         b.name,
		"asset":        asset,
		"amount":       order.Amount,
		"price":        order.Price,
		"lotPrecision": lotPrecision,
	})
	return nil
}

// sendResults is the daily tick: value every journaled position at
// current prices and publish the report as an event.
func (b *Accumulator) sendResults(ctx context.Context) error {
	positions, err := b.Positions(ctx)
	if err != nil {
		return err
	}
	b.dispatcher.Dispatch("bot-accumulation-results", map[string]any{
		"name":      b.name,
		"positions": positions,
	})
	return nil
}

// Positions aggregates the journal per asset and values each holding
// in the quote asset at current prices. Assets appear in the order of
// their first buy.
func (b *Accumulator) Positions(ctx context.Context) ([]*Position, error) {
	orders, err := b.orderLog.Orders(ctx)
	if err != nil {
		return nil, err
	}

	var positions []*Position
	positionMap := make(map[string]*Position)
	for _, order := range orders {
		p, ok := positionMap[order.Asset]
		if !ok {
			p = &Position{Asset: order.Asset}
			positionMap[order.Asset] = p
			positions = append(positions, p)
		}
		p.BaseAmount += order.Amount
		p.QuoteSpent += order.Value()
	}

	for _, p := range positions {
		balance := exchange.AssetBalance{Asset: p.Asset, Amount: p.BaseAmount}
		converted, err := b.account.ConvertAsset(ctx, balance, b.cfg.QuoteAsset)
		if err != nil {
			return nil, fmt.Errorf("could not value %s position: %w", p.Asset, err)
		}
		p.QuoteValue = converted.Amount
	}
	return positions, nil
}
