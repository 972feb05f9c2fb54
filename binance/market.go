// Copyright (c) 2023 BVK Chaitanya

package binance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bvk/accumbot/binance/internal"
	"github.com/bvk/accumbot/candles"
	"github.com/bvk/accumbot/exchange"
)

// orderBookLimit bounds the number of levels fetched per side.
const orderBookLimit = 100

// Market implements exchange.Market for one trading pair. Order and
// balance operations delegate to the owning account.
type Market struct {
	exchange.MarketBase

	account *Account
}

var _ exchange.Market = &Market{}

func newMarket(account *Account, symbol exchange.Symbol) *Market {
	return &Market{
		MarketBase: exchange.NewMarketBase(symbol, account),
		account:    account,
	}
}

func (m *Market) GetLastPrice(ctx context.Context) (float64, error) {
	resp, err := m.account.client.GetTickerPrice(ctx, m.Symbol().String())
	if err != nil {
		return 0, fmt.Errorf("could not fetch last price of %s: %w", m.Symbol(), err)
	}
	return internal.ParseFloat(resp.Price)
}

// GetCandlestickSeries fetches the most recent bars at the given
// scale, oldest first. The last bar may still be in progress.
func (m *Market) GetCandlestickSeries(ctx context.Context, scale candles.Scale, length int) (*candles.Series, error) {
	klines, err := m.account.client.GetKlines(ctx, m.Symbol().String(), string(scale), length)
	if err != nil {
		return nil, fmt.Errorf("could not fetch %s klines of %s: %w", scale, m.Symbol(), err)
	}

	candlesticks := make([]candles.Candlestick, 0, len(klines))
	for _, k := range klines {
		c, err := candlestickFromKline(k)
		if err != nil {
			return nil, err
		}
		candlesticks = append(candlesticks, c)
	}
	return candles.NewSeries(candlesticks)
}

func candlestickFromKline(k *internal.Kline) (candles.Candlestick, error) {
	var c candles.Candlestick
	fields := []struct {
		s string
		p *float64
	}{
		{k.Open, &c.Open},
		{k.High, &c.High},
		{k.Low, &c.Low},
		{k.Close, &c.Close},
		{k.BaseVolume, &c.BaseVolume},
		{k.QuoteVolume, &c.QuoteVolume},
	}
	for _, f := range fields {
		v, err := internal.ParseFloat(f.s)
		if err != nil {
			return candles.Candlestick{}, err
		}
		*f.p = v
	}
	c.OpenTime = time.UnixMilli(k.OpenTime).UTC()
	c.CloseTime = time.UnixMilli(k.CloseTime).UTC()
	return c, nil
}

func (m *Market) GetOrderBook(ctx context.Context) (*exchange.OrderBook, error) {
	resp, err := m.account.client.GetDepth(ctx, m.Symbol().String(), orderBookLimit)
	if err != nil {
		return nil, fmt.Errorf("could not fetch order book of %s: %w", m.Symbol(), err)
	}
	asks, err := askBidsFromLevels(resp.Asks)
	if err != nil {
		return nil, err
	}
	bids, err := askBidsFromLevels(resp.Bids)
	if err != nil {
		return nil, err
	}
	return &exchange.OrderBook{Asks: asks, Bids: bids}, nil
}

func askBidsFromLevels(levels [][]string) ([]exchange.AskBid, error) {
	var vs []exchange.AskBid
	for _, l := range levels {
		if len(l) < 2 {
			return nil, fmt.Errorf("order book level %v has fewer than two fields", l)
		}
		price, err := internal.ParseFloat(l[0])
		if err != nil {
			return nil, err
		}
		amount, err := internal.ParseFloat(l[1])
		if err != nil {
			return nil, err
		}
		vs = append(vs, exchange.AskBid{Price: price, Amount: amount})
	}
	return vs, nil
}

func (m *Market) GetPricePrecision(ctx context.Context) (int, error) {
	info, err := m.account.getSymbolInfo(ctx, m.Symbol())
	if err != nil {
		return 0, err
	}
	return info.PricePrecision, nil
}

func (m *Market) GetPriceStep(ctx context.Context) (float64, error) {
	info, err := m.account.getSymbolInfo(ctx, m.Symbol())
	if err != nil {
		return 0, err
	}
	return info.PriceStep, nil
}

func (m *Market) GetLotPrecision(ctx context.Context) (int, error) {
	info, err := m.account.getSymbolInfo(ctx, m.Symbol())
	if err != nil {
		return 0, err
	}
	return info.AmountPrecision, nil
}

func (m *Market) GetLotStep(ctx context.Context) (float64, error) {
	info, err := m.account.getSymbolInfo(ctx, m.Symbol())
	if err != nil {
		return 0, err
	}
	return info.AmountStep, nil
}

// GetMinAmount returns the smallest order amount the pair accepts.
func (m *Market) GetMinAmount(ctx context.Context) (float64, error) {
	info, err := m.account.getSymbolInfo(ctx, m.Symbol())
	if err != nil {
		return 0, err
	}
	return info.AmountMin, nil
}

// WatchTicker streams live best bid/ask updates over the websocket
// feed. Slow consumers only see the most recent update. The returned
// stop function releases the subscription.
func (m *Market) WatchTicker() (<-chan *exchange.Ticker, func(), error) {
	bch, unwatch, err := m.account.client.WatchBookTicker(m.Symbol().String())
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan *exchange.Ticker, 1)
	done := make(chan struct{})
	go func() {
		defer close(ch)
		for {
			select {
			case <-done:
				return
			case bt, ok := <-bch:
				if !ok {
					return
				}
				t, err := tickerFromBook(m.Symbol(), bt)
				if err != nil {
					continue
				}
				// Replace any unconsumed update with the newest one.
				select {
				case ch <- t:
				default:
					select {
					case <-ch:
					default:
					}
					select {
					case ch <- t:
					default:
					}
				}
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			unwatch()
			close(done)
		})
	}
	return ch, stop, nil
}
