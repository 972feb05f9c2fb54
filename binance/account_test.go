// Copyright (c) 2023 BVK Chaitanya

package binance

import (
	"testing"
	"time"

	"github.com/bvk/accumbot/binance/internal"
	"github.com/bvk/accumbot/exchange"
)

func TestSymbolInfoFromFilters(t *testing.T) {
	filters := []*internal.SymbolFilter{
		{FilterType: "PRICE_FILTER", TickSize: "0.01000000", MinPrice: "0.01000000"},
		{FilterType: "LOT_SIZE", StepSize: "0.00010000", MinQty: "0.00010000"},
		{FilterType: "NOTIONAL", MinNotional: "5.00000000"},
	}
	info, err := symbolInfoFromFilters(filters)
	if err != nil {
		t.Fatal(err)
	}
	if info.PricePrecision != 2 || info.PriceStep != 0.01 {
		t.Fatalf("unexpected price constraints: %+v", info)
	}
	if info.AmountPrecision != 4 || info.AmountStep != 0.0001 || info.AmountMin != 0.0001 {
		t.Fatalf("unexpected amount constraints: %+v", info)
	}
}

func TestQuantize(t *testing.T) {
	if v := quantize(0.123456789, 4); v != "0.1234" {
		t.Fatalf("got %s", v)
	}
	if v := quantize(100.0, 2); v != "100" {
		t.Fatalf("got %s", v)
	}
	// Truncation never rounds an amount above what the caller holds.
	if v := quantize(0.19999, 2); v != "0.19" {
		t.Fatalf("got %s", v)
	}
}

func TestTickerFromBook(t *testing.T) {
	symbol := exchange.Symbol{Base: "BTC", Quote: "USDT"}
	ticker, err := tickerFromBook(symbol, &internal.BookTicker{
		BidPrice: "99.0",
		AskPrice: "101.0",
	})
	if err != nil {
		t.Fatal(err)
	}
	if ticker.BidPrice != 99 || ticker.AskPrice != 101 || ticker.Price != 100 {
		t.Fatalf("unexpected ticker: %+v", ticker)
	}
	if _, err := tickerFromBook(symbol, &internal.BookTicker{BidPrice: "junk"}); err == nil {
		t.Fatalf("junk prices must fail to parse")
	}
}

func TestOrderFromResponse(t *testing.T) {
	symbol := exchange.Symbol{Base: "BTC", Quote: "USDT"}
	order, err := orderFromResponse(symbol, &internal.OrderResponse{
		OrderID:            28,
		Symbol:             "BTCUSDT",
		TransactTime:       1507725176595,
		Price:              "0.00000000",
		OrigQty:            "10.00000000",
		ExecutedQty:        "10.00000000",
		CumulativeQuoteQty: "100.00000000",
		Status:             "FILLED",
		Type:               "MARKET",
		Side:               "SELL",
	})
	if err != nil {
		t.Fatal(err)
	}
	if order.OrderID != 28 || order.Side != exchange.SideSell || order.Type != exchange.OrderTypeMarket {
		t.Fatalf("unexpected order: %+v", order)
	}
	if !order.Status.IsDone() {
		t.Fatalf("filled order must be done")
	}
	// Market orders report no price; it is derived from the fill.
	if order.Price != 10 {
		t.Fatalf("derived price: want 10, got %v", order.Price)
	}
	want := time.UnixMilli(1507725176595).UTC()
	if !order.CreationTime.Equal(want) || !order.UpdateTime.Equal(want) {
		t.Fatalf("unexpected order times: %+v", order)
	}
}

func TestCandlestickFromKline(t *testing.T) {
	c, err := candlestickFromKline(&internal.Kline{
		OpenTime:    1499040000000,
		CloseTime:   1499043599999,
		Open:        "100",
		High:        "110",
		Low:         "90",
		Close:       "105",
		BaseVolume:  "2",
		QuoteVolume: "205",
	})
	if err != nil {
		t.Fatal(err)
	}
	if c.Open != 100 || c.High != 110 || c.Low != 90 || c.Close != 105 {
		t.Fatalf("unexpected prices: %+v", c)
	}
	if c.BaseVolume != 2 || c.QuoteVolume != 205 {
		t.Fatalf("unexpected volumes: %+v", c)
	}
	if !c.OpenTime.Before(c.CloseTime) {
		t.Fatalf("open time must precede close time: %+v", c)
	}
}

func TestAskBidsFromLevels(t *testing.T) {
	vs, err := askBidsFromLevels([][]string{{"100.0", "1.5"}, {"101.0", "2.5"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(vs) != 2 || vs[0].Price != 100 || vs[1].Amount != 2.5 {
		t.Fatalf("unexpected levels: %+v", vs)
	}
	if _, err := askBidsFromLevels([][]string{{"100.0"}}); err == nil {
		t.Fatalf("short level must fail")
	}
}
