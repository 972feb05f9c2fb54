// Copyright (c) 2023 BVK Chaitanya

// Package binance adapts the venue's spot api to the exchange model.
package binance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bvk/accumbot/binance/internal"
	"github.com/bvk/accumbot/cache"
	"github.com/bvk/accumbot/exchange"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// symbolsTTL bounds how stale the symbol listing and the pair graph
// derived from it may get.
const symbolsTTL = time.Hour

// symbolsData is the venue metadata snapshot shared by all lookups:
// the listed pairs, their trading constraints and the pair graph.
type symbolsData struct {
	symbols []exchange.Symbol

	// nameMap resolves the venue's concatenated identifiers back into
	// base/quote pairs.
	nameMap map[string]exchange.Symbol

	infoMap map[exchange.Symbol]*exchange.SymbolInfo

	graph *exchange.PairGraph
}

// Account implements exchange.Account over the venue's spot api.
type Account struct {
	client *internal.Client

	hubAssets []string

	symbolsCache *cache.Cache[*symbolsData]
	marketCache  *cache.Cache[*Market]
}

var _ exchange.Account = &Account{}

// NewAccount creates the account facade. A nil hubAssets picks the
// default hub priority for asset conversions.
func NewAccount(client *internal.Client, hubAssets []string) *Account {
	return &Account{
		client:       client,
		hubAssets:    hubAssets,
		symbolsCache: cache.New[*symbolsData](symbolsTTL),
		marketCache:  cache.New[*Market](0),
	}
}

// Connect creates a REST client with the given credentials and
// verifies it by fetching the symbol listing.
func Connect(ctx context.Context, creds *Credentials, hubAssets []string) (*Account, error) {
	if err := creds.Check(); err != nil {
		return nil, err
	}
	client, err := internal.New(creds.Key, creds.Secret, nil /* opts */)
	if err != nil {
		return nil, err
	}
	a := NewAccount(client, hubAssets)
	if _, err := a.GetAllSymbols(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("could not verify venue connectivity: %w", err)
	}
	return a, nil
}

// Close releases the underlying client and its streams.
func (a *Account) Close() error {
	return a.client.Close()
}

func (a *Account) getSymbolsData(ctx context.Context) (*symbolsData, error) {
	return a.symbolsCache.GetOrUpdate(ctx, "symbols", func(ctx context.Context) (*symbolsData, error) {
		resp, err := a.client.GetExchangeInfo(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not fetch exchange info: %w", err)
		}

		d := &symbolsData{
			nameMap: make(map[string]exchange.Symbol),
			infoMap: make(map[exchange.Symbol]*exchange.SymbolInfo),
		}
		for _, s := range resp.Symbols {
			if s.Status != "TRADING" || !s.IsSpotTradingAllowed {
				continue
			}
			symbol := exchange.Symbol{Base: s.BaseAsset, Quote: s.QuoteAsset}
			info, err := symbolInfoFromFilters(s.Filters)
			if err != nil {
				return nil, fmt.Errorf("could not derive trading constraints for %s: %w", symbol, err)
			}
			d.symbols = append(d.symbols, symbol)
			d.nameMap[s.Symbol] = symbol
			d.infoMap[symbol] = info
		}
		d.graph = exchange.NewPairGraph(d.symbols)
		return d, nil
	})
}

func symbolInfoFromFilters(filters []*internal.SymbolFilter) (*exchange.SymbolInfo, error) {
	var priceStep, amountStep, amountMin float64
	for _, f := range filters {
		var err error
		switch f.FilterType {
		case "PRICE_FILTER":
			priceStep, err = internal.ParseFloat(f.TickSize)
		case "LOT_SIZE":
			if amountStep, err = internal.ParseFloat(f.StepSize); err == nil {
				amountMin, err = internal.ParseFloat(f.MinQty)
			}
		}
		if err != nil {
			return nil, err
		}
	}
	return exchange.NewSymbolInfo(priceStep, amountStep, amountMin)
}

func (a *Account) getSymbolInfo(ctx context.Context, symbol exchange.Symbol) (*exchange.SymbolInfo, error) {
	d, err := a.getSymbolsData(ctx)
	if err != nil {
		return nil, err
	}
	info, ok := d.infoMap[symbol]
	if !ok {
		return nil, fmt.Errorf("pair %s is not traded: %w", symbol, os.ErrNotExist)
	}
	return info, nil
}

// GetMarket returns the per-pair facade. Markets are created once per
// pair and never evicted.
func (a *Account) GetMarket(ctx context.Context, symbol exchange.Symbol) (exchange.Market, error) {
	if _, err := a.getSymbolInfo(ctx, symbol); err != nil {
		return nil, err
	}
	return a.marketCache.GetOrUpdate(ctx, symbol.String(), func(ctx context.Context) (*Market, error) {
		return newMarket(a, symbol), nil
	})
}

// GetAssetBalance returns the spot holding of one asset. Assets the
// account never touched report zero, not an error.
func (a *Account) GetAssetBalance(ctx context.Context, asset string) (*exchange.TradingAssetBalance, error) {
	balances, err := a.GetAllAssetBalances(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range balances {
		if b.Asset == asset {
			return b, nil
		}
	}
	return &exchange.TradingAssetBalance{Asset: asset}, nil
}

func (a *Account) GetAllAssetBalances(ctx context.Context) ([]*exchange.TradingAssetBalance, error) {
	resp, err := a.client.GetAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not fetch account balances: %w", err)
	}
	var balances []*exchange.TradingAssetBalance
	for _, b := range resp.Balances {
		free, err := internal.ParseFloat(b.Free)
		if err != nil {
			return nil, err
		}
		locked, err := internal.ParseFloat(b.Locked)
		if err != nil {
			return nil, err
		}
		balances = append(balances, &exchange.TradingAssetBalance{
			Asset:  b.Asset,
			Amount: free + locked,
			Free:   free,
			Locked: locked,
		})
	}
	return balances, nil
}

func (a *Account) GetAllSymbols(ctx context.Context) ([]exchange.Symbol, error) {
	d, err := a.getSymbolsData(ctx)
	if err != nil {
		return nil, err
	}
	return d.symbols, nil
}

// GetAllTickers fetches the current best bid/ask of every listed pair.
// Ticker prices are never cached.
func (a *Account) GetAllTickers(ctx context.Context) ([]*exchange.Ticker, error) {
	d, err := a.getSymbolsData(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.GetBookTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not fetch book tickers: %w", err)
	}

	var tickers []*exchange.Ticker
	for _, bt := range resp {
		symbol, ok := d.nameMap[bt.Symbol]
		if !ok {
			continue
		}
		t, err := tickerFromBook(symbol, bt)
		if err != nil {
			return nil, err
		}
		tickers = append(tickers, t)
	}
	return tickers, nil
}

func tickerFromBook(symbol exchange.Symbol, bt *internal.BookTicker) (*exchange.Ticker, error) {
	bid, err := internal.ParseFloat(bt.BidPrice)
	if err != nil {
		return nil, err
	}
	ask, err := internal.ParseFloat(bt.AskPrice)
	if err != nil {
		return nil, err
	}
	return &exchange.Ticker{
		Symbol:   symbol,
		BidPrice: bid,
		AskPrice: ask,
		Price:    (bid + ask) / 2,
	}, nil
}

// ConvertAsset values a balance in the target asset over the shortest
// conversion path, priced with fresh tickers.
func (a *Account) ConvertAsset(ctx context.Context, balance exchange.AssetBalance, targetAsset string) (exchange.AssetBalance, error) {
	if balance.Asset == targetAsset {
		return balance, nil
	}

	d, err := a.getSymbolsData(ctx)
	if err != nil {
		return exchange.AssetBalance{}, err
	}
	sequence, err := d.graph.ShortestExchangeSequence(balance.Asset, targetAsset, a.hubAssets)
	if err != nil {
		return exchange.AssetBalance{}, err
	}

	tickers, err := a.GetAllTickers(ctx)
	if err != nil {
		return exchange.AssetBalance{}, err
	}
	tickerMap := make(map[exchange.Symbol]*exchange.Ticker)
	for _, t := range tickers {
		tickerMap[t.Symbol] = t
	}
	return exchange.ConvertBalance(balance, targetAsset, sequence, tickerMap)
}

// quantize truncates a value to the given decimal precision and
// formats it the way the venue expects.
func quantize(value float64, precision int) string {
	return decimal.NewFromFloat(value).Truncate(int32(precision)).String()
}

func (a *Account) MakeMarketOrder(ctx context.Context, symbol exchange.Symbol, side exchange.Side, amount float64) (*exchange.Order, error) {
	info, err := a.getSymbolInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.CreateOrder(ctx, &internal.CreateOrderRequest{
		Symbol:           symbol.String(),
		Side:             string(side),
		Type:             string(exchange.OrderTypeMarket),
		Quantity:         quantize(amount, info.AmountPrecision),
		NewClientOrderID: uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("could not create market order on %s: %w", symbol, err)
	}
	return orderFromResponse(symbol, resp)
}

func (a *Account) MakeLimitOrder(ctx context.Context, symbol exchange.Symbol, side exchange.Side, amount, price float64) (*exchange.Order, error) {
	info, err := a.getSymbolInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.CreateOrder(ctx, &internal.CreateOrderRequest{
		Symbol:           symbol.String(),
		Side:             string(side),
		Type:             string(exchange.OrderTypeLimit),
		Quantity:         quantize(amount, info.AmountPrecision),
		Price:            quantize(price, info.PricePrecision),
		TimeInForce:      "GTC",
		NewClientOrderID: uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("could not create limit order on %s: %w", symbol, err)
	}
	return orderFromResponse(symbol, resp)
}

// CancelOrder cancels a live order. Orders already in a terminal state
// report false without an error.
func (a *Account) CancelOrder(ctx context.Context, symbol exchange.Symbol, id exchange.OrderID) (bool, error) {
	_, err := a.client.CancelOrder(ctx, symbol.String(), int64(id))
	if err != nil {
		var serr *internal.StatusError
		// Code -2011 is the venue's "unknown order" rejection, which
		// is what a cancel of a completed order comes back as.
		if errors.As(err, &serr) && serr.Code == -2011 {
			return false, nil
		}
		return false, fmt.Errorf("could not cancel order %d on %s: %w", id, symbol, err)
	}
	return true, nil
}

func (a *Account) GetOpenOrders(ctx context.Context, symbol *exchange.Symbol) ([]*exchange.Order, error) {
	d, err := a.getSymbolsData(ctx)
	if err != nil {
		return nil, err
	}
	name := ""
	if symbol != nil {
		name = symbol.String()
	}
	resp, err := a.client.GetOpenOrders(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("could not fetch open orders: %w", err)
	}
	return ordersFromResponses(d, resp)
}

// GetOrders returns the order history of one pair. The venue has no
// account-wide history listing, so the pair is required.
func (a *Account) GetOrders(ctx context.Context, symbol *exchange.Symbol) ([]*exchange.Order, error) {
	if symbol == nil {
		return nil, fmt.Errorf("order history needs a trading pair: %w", os.ErrInvalid)
	}
	d, err := a.getSymbolsData(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.GetAllOrders(ctx, symbol.String())
	if err != nil {
		return nil, fmt.Errorf("could not fetch order history for %s: %w", symbol, err)
	}
	return ordersFromResponses(d, resp)
}

func ordersFromResponses(d *symbolsData, resp []*internal.OrderResponse) ([]*exchange.Order, error) {
	var orders []*exchange.Order
	for _, r := range resp {
		symbol, ok := d.nameMap[r.Symbol]
		if !ok {
			// Pairs delisted since the order was placed are not in the
			// current listing.
			symbol = exchange.Symbol{Base: r.Symbol}
		}
		order, err := orderFromResponse(symbol, r)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func orderFromResponse(symbol exchange.Symbol, r *internal.OrderResponse) (*exchange.Order, error) {
	price, err := internal.ParseFloat(r.Price)
	if err != nil {
		return nil, err
	}
	amount, err := internal.ParseFloat(r.OrigQty)
	if err != nil {
		return nil, err
	}
	executed, err := internal.ParseFloat(r.ExecutedQty)
	if err != nil {
		return nil, err
	}
	quote, err := internal.ParseFloat(r.CumulativeQuoteQty)
	if err != nil {
		return nil, err
	}

	created := r.Time
	if created == 0 {
		created = r.TransactTime
	}
	updated := r.UpdateTime
	if updated == 0 {
		updated = r.TransactTime
	}

	// Market orders report zero price; the effective price is the
	// quote total over the executed amount.
	if price == 0 && executed > 0 {
		price = quote / executed
	}

	return &exchange.Order{
		OrderID:               exchange.OrderID(r.OrderID),
		Symbol:                symbol,
		Side:                  exchange.Side(r.Side),
		Type:                  exchange.OrderType(r.Type),
		Status:                exchange.OrderStatus(r.Status),
		Amount:                amount,
		Price:                 price,
		ExecutedBaseAmount:    executed,
		CumulativeQuoteAmount: quote,
		CreationTime:          time.UnixMilli(created).UTC(),
		UpdateTime:            time.UnixMilli(updated).UTC(),
	}, nil
}
