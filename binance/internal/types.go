// Copyright (c) 2023 BVK Chaitanya

package internal

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ErrorResponse is the venue's error payload carried in non-2xx
// responses.
type ErrorResponse struct {
	Code    int64  `json:"code"`
	Message string `json:"msg"`
}

// StatusError reports an unsuccessful http response, with the venue's
// error code and message when the body carried one.
type StatusError struct {
	StatusCode int

	Code    int64
	Message string
}

func (v *StatusError) Error() string {
	if v.Code != 0 || len(v.Message) != 0 {
		return fmt.Sprintf("http status %d (code %d: %s)", v.StatusCode, v.Code, v.Message)
	}
	return fmt.Sprintf("http status %d", v.StatusCode)
}

type ExchangeInfoResponse struct {
	Timezone   string        `json:"timezone"`
	ServerTime int64         `json:"serverTime"`
	Symbols    []*SymbolInfo `json:"symbols"`
}

type SymbolInfo struct {
	Symbol     string `json:"symbol"`
	Status     string `json:"status"`
	BaseAsset  string `json:"baseAsset"`
	QuoteAsset string `json:"quoteAsset"`

	IsSpotTradingAllowed bool `json:"isSpotTradingAllowed"`

	Filters []*SymbolFilter `json:"filters"`
}

type SymbolFilter struct {
	FilterType string `json:"filterType"`

	// PRICE_FILTER fields.
	MinPrice string `json:"minPrice"`
	MaxPrice string `json:"maxPrice"`
	TickSize string `json:"tickSize"`

	// LOT_SIZE fields.
	MinQty   string `json:"minQty"`
	MaxQty   string `json:"maxQty"`
	StepSize string `json:"stepSize"`

	// NOTIONAL fields.
	MinNotional string `json:"minNotional"`
}

// Kline is one candlestick. The venue encodes klines as positional
// JSON arrays, so decoding is hand written.
type Kline struct {
	OpenTime  int64
	CloseTime int64

	Open  string
	High  string
	Low   string
	Close string

	BaseVolume  string
	QuoteVolume string

	NumTrades int64
}

func (v *Kline) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if len(fields) < 9 {
		return fmt.Errorf("kline array has %d fields, want 9 or more", len(fields))
	}
	if err := json.Unmarshal(fields[0], &v.OpenTime); err != nil {
		return fmt.Errorf("could not decode kline open time: %w", err)
	}
	for i, p := range []*string{&v.Open, &v.High, &v.Low, &v.Close, &v.BaseVolume} {
		if err := json.Unmarshal(fields[1+i], p); err != nil {
			return fmt.Errorf("could not decode kline field %d: %w", 1+i, err)
		}
	}
	if err := json.Unmarshal(fields[6], &v.CloseTime); err != nil {
		return fmt.Errorf("could not decode kline close time: %w", err)
	}
	if err := json.Unmarshal(fields[7], &v.QuoteVolume); err != nil {
		return fmt.Errorf("could not decode kline quote volume: %w", err)
	}
	if err := json.Unmarshal(fields[8], &v.NumTrades); err != nil {
		return fmt.Errorf("could not decode kline trade count: %w", err)
	}
	return nil
}

// DepthResponse is an order book snapshot. Levels are [price, qty]
// string pairs.
type DepthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

type TickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// BookTicker is the best bid/ask of one symbol. The same shape is used
// by the REST endpoint and the websocket stream (with short keys).
type BookTicker struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	BidQty   string `json:"bidQty"`
	AskPrice string `json:"askPrice"`
	AskQty   string `json:"askQty"`
}

// streamBookTicker is the websocket wire form of a BookTicker.
type streamBookTicker struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

type AccountResponse struct {
	CanTrade   bool       `json:"canTrade"`
	UpdateTime int64      `json:"updateTime"`
	Balances   []*Balance `json:"balances"`
}

type Balance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

type CreateOrderRequest struct {
	Symbol string
	Side   string
	Type   string

	// Quantity and Price must already be quantized to the symbol's
	// steps. Price and TimeInForce apply to limit orders only.
	Quantity    string
	Price       string
	TimeInForce string

	NewClientOrderID string
}

type OrderResponse struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`

	TransactTime int64 `json:"transactTime"`
	Time         int64 `json:"time"`
	UpdateTime   int64 `json:"updateTime"`

	Price       string `json:"price"`
	OrigQty     string `json:"origQty"`
	ExecutedQty string `json:"executedQty"`

	CumulativeQuoteQty string `json:"cummulativeQuoteQty"`

	Status string `json:"status"`
	Type   string `json:"type"`
	Side   string `json:"side"`
}

type CancelOrderResponse struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"origClientOrderId"`
	Status        string `json:"status"`
}

// ParseFloat converts the venue's decimal strings. Empty strings
// decode to zero because optional fields are omitted as "".
func ParseFloat(s string) (float64, error) {
	if len(s) == 0 {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse decimal string %q: %w", s, err)
	}
	return v, nil
}
