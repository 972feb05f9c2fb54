// Copyright (c) 2023 BVK Chaitanya

// Package internal implements the venue's spot REST api and the
// book-ticker websocket stream. Types in this package mirror the wire
// formats; translation into the exchange model happens in the parent
// package.
package internal

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/bvk/accumbot/ctxutil"
	"github.com/bvkgo/topic"
	"golang.org/x/time/rate"
)

type Client struct {
	cg ctxutil.CloseGroup

	opts Options

	client http.Client

	key, secret string

	limiter *rate.Limiter

	mu sync.Mutex

	// bookTickerTopicMap fans each watched symbol's stream out to its
	// subscribers. Entries live until Close.
	bookTickerTopicMap map[string]*topic.Topic[*BookTicker]
}

// New returns a new client instance. Key and secret may be empty for
// public-data-only use.
func New(key, secret string, opts *Options) (*Client, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()

	c := &Client{
		opts:   *opts,
		key:    key,
		secret: secret,
		client: http.Client{
			Timeout: opts.HttpClientTimeout,
		},
		limiter:            rate.NewLimiter(10, 1),
		bookTickerTopicMap: make(map[string]*topic.Topic[*BookTicker]),
	}
	return c, nil
}

// Close releases resources and destroys the client instance.
func (c *Client) Close() error {
	c.cg.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.bookTickerTopicMap {
		t.Close()
	}
	c.bookTickerTopicMap = make(map[string]*topic.Topic[*BookTicker])
	return nil
}

func (c *Client) GetExchangeInfo(ctx context.Context) (*ExchangeInfoResponse, error) {
	addrURL := &url.URL{
		Scheme: RestURL.Scheme,
		Host:   RestURL.Host,
		Path:   path.Join(RestURL.Path, "/exchangeInfo"),
	}
	resp := new(ExchangeInfoResponse)
	if err := httpGetJSON(ctx, c, addrURL, resp); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not get exchange info", "url", addrURL, "err", err)
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*Kline, error) {
	values := make(url.Values)
	values.Set("symbol", symbol)
	values.Set("interval", interval)
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}

	addrURL := &url.URL{
		Scheme:   RestURL.Scheme,
		Host:     RestURL.Host,
		Path:     path.Join(RestURL.Path, "/klines"),
		RawQuery: values.Encode(),
	}
	var resp []*Kline
	if err := httpGetJSON(ctx, c, addrURL, &resp); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not get klines", "symbol", symbol, "interval", interval, "url", addrURL, "err", err)
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetDepth(ctx context.Context, symbol string, limit int) (*DepthResponse, error) {
	values := make(url.Values)
	values.Set("symbol", symbol)
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}

	addrURL := &url.URL{
		Scheme:   RestURL.Scheme,
		Host:     RestURL.Host,
		Path:     path.Join(RestURL.Path, "/depth"),
		RawQuery: values.Encode(),
	}
	resp := new(DepthResponse)
	if err := httpGetJSON(ctx, c, addrURL, resp); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not get order book depth", "symbol", symbol, "url", addrURL, "err", err)
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetTickerPrice(ctx context.Context, symbol string) (*TickerPrice, error) {
	values := make(url.Values)
	values.Set("symbol", symbol)

	addrURL := &url.URL{
		Scheme:   RestURL.Scheme,
		Host:     RestURL.Host,
		Path:     path.Join(RestURL.Path, "/ticker/price"),
		RawQuery: values.Encode(),
	}
	resp := new(TickerPrice)
	if err := httpGetJSON(ctx, c, addrURL, resp); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not get ticker price", "symbol", symbol, "url", addrURL, "err", err)
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetBookTickers(ctx context.Context) ([]*BookTicker, error) {
	addrURL := &url.URL{
		Scheme: RestURL.Scheme,
		Host:   RestURL.Host,
		Path:   path.Join(RestURL.Path, "/ticker/bookTicker"),
	}
	var resp []*BookTicker
	if err := httpGetJSON(ctx, c, addrURL, &resp); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not get book tickers", "url", addrURL, "err", err)
		}
		return nil, err
	}
	return resp, nil
}

// GetAccount retrieves the spot account balances.
func (c *Client) GetAccount(ctx context.Context) (*AccountResponse, error) {
	addrURL := &url.URL{
		Scheme: RestURL.Scheme,
		Host:   RestURL.Host,
		Path:   path.Join(RestURL.Path, "/account"),
	}
	resp := new(AccountResponse)
	if err := privateJSON(ctx, c, http.MethodGet, addrURL, nil, resp); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not get account information", "url", addrURL, "err", err)
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	values := make(url.Values)
	values.Set("symbol", req.Symbol)
	values.Set("side", req.Side)
	values.Set("type", req.Type)
	values.Set("quantity", req.Quantity)
	values.Set("newOrderRespType", "RESULT")
	if len(req.Price) != 0 {
		values.Set("price", req.Price)
	}
	if len(req.TimeInForce) != 0 {
		values.Set("timeInForce", req.TimeInForce)
	}
	if len(req.NewClientOrderID) != 0 {
		values.Set("newClientOrderId", req.NewClientOrderID)
	}

	addrURL := &url.URL{
		Scheme: RestURL.Scheme,
		Host:   RestURL.Host,
		Path:   path.Join(RestURL.Path, "/order"),
	}
	resp := new(OrderResponse)
	if err := privateJSON(ctx, c, http.MethodPost, addrURL, values, resp); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not create order", "symbol", req.Symbol, "side", req.Side, "type", req.Type, "quantity", req.Quantity, "price", req.Price, "url", addrURL, "err", err)
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) (*CancelOrderResponse, error) {
	values := make(url.Values)
	values.Set("symbol", symbol)
	values.Set("orderId", strconv.FormatInt(orderID, 10))

	addrURL := &url.URL{
		Scheme: RestURL.Scheme,
		Host:   RestURL.Host,
		Path:   path.Join(RestURL.Path, "/order"),
	}
	resp := new(CancelOrderResponse)
	if err := privateJSON(ctx, c, http.MethodDelete, addrURL, values, resp); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not cancel order", "orderID", orderID, "symbol", symbol, "url", addrURL, "err", err)
		}
		return nil, err
	}
	return resp, nil
}

// GetOpenOrders lists live orders. An empty symbol lists all symbols,
// which the venue weights much higher.
func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]*OrderResponse, error) {
	values := make(url.Values)
	if len(symbol) != 0 {
		values.Set("symbol", symbol)
	}

	addrURL := &url.URL{
		Scheme: RestURL.Scheme,
		Host:   RestURL.Host,
		Path:   path.Join(RestURL.Path, "/openOrders"),
	}
	var resp []*OrderResponse
	if err := privateJSON(ctx, c, http.MethodGet, addrURL, values, &resp); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not get open orders", "symbol", symbol, "url", addrURL, "err", err)
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetAllOrders(ctx context.Context, symbol string) ([]*OrderResponse, error) {
	values := make(url.Values)
	values.Set("symbol", symbol)

	addrURL := &url.URL{
		Scheme: RestURL.Scheme,
		Host:   RestURL.Host,
		Path:   path.Join(RestURL.Path, "/allOrders"),
	}
	var resp []*OrderResponse
	if err := privateJSON(ctx, c, http.MethodGet, addrURL, values, &resp); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not get order history", "symbol", symbol, "url", addrURL, "err", err)
		}
		return nil, err
	}
	return resp, nil
}

// signPayload returns the hex HMAC-SHA256 of the payload under the
// given secret.
func signPayload(secret, payload string) string {
	hash := hmac.New(sha256.New, []byte(secret))
	io.WriteString(hash, payload)
	return fmt.Sprintf("%x", hash.Sum(nil))
}

// signQuery stamps and signs request parameters. The signature covers
// the exact encoded payload sent on the wire and is appended last.
func (c *Client) signQuery(values url.Values) string {
	if values == nil {
		values = make(url.Values)
	}
	values.Set("recvWindow", strconv.FormatInt(c.opts.RecvWindow.Milliseconds(), 10))
	values.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))

	payload := values.Encode()
	return payload + "&signature=" + signPayload(c.secret, payload)
}

func (c *Client) checkResponse(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	serr := &StatusError{StatusCode: resp.StatusCode}
	if body, err := io.ReadAll(resp.Body); err == nil {
		var ev ErrorResponse
		if err := json.Unmarshal(body, &ev); err == nil {
			serr.Code = ev.Code
			serr.Message = ev.Message
		}
	}
	return serr
}

func httpGetJSON[PT *T, T any](ctx context.Context, c *Client, addrURL *url.URL, responsePtr PT) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addrURL.String(), nil)
	if err != nil {
		slog.Error("could not create http get request with context", "url", addrURL, "err", err)
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not perform http get request", "url", addrURL, "err", err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot {
		timeout := time.Second
		if x := resp.Header.Get("Retry-After"); len(x) != 0 {
			if v, err := strconv.Atoi(x); err == nil {
				timeout = time.Duration(v) * time.Second
			}
		}
		slog.Warn("venue asked us to back off", "status-code", resp.StatusCode, "timeout", timeout)
		ctxutil.Sleep(ctx, timeout)
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		return httpGetJSON(ctx, c, addrURL, responsePtr)
	}

	if err := c.checkResponse(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(responsePtr); err != nil {
		slog.Error("could not decode response to json", "url", addrURL, "err", err)
		return err
	}
	return nil
}

// privateJSON performs a signed request. Parameters travel in the
// query string for every method, which is how the venue signs them.
func privateJSON[PT *T, T any](ctx context.Context, c *Client, method string, addrURL *url.URL, values url.Values, responsePtr PT) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	signedURL := &url.URL{
		Scheme:   addrURL.Scheme,
		Host:     addrURL.Host,
		Path:     addrURL.Path,
		RawQuery: c.signQuery(values),
	}
	req, err := http.NewRequestWithContext(ctx, method, signedURL.String(), nil)
	if err != nil {
		slog.Error("could not create http request object with context", "method", method, "url", addrURL, "err", err)
		return err
	}
	req.Header.Add("X-MBX-APIKEY", c.key)

	resp, err := c.client.Do(req)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not perform signed http request", "method", method, "url", addrURL, "err", err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot {
		timeout := time.Second
		if x := resp.Header.Get("Retry-After"); len(x) != 0 {
			if v, err := strconv.Atoi(x); err == nil {
				timeout = time.Duration(v) * time.Second
			}
		}
		slog.Warn("venue asked us to back off", "status-code", resp.StatusCode, "timeout", timeout)
		ctxutil.Sleep(ctx, timeout)
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		return privateJSON(ctx, c, method, addrURL, values, responsePtr)
	}

	if err := c.checkResponse(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(responsePtr); err != nil {
		slog.Error("could not decode response to json", "method", method, "url", addrURL, "err", err)
		return err
	}
	return nil
}
