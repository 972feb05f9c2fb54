// Copyright (c) 2023 BVK Chaitanya

package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bvk/accumbot/ctxutil"
	"github.com/bvkgo/topic"
	"github.com/gorilla/websocket"
)

// WatchBookTicker subscribes to the symbol's best bid/ask stream. The
// first watcher of a symbol opens the stream; later watchers share it.
// Subscribers that fall behind only miss intermediate updates. The
// returned stop function releases the subscription; the stream itself
// lives until Close.
func (c *Client) WatchBookTicker(symbol string) (<-chan *BookTicker, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.bookTickerTopicMap[symbol]
	if !ok {
		t = topic.New[*BookTicker]()
		c.bookTickerTopicMap[symbol] = t
		c.cg.Go(func(ctx context.Context) {
			c.goStreamBookTicker(ctx, symbol, t)
		})
	}

	sub, ch, err := t.Subscribe(1, true /* includeRecent */)
	if err != nil {
		return nil, nil, fmt.Errorf("could not subscribe to book ticker stream: %w", err)
	}
	return ch, sub.Unsubscribe, nil
}

func (c *Client) goStreamBookTicker(ctx context.Context, symbol string, t *topic.Topic[*BookTicker]) {
	addr := fmt.Sprintf("%s://%s/ws/%s@bookTicker", c.opts.WebsocketScheme, c.opts.WebsocketHostname, strings.ToLower(symbol))

	for ctx.Err() == nil {
		if err := c.streamBookTicker(ctx, addr, symbol, t); err != nil && ctx.Err() == nil {
			slog.Warn("book ticker stream has failed (will retry)", "symbol", symbol, "err", err)
			ctxutil.Sleep(ctx, c.opts.WebsocketRetryInterval)
		}
	}
}

func (c *Client) streamBookTicker(ctx context.Context, addr, symbol string, t *topic.Topic[*BookTicker]) error {
	var dialer websocket.Dialer
	conn, _, err := dialer.DialContext(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("could not dial to websocket feed: %w", err)
	}
	defer conn.Close()

	for ctx.Err() == nil {
		msg, err := readMessage(ctx, conn)
		if err != nil {
			return err
		}

		sv := new(streamBookTicker)
		if err := json.Unmarshal(msg, sv); err != nil {
			slog.Error("could not unmarshal websocket message", "symbol", symbol, "err", err)
			return err
		}
		t.Send(&BookTicker{
			UpdateID: sv.UpdateID,
			Symbol:   sv.Symbol,
			BidPrice: sv.BidPrice,
			BidQty:   sv.BidQty,
			AskPrice: sv.AskPrice,
			AskQty:   sv.AskQty,
		})
	}
	return context.Cause(ctx)
}

func readMessage(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	stopc := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
		close(stopc)
	})

	_, msg, err := conn.ReadMessage()
	if !stop() {
		// The AfterFunc was started. Wait for it to complete, and reset
		// the Conn's deadline.
		<-stopc
		conn.SetReadDeadline(time.Time{})
		return nil, context.Cause(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read websocket message: %w", err)
	}
	return msg, nil
}
