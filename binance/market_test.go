// Copyright (c) 2023 BVK Chaitanya

package binance

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bvk/accumbot/binance/internal"
	"github.com/bvk/accumbot/exchange"
	"github.com/gorilla/websocket"
)

func TestWatchTicker(t *testing.T) {
	upgrader := websocket.Upgrader{}
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/btcusdt@bookTicker" {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		msg := `{"u":1,"s":"BTCUSDT","b":"100.5","B":"1","a":"101.5","A":"2"}`
		conn.WriteMessage(websocket.TextMessage, []byte(msg))
	}))
	defer s.Close()

	client, err := internal.New("", "", &internal.Options{
		WebsocketScheme:        "ws",
		WebsocketHostname:      strings.TrimPrefix(s.URL, "http://"),
		WebsocketRetryInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	a := NewAccount(client, nil)
	m := newMarket(a, exchange.Symbol{Base: "BTC", Quote: "USDT"})

	ch, stop, err := m.WatchTicker()
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	select {
	case tkr := <-ch:
		if tkr.Symbol != m.Symbol() {
			t.Fatalf("unexpected ticker symbol: %+v", tkr)
		}
		if tkr.BidPrice != 100.5 || tkr.AskPrice != 101.5 || tkr.Price != 101 {
			t.Fatalf("unexpected ticker prices: %+v", tkr)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no ticker received from the websocket stream")
	}
}
