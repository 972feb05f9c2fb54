// Copyright (c) 2023 BVK Chaitanya

package internal

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// bookTickerServer serves one book ticker update per connection and
// then drops it, so every received update after the first proves a
// reconnect.
func bookTickerServer(t *testing.T) (*httptest.Server, func() int) {
	t.Helper()

	var mu sync.Mutex
	conns := 0
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

		mu.Lock()
		conns++
		id := conns
		mu.Unlock()

		msg := fmt.Sprintf(`{"u":%d,"s":"BTCUSDT","b":"100.5","B":"1","a":"101.5","A":"2"}`, id)
		conn.WriteMessage(websocket.TextMessage, []byte(msg))
	}))
	return s, func() int {
		mu.Lock()
		defer mu.Unlock()
		return conns
	}
}

func TestWatchBookTicker(t *testing.T) {
	s, numConns := bookTickerServer(t)
	defer s.Close()

	c, err := New("", "", &Options{
		WebsocketScheme:        "ws",
		WebsocketHostname:      strings.TrimPrefix(s.URL, "http://"),
		WebsocketRetryInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ch, stop, err := c.WatchBookTicker("BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	recv := func() *BookTicker {
		t.Helper()
		select {
		case bt, ok := <-ch:
			if !ok {
				t.Fatal("book ticker stream channel closed")
			}
			return bt
		case <-time.After(5 * time.Second):
			t.Fatal("no book ticker update received")
		}
		return nil
	}

	first := recv()
	if first.Symbol != "BTCUSDT" || first.BidPrice != "100.5" || first.AskPrice != "101.5" {
		t.Fatalf("unexpected book ticker: %+v", first)
	}

	// The server dropped the connection after the first update; a
	// second update can only come from a reconnected stream.
	second := recv()
	if second.UpdateID <= first.UpdateID {
		t.Fatalf("want an update from a later connection than %d, got %+v", first.UpdateID, second)
	}
	if n := numConns(); n < 2 {
		t.Fatalf("stream must reconnect after a dropped connection, saw %d connections", n)
	}
}

func TestWatchBookTickerSharedStream(t *testing.T) {
	s, _ := bookTickerServer(t)
	defer s.Close()

	c, err := New("", "", &Options{
		WebsocketScheme:        "ws",
		WebsocketHostname:      strings.TrimPrefix(s.URL, "http://"),
		WebsocketRetryInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ch1, stop1, err := c.WatchBookTicker("BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	defer stop1()
	ch2, stop2, err := c.WatchBookTicker("BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	defer stop2()

	for _, ch := range []<-chan *BookTicker{ch1, ch2} {
		select {
		case bt := <-ch:
			if bt.Symbol != "BTCUSDT" {
				t.Fatalf("unexpected book ticker: %+v", bt)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("subscriber did not receive an update")
		}
	}
}
