// Copyright (c) 2023 BVK Chaitanya

package internal

import (
	"encoding/json"
	"testing"
)

func TestSignPayload(t *testing.T) {
	// Example key, payload and signature published in the venue's api
	// documentation.
	secret := "NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j"
	payload := "symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559"
	want := "c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71"

	if got := signPayload(secret, payload); got != want {
		t.Fatalf("signature mismatch: got %s, want %s", got, want)
	}
}

func TestKlineUnmarshal(t *testing.T) {
	data := `[
	  1499040000000,
	  "0.01634790",
	  "0.80000000",
	  "0.01575800",
	  "0.01577100",
	  "148976.11427815",
	  1499644799999,
	  "2434.19055334",
	  308,
	  "1756.87402397",
	  "28.46694368",
	  "17928899.62484339"
	]`
	k := new(Kline)
	if err := json.Unmarshal([]byte(data), k); err != nil {
		t.Fatal(err)
	}
	if k.OpenTime != 1499040000000 || k.CloseTime != 1499644799999 {
		t.Fatalf("unexpected kline times: %d %d", k.OpenTime, k.CloseTime)
	}
	if k.Open != "0.01634790" || k.High != "0.80000000" || k.Low != "0.01575800" || k.Close != "0.01577100" {
		t.Fatalf("unexpected kline prices: %+v", k)
	}
	if k.BaseVolume != "148976.11427815" || k.QuoteVolume != "2434.19055334" {
		t.Fatalf("unexpected kline volumes: %+v", k)
	}
	if k.NumTrades != 308 {
		t.Fatalf("unexpected kline trade count: %d", k.NumTrades)
	}

	if err := json.Unmarshal([]byte(`[1, "2", "3"]`), new(Kline)); err == nil {
		t.Fatalf("short kline array must fail to decode")
	}
}

func TestParseFloat(t *testing.T) {
	if v, err := ParseFloat("0.00010000"); err != nil || v != 0.0001 {
		t.Fatalf("got %v, %v", v, err)
	}
	if v, err := ParseFloat(""); err != nil || v != 0 {
		t.Fatalf("empty string: got %v, %v", v, err)
	}
	if _, err := ParseFloat("abc"); err == nil {
		t.Fatalf("junk string must fail to parse")
	}
}
