// Copyright (c) 2023 BVK Chaitanya

package internal

import (
	"net/url"
	"time"
)

var RestURL = &url.URL{
	Scheme: "https",
	Host:   "api.binance.com",
	Path:   "/api/v3",
}

// Options configure the REST and websocket behavior of a client. Zero
// values pick the defaults.
type Options struct {
	HttpClientTimeout      time.Duration
	WebsocketScheme        string
	WebsocketHostname      string
	WebsocketRetryInterval time.Duration

	// RecvWindow is the validity window the venue allows between the
	// signed timestamp and request receipt.
	RecvWindow time.Duration
}

func (v *Options) setDefaults() {
	if v.HttpClientTimeout == 0 {
		v.HttpClientTimeout = 30 * time.Second
	}
	if len(v.WebsocketScheme) == 0 {
		v.WebsocketScheme = "wss"
	}
	if len(v.WebsocketHostname) == 0 {
		v.WebsocketHostname = "stream.binance.com:9443"
	}
	if v.WebsocketRetryInterval == 0 {
		v.WebsocketRetryInterval = time.Second
	}
	if v.RecvWindow == 0 {
		v.RecvWindow = 5 * time.Second
	}
}
