// Package httpc builds HTTP clients with timeouts set. Never use
// http.DefaultClient for model downloads or sidecar calls.
package httpc

import (
	"net"
	"net/http"
	"time"
)

// Transport timeouts shared by every client.
const (
	ConnectTimeout  = 10 * time.Second
	KeepAlive       = 30 * time.Second
	IdleConnTimeout = 90 * time.Second
	TLSTimeout      = 10 * time.Second
)

// New returns a client with the given overall request timeout.
// A zero timeout leaves only the transport timeouts, which suits
// large downloads bounded by a context instead.
func New(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: newTransport(),
	}
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   ConnectTimeout,
			KeepAlive: KeepAlive,
		}).DialContext,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       IdleConnTimeout,
		TLSHandshakeTimeout:   TLSTimeout,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}
