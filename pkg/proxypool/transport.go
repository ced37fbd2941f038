package proxypool

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
	"igtail/pkg/config"
)

// Transport builds an http.Transport that routes through p with the per-call
// budgets from cfg. socks5 proxies dial through golang.org/x/net/proxy.
func Transport(p *Proxy, cfg config.HTTPConfig) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	t := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		ExpectContinueTimeout: time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		ForceAttemptHTTP2:     true,
	}
	if cfg.WriteTimeout > 0 {
		t.DialContext = writeDeadlineDialer(t.DialContext, cfg.WriteTimeout)
	}

	if p == nil || p.URL == nil {
		return t, nil
	}

	switch p.URL.Scheme {
	case "http", "https":
		t.Proxy = http.ProxyURL(p.URL)
	case "socks5", "socks5h":
		d, err := proxy.FromURL(p.URL, dialer)
		if err != nil {
			return nil, fmt.Errorf("socks dialer for %s: %w", p.Address, err)
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks dialer for %s does not support contexts", p.Address)
		}
		t.DialContext = cd.DialContext
		if cfg.WriteTimeout > 0 {
			t.DialContext = writeDeadlineDialer(t.DialContext, cfg.WriteTimeout)
		}
		// http2 is only negotiated for direct TLS dials
		t.ForceAttemptHTTP2 = false
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", p.URL.Scheme)
	}
	return t, nil
}

// Client wraps Transport in an http.Client. The overall budget covers
// connect, write and read plus the wait for a pooled connection.
func Client(p *Proxy, cfg config.HTTPConfig) (*http.Client, error) {
	t, err := Transport(p, cfg)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport: t,
		Timeout:   cfg.ConnectTimeout + cfg.WriteTimeout + cfg.ReadTimeout + cfg.PoolTimeout,
	}, nil
}

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

func writeDeadlineDialer(next dialFunc, timeout time.Duration) dialFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return &writeDeadlineConn{Conn: conn, timeout: timeout}, nil
	}
}

// writeDeadlineConn bounds every Write by timeout.
type writeDeadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *writeDeadlineConn) Write(b []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}
