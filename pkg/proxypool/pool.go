package proxypool

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"igtail/pkg/config"
	"igtail/pkg/logger"
)

// Direct is a pool entry that routes requests without a proxy.
const Direct = "direct"

// Proxy is an egress address handed out by a Pool. Its health fields are
// owned by the pool and only read through Snapshot.
type Proxy struct {
	Address string
	URL     *url.URL

	failCount     int
	cooldownUntil time.Time
	lastUsedAt    time.Time
	evicted       bool
}

func (p *Proxy) String() string {
	return p.Address
}

// ProxyState is a point-in-time copy of one proxy's health.
type ProxyState struct {
	Address       string    `json:"address"`
	FailCount     int       `json:"fail_count"`
	CooldownUntil time.Time `json:"cooldown_until"`
	LastUsedAt    time.Time `json:"last_used_at"`
}

// Pool hands out the least recently used proxy that is not cooling down.
type Pool struct {
	mu      sync.Mutex
	proxies []*Proxy
	changed chan struct{}

	maxFailures  int
	cooldownStep time.Duration
	maxCooldown  time.Duration
	pollInterval time.Duration

	now    func() time.Time
	logger logger.Logger
}

// Option customises a Pool.
type Option func(*Pool)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

func WithLogger(l logger.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// New builds a pool from cfg.Addresses. Addresses without a scheme are
// treated as http proxies.
func New(cfg config.ProxyConfig, opts ...Option) (*Pool, error) {
	p := &Pool{
		changed:      make(chan struct{}),
		maxFailures:  cfg.MaxFailures,
		cooldownStep: cfg.CooldownStep,
		maxCooldown:  cfg.MaxCooldown,
		pollInterval: cfg.PollInterval,
		now:          time.Now,
		logger:       logger.WithComponent("proxypool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxFailures <= 0 {
		p.maxFailures = 5
	}
	if p.cooldownStep <= 0 {
		p.cooldownStep = 60 * time.Second
	}
	if p.maxCooldown <= 0 {
		p.maxCooldown = 300 * time.Second
	}
	if p.pollInterval <= 0 {
		p.pollInterval = 5 * time.Second
	}

	seen := make(map[string]bool)
	for _, addr := range cfg.Addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true

		proxy, err := parseProxy(addr)
		if err != nil {
			return nil, err
		}
		p.proxies = append(p.proxies, proxy)
	}
	return p, nil
}

func parseProxy(addr string) (*Proxy, error) {
	if addr == Direct {
		return &Proxy{Address: addr}, nil
	}
	raw := addr
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy address %q: %w", addr, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q in %q", u.Scheme, addr)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid proxy address %q: missing host", addr)
	}
	return &Proxy{Address: addr, URL: u}, nil
}

// Size returns the number of proxies that have not been evicted.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// Acquire returns the available proxy with the oldest lastUsedAt, ties going
// to pool order. With wait set it blocks until one becomes available, timeout
// elapses or ctx is done; timeout <= 0 waits without a deadline. The boolean
// is false when nothing could be acquired.
func (p *Pool) Acquire(ctx context.Context, wait bool, timeout time.Duration) (*Proxy, bool) {
	if proxy := p.tryAcquire(); proxy != nil {
		return proxy, true
	}
	if !wait {
		return nil, false
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		p.mu.Lock()
		if len(p.proxies) == 0 {
			p.mu.Unlock()
			return nil, false
		}
		changed := p.changed
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-deadline:
			return nil, false
		case <-changed:
		case <-ticker.C:
		}

		if proxy := p.tryAcquire(); proxy != nil {
			return proxy, true
		}
	}
}

func (p *Pool) tryAcquire() *Proxy {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	var best *Proxy
	for _, proxy := range p.proxies {
		if proxy.cooldownUntil.After(now) {
			continue
		}
		if best == nil || proxy.lastUsedAt.Before(best.lastUsedAt) {
			best = proxy
		}
	}
	if best != nil {
		best.lastUsedAt = now
	}
	return best
}

// ReportFailure puts proxy into a cooldown that grows with its failure count
// and evicts it once the count reaches the failure threshold.
func (p *Pool) ReportFailure(proxy *Proxy) {
	if proxy == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if proxy.evicted {
		return
	}

	proxy.failCount++
	cooldown := p.cooldownStep * time.Duration(proxy.failCount)
	if cooldown > p.maxCooldown {
		cooldown = p.maxCooldown
	}
	proxy.cooldownUntil = p.now().Add(cooldown)

	if proxy.failCount >= p.maxFailures {
		p.evictLocked(proxy)
		logger.LogProxyEvent(p.logger, proxy.Address, "evicted", proxy.failCount, time.Time{})
	} else {
		logger.LogProxyEvent(p.logger, proxy.Address, "cooldown", proxy.failCount, proxy.cooldownUntil)
	}
	p.broadcastLocked()
}

// ReportSuccess clears proxy's failure count and cooldown. It is a no-op for
// a proxy that is already healthy.
func (p *Pool) ReportSuccess(proxy *Proxy) {
	if proxy == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if proxy.evicted || (proxy.failCount == 0 && proxy.cooldownUntil.IsZero()) {
		return
	}

	proxy.failCount = 0
	proxy.cooldownUntil = time.Time{}
	logger.LogProxyEvent(p.logger, proxy.Address, "recovered", 0, time.Time{})
	p.broadcastLocked()
}

// Snapshot returns the state of every proxy still in the pool, in pool order.
func (p *Pool) Snapshot() []ProxyState {
	p.mu.Lock()
	defer p.mu.Unlock()

	states := make([]ProxyState, 0, len(p.proxies))
	for _, proxy := range p.proxies {
		states = append(states, ProxyState{
			Address:       proxy.Address,
			FailCount:     proxy.failCount,
			CooldownUntil: proxy.cooldownUntil,
			LastUsedAt:    proxy.lastUsedAt,
		})
	}
	return states
}

func (p *Pool) evictLocked(proxy *Proxy) {
	proxy.evicted = true
	for i, candidate := range p.proxies {
		if candidate == proxy {
			p.proxies = append(p.proxies[:i], p.proxies[i+1:]...)
			return
		}
	}
}

// broadcastLocked wakes every waiter in Acquire.
func (p *Pool) broadcastLocked() {
	close(p.changed)
	p.changed = make(chan struct{})
}
