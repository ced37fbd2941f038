package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter throttles outbound requests
type Limiter interface {
	// Allow reports whether a request may proceed right now, consuming a slot if so
	Allow() bool
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
	// Reset restores the limiter to its initial state
	Reset()
}

// TokenBucket refills one token every period/capacity, up to capacity tokens.
type TokenBucket struct {
	capacity   float64
	tokens     float64
	perToken   time.Duration
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewTokenBucket allows burst requests at once and rate requests per period on average
func NewTokenBucket(burst, rate int, period time.Duration) *TokenBucket {
	if burst <= 0 {
		burst = 1
	}
	if rate <= 0 {
		rate = 1
	}
	return &TokenBucket{
		capacity:   float64(burst),
		tokens:     float64(burst),
		perToken:   period / time.Duration(rate),
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// PerMinute is a shorthand for the requests-per-minute configuration
func PerMinute(requests, burst int) *TokenBucket {
	return NewTokenBucket(burst, requests, time.Minute)
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}

		tb.mu.Lock()
		delay := time.Duration((1 - tb.tokens) * float64(tb.perToken))
		tb.mu.Unlock()
		if delay < 10*time.Millisecond {
			delay = 10 * time.Millisecond
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = tb.now()
}

func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 || tb.perToken <= 0 {
		return
	}
	tb.tokens += float64(elapsed) / float64(tb.perToken)
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

// Unlimited never blocks. Used when throttling is disabled.
type Unlimited struct{}

func (Unlimited) Allow() bool                    { return true }
func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (Unlimited) Reset()                         {}
