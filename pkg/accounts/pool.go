package accounts

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	errs "igtail/pkg/errors"
	"igtail/pkg/logger"
)

// Pool rotates working accounts and writes every change through to a Store.
type Pool struct {
	mu       sync.Mutex
	store    Store
	accounts []*Account
	cursor   int

	now    func() time.Time
	rand   *rand.Rand
	logger logger.Logger
}

// Option customises a Pool.
type Option func(*Pool)

func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

func WithRand(r *rand.Rand) Option {
	return func(p *Pool) { p.rand = r }
}

func WithLogger(l logger.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// NewPool returns an empty pool backed by store. Call LoadAll to populate it.
func NewPool(store Store, opts ...Option) *Pool {
	p := &Pool{
		store:  store,
		now:    time.Now,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger.WithComponent("accounts"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LoadAll replaces the in-memory accounts with the store's contents.
func (p *Pool) LoadAll(ctx context.Context) error {
	loaded, err := p.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts = loaded
	p.cursor = 0
	p.logger.InfoWithFields("Accounts loaded", map[string]interface{}{
		"total":   len(loaded),
		"working": len(p.workingLocked()),
	})
	return nil
}

// PersistAll writes every account to the store.
func (p *Pool) PersistAll(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.persistLocked(ctx)
}

func (p *Pool) persistLocked(ctx context.Context) error {
	if err := p.store.Save(ctx, p.accounts); err != nil {
		return fmt.Errorf("persist accounts: %w", err)
	}
	return nil
}

func (p *Pool) workingLocked() []*Account {
	var working []*Account
	for _, acc := range p.accounts {
		if acc.Status == StatusWorking {
			working = append(working, acc)
		}
	}
	return working
}

// Next returns working accounts in round-robin order, or nil when none is
// working.
func (p *Pool) Next() *Account {
	p.mu.Lock()
	defer p.mu.Unlock()

	working := p.workingLocked()
	if len(working) == 0 {
		return nil
	}
	acc := working[p.cursor%len(working)]
	p.cursor++
	return acc
}

// WaitForHealthy polls every checkInterval until a working account exists and
// returns a random one. It fails with errs.ErrTimeout once timeout elapses;
// timeout <= 0 waits until ctx is done.
func (p *Pool) WaitForHealthy(ctx context.Context, checkInterval, timeout time.Duration) (*Account, error) {
	if checkInterval <= 0 {
		checkInterval = 5 * time.Second
	}
	start := time.Now()

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		if acc := p.randomWorking(); acc != nil {
			return acc, nil
		}
		if timeout > 0 && time.Since(start) >= timeout {
			return nil, fmt.Errorf("no working account within %s: %w", timeout, errs.ErrTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Pool) randomWorking() *Account {
	p.mu.Lock()
	defer p.mu.Unlock()

	working := p.workingLocked()
	if len(working) == 0 {
		return nil
	}
	return working[p.rand.Intn(len(working))]
}

// SetStatus changes acc's status and persists the pool before returning.
func (p *Pool) SetStatus(ctx context.Context, acc *Account, status Status) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prev := acc.Status
	acc.Status = status
	now := p.now()
	acc.LastChecked = &now

	if status != StatusWorking {
		if n := len(p.workingLocked()); n > 0 {
			p.cursor %= n
		} else {
			p.cursor = 0
		}
	}
	if prev != status {
		logger.LogAccountStatus(p.logger, acc.Login, string(prev), string(status))
	}
	return p.persistLocked(ctx)
}

// SetSessionAndToken stores the session cookies from a login.
func (p *Pool) SetSessionAndToken(ctx context.Context, acc *Account, sessionID, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc.SessionID = sessionID
	acc.Token = token
	return p.persistLocked(ctx)
}

// ReportFailure counts a failed use of acc without changing its status.
func (p *Pool) ReportFailure(ctx context.Context, acc *Account) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc.FailCount++
	now := p.now()
	acc.LastChecked = &now
	return p.persistLocked(ctx)
}

// ReportSuccess clears acc's failure count. Nothing is written when the count
// is already zero.
func (p *Pool) ReportSuccess(ctx context.Context, acc *Account) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if acc.FailCount == 0 {
		return nil
	}
	acc.FailCount = 0
	now := p.now()
	acc.LastChecked = &now
	return p.persistLocked(ctx)
}

// Add appends acc, replacing an existing account with the same login, and
// persists.
func (p *Pool) Add(ctx context.Context, acc Account) error {
	if acc.Login == "" {
		return fmt.Errorf("account login is required")
	}
	if acc.Status == "" {
		acc.Status = StatusWorking
	}
	if _, err := ParseStatus(string(acc.Status)); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for i, existing := range p.accounts {
		if existing.Login == acc.Login {
			if acc.ID == "" {
				acc.ID = existing.ID
			}
			p.accounts[i] = &acc
			return p.persistLocked(ctx)
		}
	}
	if acc.ID == "" {
		acc.ID = fmt.Sprintf("%d", len(p.accounts)+1)
	}
	p.accounts = append(p.accounts, &acc)
	return p.persistLocked(ctx)
}

// Find returns the account with the given login.
func (p *Pool) Find(login string) (*Account, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, acc := range p.accounts {
		if acc.Login == login {
			return acc, true
		}
	}
	return nil, false
}

// View returns a copy of acc taken under the pool lock.
func (p *Pool) View(acc *Account) Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	return acc.clone()
}

// List returns copies of all accounts in store order.
func (p *Pool) List() []Account {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Account, 0, len(p.accounts))
	for _, acc := range p.accounts {
		out = append(out, acc.clone())
	}
	return out
}

// Stats counts accounts per status.
func (p *Pool) Stats() map[Status]int {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := make(map[Status]int)
	for _, acc := range p.accounts {
		stats[acc.Status]++
	}
	return stats
}
