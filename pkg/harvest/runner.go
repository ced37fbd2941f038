package harvest

import (
	"context"
	"errors"
	"fmt"

	"igtail/pkg/accounts"
	"igtail/pkg/config"
	errs "igtail/pkg/errors"
	"igtail/pkg/logger"
	"igtail/pkg/models"
	"igtail/pkg/retry"
)

// Collector is the single-attempt operation a Runner retries.
type Collector interface {
	Collect(ctx context.Context, username string, acc *accounts.Account) (*models.CollectedData, error)
}

// Runner owns the failover policy around a Collector: a proxy break is
// retried after a backoff with a fresh proxy, an account block moves on to
// the next working account. Exhausted proxies and the lack of any working
// account end the run.
type Runner struct {
	collector Collector
	accounts  *accounts.Pool
	retry     config.RetryConfig
	waitCfg   config.AccountsConfig
	sleep     retry.SleepFunc
	logger    logger.Logger
}

// NewRunner wraps collector. sleep may be nil.
func NewRunner(collector Collector, accs *accounts.Pool, cfg *config.Config, sleep retry.SleepFunc, log logger.Logger) *Runner {
	if log == nil {
		log = logger.WithComponent("runner")
	}
	if sleep == nil {
		sleep = retry.Wait
	}
	return &Runner{
		collector: collector,
		accounts:  accs,
		retry:     cfg.Retry,
		waitCfg:   cfg.Accounts,
		sleep:     sleep,
		logger:    log,
	}
}

// Run collects username, rotating proxies and accounts as failures demand.
func (r *Runner) Run(ctx context.Context, username string) (*models.CollectedData, error) {
	backoff := retry.DefaultExponentialBackoff()
	if r.retry.BaseDelay > 0 {
		backoff.BaseDelay = r.retry.BaseDelay
	}
	if r.retry.MaxDelay > 0 {
		backoff.MaxDelay = r.retry.MaxDelay
	}

	return retry.DoWithResult(func(attempt int) (*models.CollectedData, error) {
		acc, err := r.account(ctx)
		if err != nil {
			return nil, err
		}
		return r.collector.Collect(ctx, username, acc)
	}, &retry.Config{
		MaxAttempts: r.retry.MaxAttempts,
		Backoff:     backoff,
		RetryIf:     shouldRetry,
		Context:     ctx,
		Logger:      r.logger.WithField("target", username),
		Sleep:       r.sleep,
	})
}

// account picks the next working account, optionally waiting for one.
func (r *Runner) account(ctx context.Context) (*accounts.Account, error) {
	if acc := r.accounts.Next(); acc != nil {
		return acc, nil
	}
	if r.waitCfg.WaitTimeout <= 0 {
		return nil, errs.ErrNoWorkingAccounts
	}

	r.logger.WarnWithFields("No working account, waiting", map[string]interface{}{
		"timeout": r.waitCfg.WaitTimeout.String(),
	})
	acc, err := r.accounts.WaitForHealthy(ctx, r.waitCfg.CheckInterval, r.waitCfg.WaitTimeout)
	if errors.Is(err, errs.ErrTimeout) {
		return nil, fmt.Errorf("%w: %v", errs.ErrNoWorkingAccounts, err)
	}
	return acc, err
}

// shouldRetry adds account rotation to the default transport policy.
func shouldRetry(err error) bool {
	if errors.Is(err, errs.ErrNoWorkingAccounts) {
		return false
	}
	var blocked *errs.AccountBlockedError
	if errors.As(err, &blocked) {
		return true
	}
	return retry.DefaultRetryIf(err)
}
