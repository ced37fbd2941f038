// Package retry provides backoff strategies, jittered delays and a retry loop.
//
// The harvester never retries a remote call on its own. Retrying belongs to the
// caller: harvest.Runner uses Do with DefaultRetryIf to re-run a collection on a
// fresh proxy after a proxy break.
//
//	err := retry.Do(func(attempt int) error {
//		return collectOnce(ctx)
//	}, &retry.Config{MaxAttempts: 3, Backoff: retry.DefaultExponentialBackoff(), Context: ctx})
//
// Wait and Between are also used directly for the pauses between listing pages
// and the rate-limit cooldown.
package retry
