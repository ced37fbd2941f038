// Package ratelimit throttles requests sent to the remote platform.
//
// A single TokenBucket is shared by every client a harvester builds, so the
// configured requests-per-minute budget holds across proxies and accounts.
package ratelimit
