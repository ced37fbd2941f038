// Package proxypool tracks the health of egress proxies.
//
// Acquire hands out the least recently used proxy that is not cooling down.
// Each ReportFailure extends the cooldown by one step up to a cap, and a proxy
// that keeps failing is evicted for the rest of the run. Waiters in Acquire are
// woken whenever any proxy changes state and also re-poll on a fixed interval,
// since cooldowns expire without an event.
package proxypool
