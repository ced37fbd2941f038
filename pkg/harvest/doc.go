// Package harvest composes the proxy pool, the account pool, the login flow
// and an instagram.Fetcher into one operation: collect everything about a
// target account.
//
// Harvester.Collect makes a single attempt and reports what went wrong in a
// form the caller can act on. Runner wraps it with the failover policy:
// retry with a fresh proxy after a proxy break, move to the next working
// account after a block.
package harvest
