// Package instagram fetches account summaries, post listings and post
// details from Instagram.
//
// Three client variants implement Fetcher:
//
//   - web-authenticated: browser GraphQL queries carrying a login session
//   - web-anonymous: the same queries as a logged-out browser
//   - mobile-authenticated: the private app API carrying a login session
//
// Pick one with NewFetcher:
//
//	f, err := instagram.NewFetcher(config.VariantWebAnonymous, instagram.Options{
//	    HTTPClient: httpClient,
//	    Config:     cfg.Instagram,
//	})
//	account, err := f.FetchAccount(ctx, "natgeo")
//
// Conditions the platform reports (missing accounts, restricted posts, odd
// pages) are returned as failed models.ParsingResult values. Errors are kept
// for transport failures, block signals and repeated rate limiting.
package instagram
