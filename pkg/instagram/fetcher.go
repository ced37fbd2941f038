package instagram

import (
	"context"
	"fmt"
	"net/http"

	"igtail/pkg/config"
	errs "igtail/pkg/errors"
	"igtail/pkg/logger"
	"igtail/pkg/models"
	"igtail/pkg/ratelimit"
	"igtail/pkg/retry"
)

// Target identifies the account whose posts are listed. Web variants page by
// username, the mobile variant by numeric id.
type Target struct {
	UserID   string
	Username string
}

// Fetcher resolves accounts, lists their posts and loads post details.
//
// Platform-reported problems come back inside the ParsingResult values.
// A returned error is either a transport failure, a block signal
// (errs.IsBlockSignal), errs.ErrRateLimited, errs.ErrUnexpectedMediaType or,
// from FetchAccount of an authenticated variant, errs.ErrSessionExpired.
type Fetcher interface {
	Variant() string
	FetchAccount(ctx context.Context, username string) (models.ParsingResult[models.AccountSummary], error)
	FetchListing(ctx context.Context, target Target, minTimestamp int64) ([]models.ParsingResult[models.PlainPost], error)
	FetchDetail(ctx context.Context, shortcode string) (models.ParsingResult[models.Post], error)
}

// Options configures NewFetcher.
type Options struct {
	HTTPClient  *http.Client
	Config      config.InstagramConfig
	Credentials models.SessionCredentials
	Limiter     ratelimit.Limiter
	// Sleep is used for inter-page delays and the rate limit cooldown.
	Sleep  retry.SleepFunc
	Logger logger.Logger
}

// NewFetcher builds the client variant named by variant.
func NewFetcher(variant string, opts Options) (Fetcher, error) {
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.Sleep == nil {
		opts.Sleep = retry.Wait
	}
	log := opts.Logger.WithField("component", "fetcher").WithField("variant", variant)

	switch variant {
	case config.VariantWebAuthenticated, config.VariantMobileAuthenticated:
		if opts.Credentials.SessionID == "" {
			return nil, fmt.Errorf("%s client requires a session", variant)
		}
	case config.VariantWebAnonymous:
	default:
		return nil, fmt.Errorf("unknown client variant %q", variant)
	}

	client := NewClient(opts.HTTPClient, opts.Config.BaseURL, opts.Limiter, log)
	engine := &engine{
		client:        client,
		cfg:           opts.Config,
		sleep:         opts.Sleep,
		logger:        log,
		authenticated: variant != config.VariantWebAnonymous,
	}

	switch variant {
	case config.VariantWebAuthenticated:
		client.SetHeaders(map[string]string{
			"User-Agent":       opts.Config.UserAgent,
			"X-IG-App-ID":      opts.Config.AppID,
			"X-Instagram-AJAX": "1",
			"X-Requested-With": "XMLHttpRequest",
			"X-CSRFToken":      opts.Credentials.CSRFToken,
		})
		setSessionCookies(client, opts.Credentials)
		return &webFetcher{engine: engine, variant: variant}, nil
	case config.VariantWebAnonymous:
		client.SetHeaders(anonymousHeaders(client.baseURL))
		return &webFetcher{engine: engine, variant: variant}, nil
	default:
		client.SetHeaders(map[string]string{
			"User-Agent":  opts.Config.MobileUserAgent,
			"X-IG-App-ID": opts.Config.AppID,
		})
		setSessionCookies(client, opts.Credentials)
		return &mobileFetcher{engine: engine}, nil
	}
}

func setSessionCookies(c *Client, creds models.SessionCredentials) {
	c.SetCookie("sessionid", creds.SessionID)
	c.SetCookie("csrftoken", creds.CSRFToken)
	c.SetCookie("ds_user_id", creds.UserID())
}

// engine holds what every variant shares.
type engine struct {
	client        *Client
	cfg           config.InstagramConfig
	sleep         retry.SleepFunc
	logger        logger.Logger
	authenticated bool
}

// inspectLookup is inspect for account lookups. An authenticated client
// answered with 401 or 403 holds a session the platform no longer accepts.
func (e *engine) inspectLookup(resp *Response) (string, error) {
	failure, err := inspect(resp)
	if err != nil || !e.authenticated {
		return failure, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("%w (status %d)", errs.ErrSessionExpired, resp.StatusCode)
	}
	return failure, nil
}

// inspect sorts a response into a block signal (returned as error), a soft
// failure (non-empty message) or a usable 2xx answer.
func inspect(resp *Response) (string, error) {
	classified := resp.Classify()
	if classified == nil {
		return "", nil
	}
	if classified.Type == errs.ErrorTypeChallenge {
		return "", classified
	}
	if resp.IsRedirect() {
		if isChallengeLocation(resp.Location()) {
			return "", &errs.Error{Type: errs.ErrorTypeChallenge, Message: "challenge redirect", Code: resp.StatusCode}
		}
		return "redirect, possibly blocked", nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return "not found", nil
	}
	return fmt.Sprintf("unexpected status %d", resp.StatusCode), nil
}
