package harvest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"igtail/pkg/accounts"
	"igtail/pkg/auth"
	"igtail/pkg/config"
	errs "igtail/pkg/errors"
	"igtail/pkg/instagram"
	"igtail/pkg/logger"
	"igtail/pkg/models"
	"igtail/pkg/proxypool"
	"igtail/pkg/ratelimit"
	"igtail/pkg/retry"
)

// Authenticator performs a password login and trades a rejected session
// for a new one.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (models.ShortUser, models.SessionCredentials, error)
	ReissueSession(ctx context.Context, sessionID, userID, nonce string) (string, string, error)
}

// Harvester collects one account's summary and posts through a proxy taken
// from a shared pool, using a host account from a shared account pool.
// It is safe for concurrent use.
type Harvester struct {
	proxies  *proxypool.Pool
	accounts *accounts.Pool
	cfg      *config.Config
	limiter  ratelimit.Limiter
	sleep    retry.SleepFunc
	logger   logger.Logger

	httpClient   func(*proxypool.Proxy) (*http.Client, error)
	authenticate func(*http.Client) Authenticator
	newFetcher   func(variant string, opts instagram.Options) (instagram.Fetcher, error)
	minTimestamp func(username string) int64
}

// Option customises a Harvester.
type Option func(*Harvester)

// WithHTTPClientFactory replaces the proxied client builder.
func WithHTTPClientFactory(f func(*proxypool.Proxy) (*http.Client, error)) Option {
	return func(h *Harvester) { h.httpClient = f }
}

// WithAuthenticator replaces the web login used for accounts without a session.
func WithAuthenticator(f func(*http.Client) Authenticator) Option {
	return func(h *Harvester) { h.authenticate = f }
}

// WithSleep replaces the sleeper used for delays and cooldowns.
func WithSleep(s retry.SleepFunc) Option {
	return func(h *Harvester) { h.sleep = s }
}

// WithMinTimestamp lets each target use its own listing cutoff, e.g. from a
// checkpoint. Returning 0 falls back to the configured minimum.
func WithMinTimestamp(f func(username string) int64) Option {
	return func(h *Harvester) { h.minTimestamp = f }
}

func WithLogger(l logger.Logger) Option {
	return func(h *Harvester) { h.logger = l }
}

// New returns a Harvester sharing proxies and accs with other callers.
func New(cfg *config.Config, proxies *proxypool.Pool, accs *accounts.Pool, opts ...Option) *Harvester {
	h := &Harvester{
		proxies:    proxies,
		accounts:   accs,
		cfg:        cfg,
		sleep:      retry.Wait,
		logger:     logger.WithComponent("harvest"),
		newFetcher: instagram.NewFetcher,
	}
	for _, opt := range opts {
		opt(h)
	}

	if cfg.RateLimit.RequestsPerMinute > 0 {
		h.limiter = ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize)
	} else {
		h.limiter = ratelimit.Unlimited{}
	}
	if h.httpClient == nil {
		h.httpClient = func(p *proxypool.Proxy) (*http.Client, error) {
			return proxypool.Client(p, cfg.HTTP)
		}
	}
	if h.authenticate == nil {
		h.authenticate = func(c *http.Client) Authenticator {
			return auth.NewLoginService(c, cfg.Instagram, cfg.HTTP, h.logger.WithField("component", "auth"))
		}
	}
	return h
}

// Collect gathers username's summary and posts using acc as host account.
//
// Platform-reported problems are returned inside the CollectedData. The
// returned error is one of:
//   - errs.ErrAllProxiesExhausted when no proxy could be acquired
//   - *errs.ProxyBreakError after a transport failure; retry with a new proxy
//   - *errs.AccountBlockedError after a block signal; acc is no longer working
//
// A host account that cannot sign in yields a result carrying a parsing
// error and keeps its status. A session the platform rejects is reissued
// once; if the renewed session is rejected too it is cleared so the next
// attempt logs in again.
//   - the context error when ctx is done
func (h *Harvester) Collect(ctx context.Context, username string, acc *accounts.Account) (*models.CollectedData, error) {
	view := h.accounts.View(acc)
	log := h.logger.WithFields(map[string]interface{}{
		"run_id":  uuid.NewString(),
		"target":  username,
		"account": view.Login,
	})
	start := time.Now()

	proxy, ok := h.proxies.Acquire(ctx, true, h.cfg.Proxy.AcquireTimeout)
	if !ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errs.ErrAllProxiesExhausted
	}
	log = log.WithField("proxy", proxy.String())

	data, err := h.collect(ctx, log, proxy, username, acc)
	if err != nil {
		data, err = h.mapFailure(ctx, log, proxy, acc, username, err)
		logger.LogCollect(log, username, 0, 0, time.Since(start), err)
		return data, err
	}

	h.proxies.ReportSuccess(proxy)
	if err := h.accounts.ReportSuccess(ctx, acc); err != nil {
		log.WithError(err).Warn("Failed to persist account success")
	}
	parsed, failed := data.Counts()
	logger.LogCollect(log, username, parsed, failed, time.Since(start), nil)
	return data, nil
}

func (h *Harvester) collect(ctx context.Context, log logger.Logger, proxy *proxypool.Proxy, username string, acc *accounts.Account) (*models.CollectedData, error) {
	client, err := h.httpClient(proxy)
	if err != nil {
		return nil, fmt.Errorf("build client for %s: %w", proxy, err)
	}
	defer client.CloseIdleConnections()

	creds, err := h.session(ctx, log, client, acc)
	if err != nil {
		return nil, err
	}

	opts := instagram.Options{
		HTTPClient:  client,
		Config:      h.cfg.Instagram,
		Credentials: creds,
		Limiter:     h.limiter,
		Sleep:       h.sleep,
		Logger:      log,
	}
	lister, err := h.newFetcher(h.cfg.Instagram.ClientVariant, opts)
	if err != nil {
		return nil, err
	}
	anonymous := opts
	anonymous.Credentials = models.SessionCredentials{}
	details, err := h.newFetcher(config.VariantWebAnonymous, anonymous)
	if err != nil {
		return nil, err
	}

	account, err := lister.FetchAccount(ctx, username)
	if errors.Is(err, errs.ErrSessionExpired) {
		if opts.Credentials, err = h.renewSession(ctx, log, client, acc, creds); err != nil {
			return nil, err
		}
		if lister, err = h.newFetcher(h.cfg.Instagram.ClientVariant, opts); err != nil {
			return nil, err
		}
		account, err = lister.FetchAccount(ctx, username)
	}
	if err != nil {
		return nil, err
	}
	summary, ok := account.Get()
	if !ok {
		return &models.CollectedData{Account: account}, nil
	}

	listing, err := lister.FetchListing(ctx, instagram.Target{UserID: summary.UserID, Username: username}, h.cutoff(username))
	if err != nil {
		return nil, err
	}

	posts := make([]models.ParsingResult[models.Post], 0, len(listing))
	for i, item := range listing {
		ref, ok := item.Get()
		if !ok {
			posts = append(posts, models.FailureFrom[models.Post](item))
			continue
		}
		if i > 0 {
			if err := h.sleep(ctx, retry.Between(h.cfg.Instagram.PageDelayMin, h.cfg.Instagram.PageDelayMax)); err != nil {
				return nil, err
			}
		}
		post, err := details.FetchDetail(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}

	return &models.CollectedData{Account: account, Posts: posts}, nil
}

// session returns acc's stored cookies, logging in first when there are none.
func (h *Harvester) session(ctx context.Context, log logger.Logger, client *http.Client, acc *accounts.Account) (models.SessionCredentials, error) {
	view := h.accounts.View(acc)
	if view.HasSession() {
		return models.SessionCredentials{SessionID: view.SessionID, CSRFToken: view.Token}, nil
	}

	log.Info("Logging in host account")
	_, creds, err := h.authenticate(client).Login(ctx, view.Login, view.Password)
	if err != nil {
		return models.SessionCredentials{}, err
	}
	if err := h.accounts.SetSessionAndToken(ctx, acc, creds.SessionID, creds.CSRFToken); err != nil {
		log.WithError(err).Warn("Failed to persist session")
	}
	return creds, nil
}

// renewSession replaces a session the platform stopped accepting. A one-tap
// reissue is tried first; when that is refused the stored session is dropped
// and the account logs in with its password.
func (h *Harvester) renewSession(ctx context.Context, log logger.Logger, client *http.Client, acc *accounts.Account, stale models.SessionCredentials) (models.SessionCredentials, error) {
	log.Warn("Session rejected, reissuing")
	_, sessionID, err := h.authenticate(client).ReissueSession(ctx, stale.SessionID, stale.UserID(), "")
	switch {
	case err == nil && sessionID != "":
		if setErr := h.accounts.SetSessionAndToken(ctx, acc, sessionID, stale.CSRFToken); setErr != nil {
			log.WithError(setErr).Warn("Failed to persist session")
		}
		return models.SessionCredentials{SessionID: sessionID, CSRFToken: stale.CSRFToken}, nil
	case err != nil && (ctx.Err() != nil || errs.IsTransport(err)):
		return models.SessionCredentials{}, err
	case err != nil:
		log.WithError(err).Warn("Reissue refused, logging in again")
	}

	if setErr := h.accounts.SetSessionAndToken(ctx, acc, "", ""); setErr != nil {
		log.WithError(setErr).Warn("Failed to clear session")
	}
	return h.session(ctx, log, client, acc)
}

// mapFailure turns err into what the caller of Collect sees and updates the
// pools accordingly. Failures that are neither proxy nor account faults end
// in a result carrying a parsing error.
func (h *Harvester) mapFailure(ctx context.Context, log logger.Logger, proxy *proxypool.Proxy, acc *accounts.Account, username string, err error) (*models.CollectedData, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	login := h.accounts.View(acc).Login

	var signIn *errs.SignInError
	switch {
	case errs.IsBlockSignal(err):
		if setErr := h.accounts.SetStatus(ctx, acc, accounts.StatusChallengeRequired); setErr != nil {
			log.WithError(setErr).Warn("Failed to persist account status")
		}
		return nil, &errs.AccountBlockedError{Login: login, Reason: err.Error()}

	case errs.IsTransport(err):
		h.proxies.ReportFailure(proxy)
		return nil, &errs.ProxyBreakError{Proxy: proxy.String(), Err: err}

	case errors.As(err, &signIn):
		if repErr := h.accounts.ReportFailure(ctx, acc); repErr != nil {
			log.WithError(repErr).Warn("Failed to persist account failure")
		}
		log.WithError(err).Warn("Host account could not sign in")
		return &models.CollectedData{
			Account: models.Failure[models.AccountSummary]("collect %s: %v", username, err),
		}, nil

	case errors.Is(err, errs.ErrSessionExpired):
		if setErr := h.accounts.SetSessionAndToken(ctx, acc, "", ""); setErr != nil {
			log.WithError(setErr).Warn("Failed to clear session")
		}
		return &models.CollectedData{
			Account: models.Failure[models.AccountSummary]("collect %s: %v", username, err),
		}, nil
	}

	log.WithError(err).Error("Unexpected failure, degrading to parsing error")
	return &models.CollectedData{
		Account: models.Failure[models.AccountSummary]("collect %s: %v", username, err),
	}, nil
}

func (h *Harvester) cutoff(username string) int64 {
	if h.minTimestamp != nil {
		if ts := h.minTimestamp(username); ts > 0 {
			return ts
		}
	}
	return h.cfg.Instagram.MinTimestamp
}
