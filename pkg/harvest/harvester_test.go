package harvest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igtail/pkg/accounts"
	"igtail/pkg/config"
	errs "igtail/pkg/errors"
	"igtail/pkg/logger"
	"igtail/pkg/models"
	"igtail/pkg/proxypool"
)

const (
	docAccount = "10068642573147916"
	docListing = "9456479251133434"
	docDetail  = "8845758582119845"
)

// platform is a scripted Instagram web surface.
type platform struct {
	server  *httptest.Server
	listing func(w http.ResponseWriter, r *http.Request)
	details int32
	// expired session ids are answered with 401 on the profile page
	expired map[string]bool
}

func newPlatform(t *testing.T) *platform {
	t.Helper()
	p := &platform{expired: make(map[string]bool)}
	p.listing = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, timeline(
			node{"AAA", 1, 2000000000},
			node{"BBB", 2, 1900000000},
		))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/natgeo/", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sessionid"); err == nil && p.expired[c.Value] {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `<html>"profilePage_787132"</html>`)
	})
	mux.HandleFunc("/graphql/query/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("doc_id") {
		case docAccount:
			writeJSON(w, map[string]any{"data": map[string]any{"user": map[string]any{
				"username": "natgeo", "full_name": "National Geographic", "follower_count": 10,
			}}})
		case docListing:
			p.listing(w, r)
		case docDetail:
			atomic.AddInt32(&p.details, 1)
			_, err := r.Cookie("sessionid")
			assert.Error(t, err, "details must be fetched anonymously")

			var vars map[string]any
			json.Unmarshal([]byte(r.URL.Query().Get("variables")), &vars)
			writeJSON(w, map[string]any{"data": map[string]any{"xdt_shortcode_media": map[string]any{
				"id": "1", "shortcode": vars["shortcode"], "taken_at_timestamp": 2000000000,
			}}})
		default:
			http.NotFound(w, r)
		}
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

type node struct {
	code      string
	mediaType int
	takenAt   int64
}

func timeline(nodes ...node) map[string]any {
	edges := make([]any, 0, len(nodes))
	for _, n := range nodes {
		edges = append(edges, map[string]any{"node": map[string]any{
			"code": n.code, "media_type": n.mediaType, "taken_at": n.takenAt,
		}})
	}
	return map[string]any{"data": map[string]any{
		"xdt_api__v1__feed__user_timeline_graphql_connection": map[string]any{
			"edges":     edges,
			"page_info": map[string]any{"has_next_page": false},
		},
	}}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

type fakeAuth struct {
	calls int
	creds models.SessionCredentials
	err   error

	reissued   []string
	reissue    string
	reissueErr error
}

func (f *fakeAuth) Login(ctx context.Context, username, password string) (models.ShortUser, models.SessionCredentials, error) {
	f.calls++
	if f.err != nil {
		return models.ShortUser{}, models.SessionCredentials{}, f.err
	}
	return models.ShortUser{Authenticated: true, UserID: "4242"}, f.creds, nil
}

func (f *fakeAuth) ReissueSession(ctx context.Context, sessionID, userID, nonce string) (string, string, error) {
	f.reissued = append(f.reissued, sessionID+"|"+userID)
	if f.reissueErr != nil {
		return "", "", f.reissueErr
	}
	return "nonce", f.reissue, nil
}

// idleCloser records CloseIdleConnections on the wrapped transport.
type idleCloser struct {
	http.RoundTripper
	closed int32
}

func (c *idleCloser) CloseIdleConnections() { atomic.AddInt32(&c.closed, 1) }

type fixture struct {
	platform *platform
	cfg      *config.Config
	proxies  *proxypool.Pool
	accounts *accounts.Pool
	auth     *fakeAuth
	log      *logger.TestLogger
	// failing makes every request through the named proxy fail at transport level
	failing map[string]bool
}

func newFixture(t *testing.T, proxyAddrs ...string) *fixture {
	t.Helper()
	f := &fixture{
		platform: newPlatform(t),
		cfg:      config.DefaultConfig(),
		auth:     &fakeAuth{creds: models.SessionCredentials{SessionID: "4242%3Anew", CSRFToken: "tok"}},
		log:      logger.NewTestLogger(),
		failing:  make(map[string]bool),
	}
	f.cfg.Instagram.BaseURL = f.platform.server.URL
	f.cfg.Instagram.MinTimestamp = 0
	f.cfg.RateLimit.RequestsPerMinute = 0

	if len(proxyAddrs) == 0 {
		proxyAddrs = []string{"10.0.0.1:8080"}
	}
	f.cfg.Proxy.Addresses = proxyAddrs
	var err error
	f.proxies, err = proxypool.New(f.cfg.Proxy, proxypool.WithLogger(f.log))
	require.NoError(t, err)

	f.accounts = accounts.NewPool(accounts.NewJSONStore(filepath.Join(t.TempDir(), "accounts.json")), accounts.WithLogger(f.log))
	return f
}

func (f *fixture) addAccount(t *testing.T, acc accounts.Account) *accounts.Account {
	t.Helper()
	require.NoError(t, f.accounts.Add(context.Background(), acc))
	stored, ok := f.accounts.Find(acc.Login)
	require.True(t, ok)
	return stored
}

func (f *fixture) harvester() *Harvester {
	return New(f.cfg, f.proxies, f.accounts,
		WithLogger(f.log),
		WithSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
		WithAuthenticator(func(*http.Client) Authenticator { return f.auth }),
		WithHTTPClientFactory(func(p *proxypool.Proxy) (*http.Client, error) {
			if f.failing[p.Address] {
				return &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
					return nil, errors.New("proxyconnect tcp: connection refused")
				})}, nil
			}
			return f.platform.server.Client(), nil
		}),
	)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func sessionAccount(login string) accounts.Account {
	return accounts.Account{Login: login, Password: "pw", SessionID: "4242%3Aabc", Token: "csrf", Status: accounts.StatusWorking}
}

func TestCollect(t *testing.T) {
	ctx := context.Background()

	t.Run("collects summary and posts", func(t *testing.T) {
		f := newFixture(t)
		acc := f.addAccount(t, sessionAccount("host"))

		data, err := f.harvester().Collect(ctx, "natgeo", acc)
		require.NoError(t, err)
		require.True(t, data.Account.OK())
		assert.Equal(t, "787132", data.Account.Value().UserID)
		require.Len(t, data.Posts, 2)
		assert.Equal(t, "AAA", data.Posts[0].Value().Code)
		assert.Equal(t, "BBB", data.Posts[1].Value().Code)
		assert.EqualValues(t, 2, atomic.LoadInt32(&f.platform.details))
		assert.Equal(t, 0, f.auth.calls)
		assert.Equal(t, 0, f.proxies.Snapshot()[0].FailCount)
		assert.True(t, f.log.HasMessage("Collection completed"))
	})

	t.Run("logs in when no session is stored", func(t *testing.T) {
		f := newFixture(t)
		acc := f.addAccount(t, accounts.Account{Login: "fresh", Password: "pw"})

		_, err := f.harvester().Collect(ctx, "natgeo", acc)
		require.NoError(t, err)
		assert.Equal(t, 1, f.auth.calls)

		view := f.accounts.View(acc)
		assert.Equal(t, "4242%3Anew", view.SessionID)
		assert.Equal(t, "tok", view.Token)
	})

	t.Run("unknown account is a parsing result", func(t *testing.T) {
		f := newFixture(t)
		acc := f.addAccount(t, sessionAccount("host"))

		data, err := f.harvester().Collect(ctx, "ghost", acc)
		require.NoError(t, err)
		assert.False(t, data.Account.OK())
		assert.Nil(t, data.Posts)
	})

	t.Run("early exit uses the configured minimum", func(t *testing.T) {
		f := newFixture(t)
		f.cfg.Instagram.MinTimestamp = 1950000000
		acc := f.addAccount(t, sessionAccount("host"))

		data, err := f.harvester().Collect(ctx, "natgeo", acc)
		require.NoError(t, err)
		assert.Len(t, data.Posts, 1)
	})

	t.Run("per target minimum wins", func(t *testing.T) {
		f := newFixture(t)
		acc := f.addAccount(t, sessionAccount("host"))
		h := f.harvester()
		WithMinTimestamp(func(string) int64 { return 2100000000 })(h)

		data, err := h.Collect(ctx, "natgeo", acc)
		require.NoError(t, err)
		assert.Empty(t, data.Posts)
	})

	t.Run("transport failure breaks the proxy", func(t *testing.T) {
		f := newFixture(t)
		f.failing["10.0.0.1:8080"] = true
		acc := f.addAccount(t, sessionAccount("host"))

		data, err := f.harvester().Collect(ctx, "natgeo", acc)
		assert.Nil(t, data)
		assert.ErrorIs(t, err, errs.ErrProxyBreak)
		var pb *errs.ProxyBreakError
		require.ErrorAs(t, err, &pb)
		assert.Equal(t, "10.0.0.1:8080", pb.Proxy)
		assert.Equal(t, 1, f.proxies.Snapshot()[0].FailCount)
		assert.Equal(t, accounts.StatusWorking, f.accounts.View(acc).Status)
	})

	t.Run("challenge blocks the account", func(t *testing.T) {
		f := newFixture(t)
		f.platform.listing = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]any{"message": "challenge_required"})
		}
		acc := f.addAccount(t, sessionAccount("host"))

		_, err := f.harvester().Collect(ctx, "natgeo", acc)
		assert.ErrorIs(t, err, errs.ErrAccountBlocked)
		var blocked *errs.AccountBlockedError
		require.ErrorAs(t, err, &blocked)
		assert.Equal(t, "host", blocked.Login)
		assert.Equal(t, accounts.StatusChallengeRequired, f.accounts.View(acc).Status)
		assert.Nil(t, f.accounts.Next())
		assert.Equal(t, 0, f.proxies.Snapshot()[0].FailCount)
	})

	t.Run("rejected login is a parsing result", func(t *testing.T) {
		f := newFixture(t)
		f.auth.err = &errs.SignInError{Message: "bad password", StatusCode: http.StatusOK}
		acc := f.addAccount(t, accounts.Account{Login: "fresh", Password: "wrong", Status: accounts.StatusWorking})

		data, err := f.harvester().Collect(ctx, "natgeo", acc)
		require.NoError(t, err)
		require.NotNil(t, data)
		assert.False(t, data.Account.OK())
		assert.Contains(t, data.Account.Err().Message, "sign in: ")
		assert.Contains(t, data.Account.Err().Message, "bad password")
		assert.Nil(t, data.Posts)

		view := f.accounts.View(acc)
		assert.Equal(t, accounts.StatusWorking, view.Status)
		assert.Equal(t, 1, view.FailCount)
		assert.Equal(t, 0, f.proxies.Snapshot()[0].FailCount)
	})

	t.Run("expired session is reissued", func(t *testing.T) {
		f := newFixture(t)
		f.platform.expired["4242%3Aabc"] = true
		f.auth.reissue = "4242%3Afresh"
		acc := f.addAccount(t, sessionAccount("host"))

		data, err := f.harvester().Collect(ctx, "natgeo", acc)
		require.NoError(t, err)
		require.True(t, data.Account.OK(), "%v", data.Account.Err())
		assert.Len(t, data.Posts, 2)
		assert.Equal(t, []string{"4242%3Aabc|4242"}, f.auth.reissued)
		assert.Equal(t, 0, f.auth.calls)

		view := f.accounts.View(acc)
		assert.Equal(t, "4242%3Afresh", view.SessionID)
		assert.Equal(t, "csrf", view.Token)
		assert.Equal(t, accounts.StatusWorking, view.Status)
	})

	t.Run("refused reissue logs in again", func(t *testing.T) {
		f := newFixture(t)
		f.platform.expired["4242%3Aabc"] = true
		f.auth.reissueErr = &errs.SignInError{Message: "login_required", StatusCode: http.StatusOK}
		acc := f.addAccount(t, sessionAccount("host"))

		data, err := f.harvester().Collect(ctx, "natgeo", acc)
		require.NoError(t, err)
		require.True(t, data.Account.OK(), "%v", data.Account.Err())
		assert.Len(t, f.auth.reissued, 1)
		assert.Equal(t, 1, f.auth.calls)

		view := f.accounts.View(acc)
		assert.Equal(t, "4242%3Anew", view.SessionID)
		assert.Equal(t, "tok", view.Token)
	})

	t.Run("session rejected after renewal is cleared", func(t *testing.T) {
		f := newFixture(t)
		f.platform.expired["4242%3Aabc"] = true
		f.platform.expired["4242%3Afresh"] = true
		f.auth.reissue = "4242%3Afresh"
		acc := f.addAccount(t, sessionAccount("host"))

		data, err := f.harvester().Collect(ctx, "natgeo", acc)
		require.NoError(t, err)
		require.NotNil(t, data)
		assert.False(t, data.Account.OK())
		assert.Contains(t, data.Account.Err().Message, "session expired")

		view := f.accounts.View(acc)
		assert.False(t, view.HasSession())
		assert.Equal(t, accounts.StatusWorking, view.Status)
		assert.Equal(t, 0, f.proxies.Snapshot()[0].FailCount)
	})

	t.Run("idle connections are closed", func(t *testing.T) {
		f := newFixture(t)
		acc := f.addAccount(t, sessionAccount("host"))
		h := f.harvester()
		closer := &idleCloser{RoundTripper: f.platform.server.Client().Transport}
		WithHTTPClientFactory(func(*proxypool.Proxy) (*http.Client, error) {
			return &http.Client{Transport: closer}, nil
		})(h)

		_, err := h.Collect(ctx, "natgeo", acc)
		require.NoError(t, err)
		assert.EqualValues(t, 1, atomic.LoadInt32(&closer.closed))

		f.platform.listing = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]any{"message": "challenge_required"})
		}
		_, err = h.Collect(ctx, "natgeo", acc)
		require.Error(t, err)
		assert.EqualValues(t, 2, atomic.LoadInt32(&closer.closed))
	})

	t.Run("unexpected failure degrades", func(t *testing.T) {
		f := newFixture(t)
		f.platform.listing = func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, timeline(node{"AAA", 99, 2000000000}))
		}
		acc := f.addAccount(t, sessionAccount("host"))

		data, err := f.harvester().Collect(ctx, "natgeo", acc)
		require.NoError(t, err)
		require.NotNil(t, data)
		assert.False(t, data.Account.OK())
		assert.Contains(t, data.Account.Err().Message, "unexpected media type")
	})

	t.Run("empty proxy pool", func(t *testing.T) {
		f := newFixture(t)
		empty, err := proxypool.New(config.ProxyConfig{})
		require.NoError(t, err)
		f.proxies = empty
		acc := f.addAccount(t, sessionAccount("host"))

		_, err = f.harvester().Collect(ctx, "natgeo", acc)
		assert.ErrorIs(t, err, errs.ErrAllProxiesExhausted)
	})
}

func TestCollectConcurrently(t *testing.T) {
	f := newFixture(t, "10.0.0.1:8080", "10.0.0.2:8080", "10.0.0.3:8080")
	acc := f.addAccount(t, sessionAccount("host"))
	h := f.harvester()

	errCh := make(chan error, 6)
	for i := 0; i < 6; i++ {
		go func() {
			_, err := h.Collect(context.Background(), "natgeo", acc)
			errCh <- err
		}()
	}
	for i := 0; i < 6; i++ {
		assert.NoError(t, <-errCh)
	}
}
