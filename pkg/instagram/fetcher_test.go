package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"igtail/pkg/config"
	errs "igtail/pkg/errors"
	"igtail/pkg/logger"
	"igtail/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInstagram serves the web and mobile endpoints from per-test handlers.
type fakeInstagram struct {
	server *httptest.Server
	mux    *http.ServeMux

	mu       sync.Mutex
	graphQL  map[string]http.HandlerFunc
	requests []*http.Request
}

func newFakeInstagram(t *testing.T) *fakeInstagram {
	t.Helper()
	fi := &fakeInstagram{mux: http.NewServeMux(), graphQL: make(map[string]http.HandlerFunc)}
	fi.mux.HandleFunc(graphQLPath, func(w http.ResponseWriter, r *http.Request) {
		fi.mu.Lock()
		h := fi.graphQL[r.URL.Query().Get("doc_id")]
		fi.mu.Unlock()
		if h == nil {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	})
	fi.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fi.mu.Lock()
		fi.requests = append(fi.requests, r.Clone(context.Background()))
		fi.mu.Unlock()
		fi.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(fi.server.Close)
	return fi
}

func (fi *fakeInstagram) onQuery(docID string, h http.HandlerFunc) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.graphQL[docID] = h
}

func (fi *fakeInstagram) count(docID string) int {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	n := 0
	for _, r := range fi.requests {
		if r.URL.Query().Get("doc_id") == docID {
			n++
		}
	}
	return n
}

// recordingSleep returns immediately and remembers every requested delay.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func testFetcher(t *testing.T, fi *fakeInstagram, variant string, sleeper *recordingSleep) Fetcher {
	t.Helper()
	cfg := config.DefaultConfig().Instagram
	cfg.BaseURL = fi.server.URL

	opts := Options{
		HTTPClient: fi.server.Client(),
		Config:     cfg,
		Sleep:      sleeper.sleep,
		Logger:     logger.NewTestLogger(),
	}
	if variant != config.VariantWebAnonymous {
		opts.Credentials = models.SessionCredentials{SessionID: "4242%3Aabc", CSRFToken: "csrf"}
	}

	f, err := NewFetcher(variant, opts)
	require.NoError(t, err)
	return f
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

type listingNode struct {
	code      string
	mediaType int
	takenAt   int64
}

func timelinePage(nodes []listingNode, hasNext bool, cursor string) map[string]any {
	edges := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		edges = append(edges, map[string]any{"node": map[string]any{
			"code": n.code, "media_type": n.mediaType, "taken_at": n.takenAt,
		}})
	}
	return map[string]any{"data": map[string]any{
		"xdt_api__v1__feed__user_timeline_graphql_connection": map[string]any{
			"edges":     edges,
			"page_info": map[string]any{"has_next_page": hasNext, "end_cursor": cursor},
		},
	}}
}

func listingCursor(r *http.Request) string {
	var vars map[string]any
	json.Unmarshal([]byte(r.URL.Query().Get("variables")), &vars)
	if after, ok := vars["after"].(string); ok {
		return after
	}
	return ""
}

func TestNewFetcher(t *testing.T) {
	cfg := config.DefaultConfig().Instagram

	t.Run("authenticated variants need a session", func(t *testing.T) {
		for _, variant := range []string{config.VariantWebAuthenticated, config.VariantMobileAuthenticated} {
			_, err := NewFetcher(variant, Options{Config: cfg, Logger: logger.NewTestLogger()})
			assert.Error(t, err, variant)
		}
	})

	t.Run("unknown variant", func(t *testing.T) {
		_, err := NewFetcher("desktop-app", Options{Config: cfg, Logger: logger.NewTestLogger()})
		assert.Error(t, err)
	})

	t.Run("variant is reported", func(t *testing.T) {
		creds := models.SessionCredentials{SessionID: "1:x", CSRFToken: "c"}
		for _, variant := range []string{config.VariantWebAuthenticated, config.VariantWebAnonymous, config.VariantMobileAuthenticated} {
			f, err := NewFetcher(variant, Options{Config: cfg, Credentials: creds, Logger: logger.NewTestLogger()})
			require.NoError(t, err)
			assert.Equal(t, variant, f.Variant())
		}
	})
}

func TestWebFetchAccount(t *testing.T) {
	accountAnswer := func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"data": map[string]any{"user": map[string]any{
			"username": "natgeo", "full_name": "National Geographic",
			"follower_count": 280, "following_count": 150, "media_count": 30,
		}}})
	}

	t.Run("id from page marker", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.mux.HandleFunc("/natgeo/", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html><script>{"page_id":"profilePage_787132"}</script></html>`)
		})
		fi.onQuery(docIDAccount, func(w http.ResponseWriter, r *http.Request) {
			var vars map[string]any
			require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("variables")), &vars))
			assert.Equal(t, "787132", vars["id"])

			assert.Equal(t, "csrf", r.Header.Get("X-CSRFToken"))
			assert.Equal(t, "1", r.Header.Get("X-Instagram-AJAX"))
			cookie, err := r.Cookie("ds_user_id")
			require.NoError(t, err)
			assert.Equal(t, "4242", cookie.Value)
			accountAnswer(w, r)
		})

		result, err := testFetcher(t, fi, config.VariantWebAuthenticated, &recordingSleep{}).FetchAccount(context.Background(), "natgeo")
		require.NoError(t, err)
		require.True(t, result.OK(), "%v", result.Err())
		assert.Equal(t, models.AccountSummary{
			UserID: "787132", Username: "natgeo", FullName: "National Geographic",
			Followers: 280, Following: 150, Posts: 30,
		}, result.Value())
	})

	t.Run("id from meta tag", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.mux.HandleFunc("/natgeo/", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html><head><meta property="instapp:owner_user_id" content="787132"></head></html>`)
		})
		fi.onQuery(docIDAccount, accountAnswer)

		result, err := testFetcher(t, fi, config.VariantWebAnonymous, &recordingSleep{}).FetchAccount(context.Background(), "natgeo")
		require.NoError(t, err)
		require.True(t, result.OK())
		assert.Equal(t, "787132", result.Value().UserID)
	})

	t.Run("id missing", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.mux.HandleFunc("/natgeo/", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html></html>`)
		})

		result, err := testFetcher(t, fi, config.VariantWebAnonymous, &recordingSleep{}).FetchAccount(context.Background(), "natgeo")
		require.NoError(t, err)
		assert.False(t, result.OK())
		assert.Contains(t, result.Err().Message, "id not found")
	})

	t.Run("not found", func(t *testing.T) {
		fi := newFakeInstagram(t)

		result, err := testFetcher(t, fi, config.VariantWebAnonymous, &recordingSleep{}).FetchAccount(context.Background(), "ghost")
		require.NoError(t, err)
		assert.False(t, result.OK())
		assert.Contains(t, result.Err().Message, "not found")
	})

	t.Run("challenge redirect is a block signal", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.mux.HandleFunc("/natgeo/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/challenge/?next=/natgeo/", http.StatusFound)
		})

		_, err := testFetcher(t, fi, config.VariantWebAuthenticated, &recordingSleep{}).FetchAccount(context.Background(), "natgeo")
		assert.True(t, errs.IsBlockSignal(err))
	})

	t.Run("other redirect", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.mux.HandleFunc("/natgeo/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/accounts/login/", http.StatusFound)
		})

		result, err := testFetcher(t, fi, config.VariantWebAuthenticated, &recordingSleep{}).FetchAccount(context.Background(), "natgeo")
		require.NoError(t, err)
		assert.Contains(t, result.Err().Message, "redirect, possibly blocked")
	})

	t.Run("rejected session on authenticated lookup", func(t *testing.T) {
		for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
			fi := newFakeInstagram(t)
			fi.mux.HandleFunc("/natgeo/", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			})

			_, err := testFetcher(t, fi, config.VariantWebAuthenticated, &recordingSleep{}).FetchAccount(context.Background(), "natgeo")
			assert.ErrorIs(t, err, errs.ErrSessionExpired)
			assert.False(t, errs.IsBlockSignal(err))
		}
	})

	t.Run("challenge body on 403 stays a block signal", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.mux.HandleFunc("/natgeo/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message":"challenge_required"}`)
		})

		_, err := testFetcher(t, fi, config.VariantWebAuthenticated, &recordingSleep{}).FetchAccount(context.Background(), "natgeo")
		assert.True(t, errs.IsBlockSignal(err))
		assert.NotErrorIs(t, err, errs.ErrSessionExpired)
	})

	t.Run("anonymous lookup keeps 401 soft", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.mux.HandleFunc("/natgeo/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		result, err := testFetcher(t, fi, config.VariantWebAnonymous, &recordingSleep{}).FetchAccount(context.Background(), "natgeo")
		require.NoError(t, err)
		assert.Contains(t, result.Err().Message, "unexpected status 401")
	})

	t.Run("user missing from query", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.mux.HandleFunc("/natgeo/", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `"profilePage_1"`)
		})
		fi.onQuery(docIDAccount, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"data": map[string]any{}})
		})

		result, err := testFetcher(t, fi, config.VariantWebAnonymous, &recordingSleep{}).FetchAccount(context.Background(), "natgeo")
		require.NoError(t, err)
		assert.False(t, result.OK())
	})
}

func TestWebFetchListing(t *testing.T) {
	target := Target{UserID: "787132", Username: "natgeo"}

	t.Run("stops at the first old post", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.onQuery(docIDListing, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, timelinePage([]listingNode{
				{"A", 1, 100}, {"B", 2, 90}, {"C", 8, 80}, {"D", 1, 40},
			}, true, "next"))
		})
		sleeper := &recordingSleep{}

		results, err := testFetcher(t, fi, config.VariantWebAnonymous, sleeper).FetchListing(context.Background(), target, 50)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, models.PlainPost{Type: models.PostTypePost, ID: "A", TakenAt: time.Unix(100, 0).UTC()}, results[0].Value())
		assert.Equal(t, models.PostTypeReel, results[1].Value().Type)
		assert.Equal(t, models.PostTypeCarousel, results[2].Value().Type)
		assert.Equal(t, 1, fi.count(docIDListing))
		assert.Empty(t, sleeper.delays)
	})

	t.Run("early exit on a later page", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.onQuery(docIDListing, func(w http.ResponseWriter, r *http.Request) {
			switch listingCursor(r) {
			case "":
				writeJSON(w, timelinePage([]listingNode{{"A", 1, 100}, {"B", 1, 90}}, true, "p2"))
			case "p2":
				writeJSON(w, timelinePage([]listingNode{{"C", 1, 80}, {"D", 1, 40}}, true, "p3"))
			default:
				t.Errorf("unexpected page request %q", listingCursor(r))
			}
		})
		sleeper := &recordingSleep{}

		results, err := testFetcher(t, fi, config.VariantWebAnonymous, sleeper).FetchListing(context.Background(), target, 50)
		require.NoError(t, err)
		assert.Len(t, results, 3)
		assert.Equal(t, 2, fi.count(docIDListing))
		require.Len(t, sleeper.delays, 1)
		assert.GreaterOrEqual(t, sleeper.delays[0], 500*time.Millisecond)
		assert.Less(t, sleeper.delays[0], 1500*time.Millisecond)
	})

	t.Run("missing shortcode is a per item failure", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.onQuery(docIDListing, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, timelinePage([]listingNode{{"A", 1, 100}, {"", 1, 95}, {"C", 1, 90}}, false, ""))
		})

		results, err := testFetcher(t, fi, config.VariantWebAnonymous, &recordingSleep{}).FetchListing(context.Background(), target, 0)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.True(t, results[0].OK())
		assert.False(t, results[1].OK())
		assert.True(t, results[2].OK())
	})

	t.Run("has next without cursor stops", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.onQuery(docIDListing, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, timelinePage([]listingNode{{"A", 1, 100}}, true, ""))
		})

		results, err := testFetcher(t, fi, config.VariantWebAnonymous, &recordingSleep{}).FetchListing(context.Background(), target, 0)
		require.NoError(t, err)
		assert.Len(t, results, 1)
		assert.Equal(t, 1, fi.count(docIDListing))
	})

	t.Run("unknown media type is fatal", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.onQuery(docIDListing, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, timelinePage([]listingNode{{"A", 5, 100}}, false, ""))
		})

		_, err := testFetcher(t, fi, config.VariantWebAnonymous, &recordingSleep{}).FetchListing(context.Background(), target, 0)
		assert.ErrorIs(t, err, errs.ErrUnexpectedMediaType)
	})

	t.Run("broken page aborts with one failure", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.onQuery(docIDListing, func(w http.ResponseWriter, r *http.Request) {
			if listingCursor(r) == "" {
				writeJSON(w, timelinePage([]listingNode{{"A", 1, 100}}, true, "p2"))
				return
			}
			fmt.Fprint(w, `{"data":`)
		})

		results, err := testFetcher(t, fi, config.VariantWebAnonymous, &recordingSleep{}).FetchListing(context.Background(), target, 0)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.False(t, results[0].OK())
		assert.Contains(t, results[0].Err().Message, "listing page 2")
	})

	t.Run("challenge marker is raised", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.onQuery(docIDListing, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"message": "challenge_required", "status": "fail"})
		})

		_, err := testFetcher(t, fi, config.VariantWebAuthenticated, &recordingSleep{}).FetchListing(context.Background(), target, 0)
		assert.True(t, errs.IsBlockSignal(err))
	})
}

func shortcodeMediaAnswer(isVideo bool) map[string]any {
	return map[string]any{"data": map[string]any{"xdt_shortcode_media": map[string]any{
		"id":                      "3611841265983443228",
		"shortcode":               "DIf1n68ClEc",
		"is_video":                isVideo,
		"taken_at_timestamp":      1745000000,
		"edge_media_to_caption":   map[string]any{"edges": []any{map[string]any{"node": map[string]any{"text": "hello"}}}},
		"edge_media_preview_like": map[string]any{"count": 77},
		"video_duration":          12.5,
		"video_view_count":        1000,
		"video_play_count":        2000,
	}}}
}

func TestWebFetchDetail(t *testing.T) {
	t.Run("plain post", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.onQuery(docIDDetail, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, shortcodeMediaAnswer(false))
		})

		result, err := testFetcher(t, fi, config.VariantWebAnonymous, &recordingSleep{}).FetchDetail(context.Background(), "DIf1n68ClEc")
		require.NoError(t, err)
		require.True(t, result.OK())
		assert.Equal(t, models.Post{
			MediaID:     "3611841265983443228",
			Code:        "DIf1n68ClEc",
			URL:         fi.server.URL + "/p/DIf1n68ClEc/",
			Description: "hello",
			PublishedAt: time.Unix(1745000000, 0).UTC(),
			LikeCount:   77,
		}, result.Value())
	})

	t.Run("video becomes a reel", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.onQuery(docIDDetail, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, shortcodeMediaAnswer(true))
		})

		result, err := testFetcher(t, fi, config.VariantWebAnonymous, &recordingSleep{}).FetchDetail(context.Background(), "DIf1n68ClEc")
		require.NoError(t, err)
		require.True(t, result.OK())
		assert.Equal(t, &models.ReelStats{Duration: 12.5, ViewCount: 1000, PlayCount: 2000}, result.Value().Reel)
	})

	t.Run("rate limit cools down once and retries", func(t *testing.T) {
		fi := newFakeInstagram(t)
		calls := 0
		fi.onQuery(docIDDetail, func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				writeJSON(w, map[string]any{"message": rateLimitMessage, "status": "fail"})
				return
			}
			writeJSON(w, shortcodeMediaAnswer(false))
		})
		sleeper := &recordingSleep{}

		result, err := testFetcher(t, fi, config.VariantWebAnonymous, sleeper).FetchDetail(context.Background(), "DIf1n68ClEc")
		require.NoError(t, err)
		assert.True(t, result.OK())
		assert.Equal(t, 2, calls)
		require.Len(t, sleeper.delays, 1)
		assert.GreaterOrEqual(t, sleeper.delays[0], 1500*time.Second)
		assert.Less(t, sleeper.delays[0], 1800*time.Second)
	})

	t.Run("second rate limit escalates", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.onQuery(docIDDetail, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"message": rateLimitMessage, "status": "fail"})
		})
		sleeper := &recordingSleep{}

		_, err := testFetcher(t, fi, config.VariantWebAnonymous, sleeper).FetchDetail(context.Background(), "DIf1n68ClEc")
		assert.ErrorIs(t, err, errs.ErrRateLimited)
		assert.True(t, errs.IsTransport(err))
		assert.Len(t, sleeper.delays, 1)
		assert.Equal(t, 2, fi.count(docIDDetail))
	})

	t.Run("feedback required", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.onQuery(docIDDetail, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"message": "feedback_required", "spam": true})
		})

		result, err := testFetcher(t, fi, config.VariantWebAnonymous, &recordingSleep{}).FetchDetail(context.Background(), "DIf1n68ClEc")
		require.NoError(t, err)
		assert.Contains(t, result.Err().Message, "feedback_required")
	})

	t.Run("restricted media", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.onQuery(docIDDetail, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"data": map[string]any{"xdt_shortcode_media": nil}})
		})

		result, err := testFetcher(t, fi, config.VariantWebAnonymous, &recordingSleep{}).FetchDetail(context.Background(), "DIf1n68ClEc")
		require.NoError(t, err)
		assert.Contains(t, result.Err().Message, "age or geo restricted")
	})

	t.Run("cancelled cooldown", func(t *testing.T) {
		fi := newFakeInstagram(t)
		fi.onQuery(docIDDetail, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"message": rateLimitMessage})
		})
		f := testFetcher(t, fi, config.VariantWebAnonymous, &recordingSleep{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.FetchDetail(ctx, "DIf1n68ClEc")
		assert.Error(t, err)
	})
}

func TestMobileFetcher(t *testing.T) {
	fi := newFakeInstagram(t)
	fi.mux.HandleFunc(webProfileInfoPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "natgeo", r.URL.Query().Get("username"))
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "Instagram "))
		writeJSON(w, map[string]any{"data": map[string]any{"user": map[string]any{
			"id": "787132", "username": "natgeo", "full_name": "National Geographic",
			"edge_followed_by":             map[string]any{"count": 280},
			"edge_follow":                  map[string]any{"count": 150},
			"edge_owner_to_timeline_media": map[string]any{"count": 30},
		}}})
	})
	fi.mux.HandleFunc("/api/v1/feed/user/787132/", func(w http.ResponseWriter, r *http.Request) {
		items := []map[string]any{
			{"code": "A", "media_type": 1, "taken_at": 100},
			{"code": "B", "media_type": 2, "taken_at": 90},
		}
		more, next := true, "m2"
		if r.URL.Query().Get("max_id") == "m2" {
			items = []map[string]any{
				{"code": "C", "media_type": 8, "taken_at": 80},
				{"pk": 3611841265983443228, "media_type": 1, "taken_at": 70},
			}
			more, next = false, ""
		}
		writeJSON(w, map[string]any{"items": items, "more_available": more, "next_max_id": next})
	})
	pk, err := ShortcodeToPK("DIf1n68ClEc")
	require.NoError(t, err)
	fi.mux.HandleFunc(mobileMediaInfoPath(pk), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"items": []any{map[string]any{
			"pk": 3611841265983443228, "code": "DIf1n68ClEc", "taken_at": 1745000000,
			"caption": map[string]any{"text": "hello"}, "like_count": 5, "media_type": 2,
			"video_duration": 3.5, "view_count": 10, "play_count": 20,
		}}})
	})

	sleeper := &recordingSleep{}
	f := testFetcher(t, fi, config.VariantMobileAuthenticated, sleeper)
	ctx := context.Background()

	account, err := f.FetchAccount(ctx, "natgeo")
	require.NoError(t, err)
	require.True(t, account.OK())
	assert.Equal(t, 280, account.Value().Followers)

	listing, err := f.FetchListing(ctx, Target{UserID: account.Value().UserID, Username: "natgeo"}, 0)
	require.NoError(t, err)
	require.Len(t, listing, 4)
	assert.Equal(t, "C", listing[2].Value().ID)
	assert.Equal(t, "DIf1n68ClEc", listing[3].Value().ID)
	assert.Len(t, sleeper.delays, 1)

	detail, err := f.FetchDetail(ctx, "DIf1n68ClEc")
	require.NoError(t, err)
	require.True(t, detail.OK(), "%v", detail.Err())
	assert.Equal(t, "3611841265983443228", detail.Value().MediaID)
	assert.Equal(t, fi.server.URL+"/p/DIf1n68ClEc/", detail.Value().URL)
	assert.Equal(t, "hello", detail.Value().Description)
	require.NotNil(t, detail.Value().Reel)
	assert.Equal(t, 20, detail.Value().Reel.PlayCount)
}

func TestExtractUserID(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
	}{
		{name: "page marker", page: `..."profilePage_123"...`, want: "123"},
		{name: "meta tag", page: `<meta property="instapp:owner_user_id" content="456">`, want: "456"},
		{name: "script json", page: `<script>{"profile_id":"789"}</script>`, want: "789"},
		{name: "nothing", page: `<html><body>hi</body></html>`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractUserID([]byte(tt.page)))
		})
	}
}
