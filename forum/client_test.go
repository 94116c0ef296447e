package forum

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func landingPage(t *testing.T, memberID any) string {
	t.Helper()
	blob, err := json.Marshal(map[string]any{"user": map[string]any{"member_id": memberID}})
	require.NoError(t, err)
	return `<html><head><script id="temp-script" type="text/plain">` +
		base64.StdEncoding.EncodeToString(blob) + `</script></head><body></body></html>`
}

func newTestClient(t *testing.T, handler http.Handler, mutate func(*Config)) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.Cookie = "session=abc"
	cfg.MaxRetries = 0
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg, nil, WithHTTPClient(server.Client()))
	require.NoError(t, err)
	c.transport.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestIdentityResolvedOnce(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, landingPage(t, 4242))
	}), nil)

	assert.Equal(t, "4242", c.Identity(context.Background()))
	assert.Equal(t, "4242", c.Identity(context.Background()))
	assert.Equal(t, int32(1), hits.Load())
}

func TestIdentityFailureIsRemembered(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `<html><script id="temp-script">%%%not-base64%%%</script></html>`)
	}), nil)

	assert.Empty(t, c.Identity(context.Background()))
	assert.Empty(t, c.Identity(context.Background()))
	assert.Equal(t, int32(1), hits.Load())
}

func TestIdentityFromPage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "17", identityFromPage(landingPage(t, "17")))
	assert.Equal(t, "", identityFromPage(landingPage(t, nil)))
	assert.Equal(t, "", identityFromPage(`<html></html>`))

	noUser := base64.StdEncoding.EncodeToString([]byte(`{"site":"x"}`))
	assert.Equal(t, "", identityFromPage(`<script id="temp-script">`+noUser+`</script>`))

	notJSON := base64.StdEncoding.EncodeToString([]byte(`not json`))
	assert.Equal(t, "", identityFromPage(`<script id="temp-script">`+notJSON+`</script>`))
}

func TestFetchContextMarksOwnComment(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, landingPage(t, 42))
	})
	mux.HandleFunc("/post-900-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "session=abc", r.Header.Get("Cookie"))
		_, _ = io.WriteString(w, threadPage(
			commentItem("7", "a comment from a peer"),
			commentItem("42", "my earlier reply here"),
		))
	})
	c := newTestClient(t, mux, nil)

	tc, err := c.FetchContext(context.Background(), c.BaseURL()+"/post-900-1", 6)
	require.NoError(t, err)
	assert.Equal(t, int64(900), tc.ThreadID)
	assert.True(t, tc.HasCommented)
	assert.Equal(t, []string{"a comment from a peer"}, tc.Comments)
}

func TestFetchContextBlocked(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}), nil)

	_, err := c.FetchContext(context.Background(), c.BaseURL()+"/post-1-1", 6)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBlocked)
}

func TestFetchContextOtherStatus(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}), nil)

	_, err := c.FetchContext(context.Background(), c.BaseURL()+"/post-1-1", 6)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 404, statusErr.Status)
	assert.NotErrorIs(t, err, ErrBlocked)
}

func TestListThreadsFallsBackThroughPagination(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var seen []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.RequestURI())
		mu.Unlock()
		if r.URL.Path != "/categories/review/page-2" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `<a href="/post-5-1">Five</a><a href="/post-5-1">Five again</a>`)
	}), nil)

	refs, err := c.ListThreads(context.Background(), "review", 2)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, c.BaseURL()+"/post-5-1", refs[0].URL)
	assert.Equal(t, []string{"/categories/review?page=2", "/categories/review/page-2"}, seen)
}

func TestListThreadsBlocked(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}), nil)

	_, err := c.ListThreads(context.Background(), "review", 1)
	assert.ErrorIs(t, err, ErrBlocked)
}

func TestListThreadsAllCandidatesFail(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}), nil)

	_, err := c.ListThreads(context.Background(), "review", 1)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "HTTP 404"), err.Error())
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.BaseURL = "not a url"
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestWithHTTPClientIgnoresNil(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	c, err := New(cfg, nil, WithHTTPClient(nil))
	require.NoError(t, err)
	require.NotNil(t, c.transport.client)

	resp, err := c.transport.Send(context.Background(), http.MethodGet, server.URL, nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
}
