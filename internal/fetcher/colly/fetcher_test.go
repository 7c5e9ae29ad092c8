package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProxy struct {
	mu      sync.Mutex
	queries []url.Values
	status  int
	body    string
}

func (p *recordingProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.queries = append(p.queries, r.URL.Query())
	p.mu.Unlock()
	w.WriteHeader(p.status)
	_, _ = w.Write([]byte(p.body))
}

func (p *recordingProxy) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queries)
}

func (p *recordingProxy) lastQuery() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queries[len(p.queries)-1]
}

type countingWaiter struct {
	urls []string
	err  error
}

func (w *countingWaiter) Wait(_ context.Context, rawURL string) error {
	w.urls = append(w.urls, rawURL)
	return w.err
}

func newTestFetcher(t *testing.T, srv *httptest.Server, waiter Waiter) *Fetcher {
	t.Helper()
	f, err := New(Config{Endpoint: srv.URL + "/v1/", APIKey: "secret", Timeout: 5 * time.Second}, waiter, nil)
	require.NoError(t, err)
	return f
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{APIKey: ""}, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{Endpoint: "not a url", APIKey: "k"}, nil, nil)
	assert.Error(t, err)

	f, err := New(Config{APIKey: "k"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpoint, f.cfg.Endpoint)
	assert.Equal(t, "us", f.cfg.Country)
}

func TestProxyURL(t *testing.T) {
	t.Parallel()

	f, err := New(Config{Endpoint: "https://proxy.example/v1/", APIKey: "k"}, nil, nil)
	require.NoError(t, err)

	raw := f.proxyURL("https://www.fastpeoplesearch.com/name/jane-doe_springfield-il", true)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "proxy.example", u.Host)
	assert.Equal(t, "k", u.Query().Get("api_key"))
	assert.Equal(t, "https://www.fastpeoplesearch.com/name/jane-doe_springfield-il", u.Query().Get("url"))
	assert.Equal(t, "us", u.Query().Get("country"))
	assert.Equal(t, "true", u.Query().Get("render_js"))
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	proxy := &recordingProxy{status: http.StatusOK, body: "<html>ok</html>"}
	srv := httptest.NewServer(proxy)
	defer srv.Close()

	waiter := &countingWaiter{}
	f := newTestFetcher(t, srv, waiter)

	body, err := f.Fetch(context.Background(), "https://target.example/name/a", false)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", body)
	assert.Equal(t, "false", proxy.lastQuery().Get("render_js"))
	assert.Equal(t, "https://target.example/name/a", proxy.lastQuery().Get("url"))
	assert.Equal(t, []string{"https://target.example/name/a"}, waiter.urls)

	// same target again must not be skipped as already visited
	_, err = f.Fetch(context.Background(), "https://target.example/name/a", false)
	require.NoError(t, err)
	assert.Equal(t, 2, proxy.count())
}

func TestFetchNonOKStatus(t *testing.T) {
	t.Parallel()

	proxy := &recordingProxy{status: http.StatusForbidden, body: "blocked by anti-bot"}
	srv := httptest.NewServer(proxy)
	defer srv.Close()

	f := newTestFetcher(t, srv, nil)
	_, err := f.Fetch(context.Background(), "https://target.example/", true)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "expected StatusError, got %T: %v", err, err)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "blocked by anti-bot")
}

func TestFetchLimiterError(t *testing.T) {
	t.Parallel()

	proxy := &recordingProxy{status: http.StatusOK}
	srv := httptest.NewServer(proxy)
	defer srv.Close()

	waitErr := errors.New("rate limit wait: context deadline exceeded")
	f := newTestFetcher(t, srv, &countingWaiter{err: waitErr})
	_, err := f.Fetch(context.Background(), "https://target.example/", false)
	assert.ErrorIs(t, err, waitErr)
	assert.Zero(t, proxy.count())
}

func TestStatusErrorTruncatesBody(t *testing.T) {
	t.Parallel()

	err := &StatusError{StatusCode: 500, Body: strings.Repeat("x", maxErrorBody+10)}
	assert.True(t, strings.HasSuffix(err.Error(), "..."))
	assert.Less(t, len(err.Error()), maxErrorBody+64)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f, err := New(Config{APIKey: "k"}, nil, nil)
	require.NoError(t, err)

	var result proxyResult
	var fetchErr error
	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, &result, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{StatusCode: http.StatusCreated, Body: []byte("body")})
	assert.Equal(t, http.StatusCreated, result.statusCode)
	assert.Equal(t, "body", string(result.body))

	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway, Body: []byte("bad")}, errors.New("boom"))
	assert.Equal(t, http.StatusBadGateway, result.statusCode)
	require.Error(t, fetchErr)
	assert.Equal(t, "boom", fetchErr.Error())
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
