package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riveraxe/reactcore/pkg/rterr"
)

func newGetRequest(t *testing.T, url string) *http.Request {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	return req
}

func TestDoSetsDefaultHeadersWithoutOverridingCallerSet(t *testing.T) {
	var gotAuth, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Headers: map[string]string{"Authorization": "Bearer default", "Accept": "application/json"}})

	req := newGetRequest(t, srv.URL)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "Bearer default", gotAuth)
	assert.Equal(t, "text/event-stream", gotAccept, "a header the caller already set must not be overridden")
}

func TestDoWithoutRateLimitNeverBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})

	start := time.Now()
	for i := 0; i < 5; i++ {
		resp, err := c.Do(context.Background(), newGetRequest(t, srv.URL))
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDoThrottlesToConfiguredRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// Burst of one at 5/sec: the first call passes immediately, the second
	// must wait roughly 200ms for a new token.
	c := New(Config{BaseURL: srv.URL, RatePerSecond: 5})

	start := time.Now()
	resp, err := c.Do(context.Background(), newGetRequest(t, srv.URL))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = c.Do(context.Background(), newGetRequest(t, srv.URL))
	require.NoError(t, err)
	resp.Body.Close()

	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestDoReturnsTimeoutErrorWhenContextExpiresDuringWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, RatePerSecond: 1})

	// Drain the single burst token.
	resp, err := c.Do(context.Background(), newGetRequest(t, srv.URL))
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err = c.Do(ctx, newGetRequest(t, srv.URL))
	assert.Error(t, err)
	assert.True(t, rterr.Is(err, rterr.Timeout))
}

func TestBaseURLReturnsConfiguredValue(t *testing.T) {
	c := New(Config{BaseURL: "https://example.test"})
	assert.Equal(t, "https://example.test", c.BaseURL())
}
