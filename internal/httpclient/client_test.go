package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/logger"
)

type payload struct {
	Name string `json:"name"`
}

func newTestClient(auth Authenticator) *Client {
	return New(Config{Timeout: 5 * time.Second, MaxRetries: 2}, auth, logger.NewNop())
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Contains(t, r.Header.Get("User-Agent"), "bountywatch/")
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{"name":"acme"}`))
	}))
	defer srv.Close()

	var out payload
	err := newTestClient(BearerToken("secret")).GetJSON(context.Background(), srv.URL, &out)
	require.NoError(t, err)
	assert.Equal(t, "acme", out.Name)
}

func TestBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "hacker", user)
		assert.Equal(t, "token", pass)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	var out payload
	require.NoError(t, newTestClient(BasicAuth("hacker", "token")).GetJSON(context.Background(), srv.URL, &out))
}

func TestGetJSONUnauthorized(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad token", code)
		}))

		var out payload
		err := newTestClient(nil).GetJSON(context.Background(), srv.URL, &out)
		srv.Close()

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnauthorized)

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, code, statusErr.StatusCode)
	}
}

func TestGetJSONRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0.05")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"name":"after retry"}`))
	}))
	defer srv.Close()

	client := newTestClient(nil)
	var out payload
	require.NoError(t, client.GetJSON(context.Background(), srv.URL, &out))

	assert.Equal(t, "after retry", out.Name)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, client.Limiter().GetStats().Pauses)
}

func TestGetJSONGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var out payload
	err := newTestClient(nil).GetJSON(context.Background(), srv.URL, &out)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSONNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	var out payload
	err := newTestClient(nil).GetJSON(context.Background(), srv.URL, &out)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetJSONBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	var out payload
	err := newTestClient(nil).GetJSON(context.Background(), srv.URL, &out)
	assert.ErrorContains(t, err, "failed to decode")
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", defaultRetryAfter},
		{"2", 2 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{"-3", 0},
		{"86400", maxRetryAfter},
		{"soon", defaultRetryAfter},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, retryAfter(tt.header))
		})
	}
}
