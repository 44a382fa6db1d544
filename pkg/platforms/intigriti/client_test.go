package intigriti

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/config"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/logger"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/programs", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"maxCount":2,"records":[
			{"id":"p-1","handle":"acme","name":"Acme","status":{"id":3,"value":"Open"},"maxBounty":{"value":5000,"currency":"EUR"}},
			{"id":"p-2","handle":"gone","name":"Gone","status":{"id":4,"value":"Closed"},"maxBounty":{"value":0,"currency":"EUR"}}
		]}`)
	})
	mux.HandleFunc("/programs/p-1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"p-1","handle":"acme","name":"Acme","domains":{"id":"d","content":[
			{"id":"1","type":{"id":1,"value":"Url"},"endpoint":"app.acme.com","tier":{"id":1,"value":"Tier 1"}},
			{"id":"2","type":{"id":7,"value":"Wildcard"},"endpoint":"*.acme.com / *.acme.<tld>","tier":{"id":2,"value":"Tier 2"}},
			{"id":"3","type":{"id":1,"value":"Url"},"endpoint":"status.acme.com","tier":{"id":5,"value":"Out Of Scope"}}
		]}}`)
	})
	mux.HandleFunc("/programs/p-2", func(w http.ResponseWriter, r *http.Request) {
		t.Error("closed program should not be fetched")
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer pat" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(baseURL, token string) *Client {
	return NewClient(config.PlatformConfig{APIToken: token, BaseURL: baseURL, Timeout: 5 * time.Second}, logger.NewNop())
}

func TestFetchPrograms(t *testing.T) {
	srv := newServer(t)
	client := newClient(srv.URL, "pat")

	assert.Equal(t, "intigriti", client.Name())
	require.True(t, client.ValidAccess(context.Background()))

	programs, err := client.FetchPrograms(context.Background())
	require.NoError(t, err)
	require.Len(t, programs, 1)

	assert.Equal(t, scope.RawProgram{
		Slug:   "acme",
		Name:   "Acme",
		Bounty: true,
		Scopes: []scope.RawScope{
			{Value: "app.acme.com", Type: scope.AssetTypeWeb, IsInScope: true},
			{Value: "*.acme.com / *.acme.<tld>", Type: scope.AssetTypeWeb, IsInScope: true},
			{Value: "status.acme.com", Type: scope.AssetTypeWeb, IsInScope: false},
		},
	}, programs[0])
}

func TestValidAccessRejected(t *testing.T) {
	srv := newServer(t)
	assert.False(t, newClient(srv.URL, "expired").ValidAccess(context.Background()))
}
