package hackerone

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
	var srv *httptest.Server

	mux.HandleFunc("/hackers/programs", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "hacker" || pass != "token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("page[number]") == "2" {
			fmt.Fprint(w, `{"data":[{"id":"2","type":"program","attributes":{"handle":"globex","name":"Globex","submission_state":"open","offers_bounties":false}},
				{"id":"3","type":"program","attributes":{"handle":"closed","name":"Closed","submission_state":"disabled"}}],"links":{}}`)
			return
		}
		fmt.Fprintf(w, `{"data":[{"id":"1","type":"program","attributes":{"handle":"acme","name":"Acme","submission_state":"open","offers_bounties":true}}],
			"links":{"next":"%s/hackers/programs?page%%5Bnumber%%5D=2"}}`, srv.URL)
	})
	mux.HandleFunc("/hackers/programs/acme/structured_scopes", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[
			{"id":"10","type":"structured-scope","attributes":{"asset_type":"WILDCARD","asset_identifier":"*.acme.com","eligible_for_submission":true}},
			{"id":"11","type":"structured-scope","attributes":{"asset_type":"GOOGLE_PLAY_APP_ID","asset_identifier":"com.acme.app","eligible_for_submission":true}},
			{"id":"12","type":"structured-scope","attributes":{"asset_type":"URL","asset_identifier":"blog.acme.com","eligible_for_submission":false}}
		],"links":{}}`)
	})
	mux.HandleFunc("/hackers/programs/globex/structured_scopes", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[],"links":{}}`)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(baseURL, token string) *Client {
	return NewClient(config.PlatformConfig{
		Username: "hacker",
		APIToken: token,
		BaseURL:  baseURL,
		Timeout:  5 * time.Second,
	}, logger.NewNop())
}

func TestFetchPrograms(t *testing.T) {
	srv := newServer(t)
	client := newClient(srv.URL, "token")

	assert.Equal(t, "hackerone", client.Name())
	require.True(t, client.ValidAccess(context.Background()))

	programs, err := client.FetchPrograms(context.Background())
	require.NoError(t, err)
	require.Len(t, programs, 2)

	acme := programs[0]
	assert.Equal(t, "acme", acme.Slug)
	assert.Equal(t, "Acme", acme.Name)
	assert.True(t, acme.Bounty)
	assert.Equal(t, []scope.RawScope{
		{Value: "*.acme.com", Type: scope.AssetTypeWeb, IsInScope: true},
		{Value: "com.acme.app", Type: scope.AssetTypeMobile, IsInScope: true},
		{Value: "blog.acme.com", Type: scope.AssetTypeWeb, IsInScope: false},
	}, acme.Scopes)

	assert.Equal(t, "globex", programs[1].Slug)
	assert.False(t, programs[1].Bounty)
	assert.Empty(t, programs[1].Scopes)
}

func TestValidAccessRejected(t *testing.T) {
	srv := newServer(t)
	assert.False(t, newClient(srv.URL, "wrong").ValidAccess(context.Background()))
}

func TestFetchProgramsScopeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/hackers/programs" {
			fmt.Fprint(w, `{"data":[{"id":"1","attributes":{"handle":"acme","submission_state":"open"}}],"links":{}}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	programs, err := newClient(srv.URL, "token").FetchPrograms(context.Background())
	assert.Error(t, err)
	assert.Nil(t, programs)
}
