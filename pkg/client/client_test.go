package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoginServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/user/loginUser", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tester", body["username"])
		w.Header().Set("session-header", "abc123")
		json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{"id": 42, "applicationId": 7, "firstName": "Test"},
		})
	})
	if handler != nil {
		mux.HandleFunc("/", handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func loggedInClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Config{URL: srv.URL, Username: "tester", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, c.Login(context.Background()))
	return c
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Username: "u", Password: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no URL provided")

	_, err = New(Config{URL: "https://x.example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no username or password")
}

func TestNewNormalizesURL(t *testing.T) {
	c, err := New(Config{URL: "example.smartabase.com/site/", Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.smartabase.com/site", c.URL())
}

func TestLoginStoresSession(t *testing.T) {
	srv := newLoginServer(t, nil)
	c := loggedInClient(t, srv)

	info := c.LoginInfo()
	require.NotNil(t, info)
	assert.Equal(t, "abc123", info.SessionHeader)
	assert.Equal(t, int64(42), info.UserID)
	assert.Equal(t, int64(7), info.ApplicationID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/user/loginUser", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(Config{URL: srv.URL, Username: "tester", Password: "bad"})
	require.NoError(t, err)
	err = c.Login(context.Background())
	require.Error(t, err)
	assert.True(t, IsAMSError(err))
	assert.Contains(t, err.Error(), "Login failed")
}

func TestFetchSendsSessionAndDecodes(t *testing.T) {
	srv := newLoginServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc123", r.Header.Get("session-header"))
		cookie, err := r.Cookie("JSESSIONID")
		require.NoError(t, err)
		assert.Equal(t, "abc123", cookie.Value)
		assert.Contains(t, r.URL.RawQuery, "informat=json")
		json.NewEncoder(w).Encode(map[string]any{"state": "SUCCESS"})
	})
	c := loggedInClient(t, srv)

	got, err := c.Fetch(context.Background(), http.MethodPost, "eventsimport", map[string]any{"x": 1})
	require.NoError(t, err)
	m, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "SUCCESS", m["state"])
}

func TestFetchEmptyBodyIsNil(t *testing.T) {
	srv := newLoginServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	c := loggedInClient(t, srv)

	got, err := c.Fetch(context.Background(), http.MethodPost, "userdefineddatabase/delete", 123)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFetchCachesIdenticalRequests(t *testing.T) {
	var calls atomic.Int64
	srv := newLoginServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"n": calls.Load()})
	})
	c := loggedInClient(t, srv)
	ctx := context.Background()

	first, err := c.Fetch(ctx, http.MethodPost, "usersearch", map[string]any{"q": "a"})
	require.NoError(t, err)
	second, err := c.Fetch(ctx, http.MethodPost, "usersearch", map[string]any{"q": "a"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), calls.Load())

	// A different payload misses the cache.
	_, err = c.Fetch(ctx, http.MethodPost, "usersearch", map[string]any{"q": "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())

	// WithoutCache always hits the server.
	_, err = c.Fetch(ctx, http.MethodPost, "usersearch", map[string]any{"q": "a"}, WithoutCache())
	require.NoError(t, err)
	assert.Equal(t, int64(3), calls.Load())
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := newLoginServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})
	c := loggedInClient(t, srv)

	got, err := c.Fetch(context.Background(), http.MethodPost, "synchronise", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), calls.Load())
	assert.NotNil(t, got)
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int64
	srv := newLoginServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	c := loggedInClient(t, srv)

	_, err := c.Fetch(context.Background(), http.MethodPost, "nosuch", map[string]any{})
	require.Error(t, err)
	assert.True(t, IsAMSError(err))
	assert.Equal(t, int64(1), calls.Load())
}

func TestFactoryMemoizesByURLAndUser(t *testing.T) {
	var logins atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/user/loginUser", func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		w.Header().Set("session-header", "s")
		json.NewEncoder(w).Encode(map[string]any{"user": map[string]any{"id": 1}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := NewFactory()
	ctx := context.Background()
	cfg := Config{URL: srv.URL, Username: "u", Password: "p"}

	a, err := f.Get(ctx, cfg)
	require.NoError(t, err)
	b, err := f.Get(ctx, cfg)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, int64(1), logins.Load())

	f.Forget(cfg.URL, cfg.Username)
	_, err = f.Get(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(2), logins.Load())
}

func TestAMSErrorMessage(t *testing.T) {
	err := NewError("no results found for your database entry request")
	assert.Equal(t,
		"no results found for your database entry request. Please check inputs or contact your site administrator.",
		err.Error())
}
