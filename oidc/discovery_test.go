package oidc

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDiscoveryServer answers discovery requests with body and status and
// counts the requests.
func testDiscoveryServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != WellKnownPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

const testDiscoveryDoc = `{
	"issuer": "https://idp",
	"authorization_endpoint": "https://idp/auth",
	"token_endpoint": "https://idp/token",
	"userinfo_endpoint": "https://idp/userinfo",
	"end_session_endpoint": "https://idp/logout",
	"jwks_uri": "https://idp/certs",
	"acr_values_supported": ["eidas1"]
}`

func TestDiscoveryURL(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.Equal("https://idp/api/v2/.well-known/openid-configuration", DiscoveryURL("https://idp/api/v2"))
	assert.Equal("https://idp/api/v2/.well-known/openid-configuration", DiscoveryURL("https://idp/api/v2/"))
}

func TestDiscover(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("test-provider", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		md, err := Discover(ctx, tp.HTTPClient(), tp.Addr()+"/")
		require.NoError(err)
		assert.Equal(tp.Addr()+TestAuthPath, md.AuthorizationEndpoint)
		assert.Equal(tp.Addr()+TestTokenPath, md.TokenEndpoint)
		assert.Equal(tp.Addr()+TestUserInfoPath, md.UserinfoEndpoint)
		assert.Equal(tp.Addr()+TestLogoutPath, md.EndSessionEndpoint)
		assert.Equal(tp.Addr()+TestCertsPath, md.JWKSURI)
		assert.Equal(1, tp.Calls(WellKnownPath))
	})

	tests := []struct {
		name      string
		status    int
		body      string
		want      *ProviderMetadata
		wantIsErr error
	}{
		{
			name:   "valid-with-extra",
			status: http.StatusOK,
			body:   testDiscoveryDoc,
			want: &ProviderMetadata{
				Issuer:                "https://idp",
				AuthorizationEndpoint: "https://idp/auth",
				TokenEndpoint:         "https://idp/token",
				UserinfoEndpoint:      "https://idp/userinfo",
				EndSessionEndpoint:    "https://idp/logout",
				JWKSURI:               "https://idp/certs",
			},
		},
		{
			name:      "server-error",
			status:    http.StatusInternalServerError,
			body:      `{}`,
			wantIsErr: ErrDiscovery,
		},
		{
			name:      "not-found",
			status:    http.StatusNotFound,
			body:      `not found`,
			wantIsErr: ErrDiscovery,
		},
		{
			name:      "not-json",
			status:    http.StatusOK,
			body:      `<html></html>`,
			wantIsErr: ErrDiscovery,
		},
		{
			name:      "missing-end-session",
			status:    http.StatusOK,
			body:      `{"authorization_endpoint":"https://idp/auth","token_endpoint":"https://idp/token","userinfo_endpoint":"https://idp/userinfo"}`,
			wantIsErr: ErrDiscovery,
		},
		{
			name:      "missing-token-endpoint",
			status:    http.StatusOK,
			body:      `{"authorization_endpoint":"https://idp/auth","userinfo_endpoint":"https://idp/userinfo","end_session_endpoint":"https://idp/logout"}`,
			wantIsErr: ErrDiscovery,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			srv, calls := testDiscoveryServer(t, tt.status, tt.body)
			got, err := Discover(ctx, srv.Client(), srv.URL)
			assert.Equal(int32(1), atomic.LoadInt32(calls))
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.Nil(got)
				assert.ErrorIs(err, tt.wantIsErr)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want.AuthorizationEndpoint, got.AuthorizationEndpoint)
			assert.Equal(tt.want.TokenEndpoint, got.TokenEndpoint)
			assert.Equal(tt.want.UserinfoEndpoint, got.UserinfoEndpoint)
			assert.Equal(tt.want.EndSessionEndpoint, got.EndSessionEndpoint)
			assert.Equal(tt.want.JWKSURI, got.JWKSURI)
			assert.Equal([]interface{}{"eidas1"}, got.Extra["acr_values_supported"])
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv, _ := testDiscoveryServer(t, http.StatusOK, testDiscoveryDoc)
		addr := srv.URL
		srv.Close()
		_, err := Discover(ctx, http.DefaultClient, addr)
		assert.ErrorIs(t, err, ErrDiscovery)
	})
	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			<-release
		}))
		t.Cleanup(srv.Close)
		t.Cleanup(func() { close(release) })
		_, err := Discover(ctx, &http.Client{Timeout: 50 * time.Millisecond}, srv.URL)
		assert.ErrorIs(t, err, ErrDiscovery)
	})
	t.Run("nil-client", func(t *testing.T) {
		_, err := Discover(ctx, nil, "https://idp")
		assert.ErrorIs(t, err, ErrNilParameter)
	})
	t.Run("empty-issuer", func(t *testing.T) {
		_, err := Discover(ctx, http.DefaultClient, "")
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
}

func TestNewDiscoveryCache(t *testing.T) {
	t.Parallel()
	_, err := NewDiscoveryCache(0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	c, err := NewDiscoveryCache(time.Minute, WithNow(nil))
	require.NoError(t, err)
	assert.NotNil(t, c.now)
}

func TestDiscoveryCache_Get(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("ttl", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		srv, calls := testDiscoveryServer(t, http.StatusOK, testDiscoveryDoc)
		now := time.Now()
		c, err := NewDiscoveryCache(time.Minute, WithNow(func() time.Time { return now }))
		require.NoError(err)

		first, err := c.Get(ctx, srv.Client(), srv.URL)
		require.NoError(err)
		second, err := c.Get(ctx, srv.Client(), srv.URL+"/")
		require.NoError(err)
		assert.Same(first, second)
		assert.Equal(int32(1), atomic.LoadInt32(calls))

		now = now.Add(time.Minute + time.Second)
		third, err := c.Get(ctx, srv.Client(), srv.URL)
		require.NoError(err)
		assert.NotSame(first, third)
		assert.Equal(int32(2), atomic.LoadInt32(calls))
	})
	t.Run("invalidate-and-purge", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		srv, calls := testDiscoveryServer(t, http.StatusOK, testDiscoveryDoc)
		c, err := NewDiscoveryCache(time.Hour)
		require.NoError(err)

		_, err = c.Get(ctx, srv.Client(), srv.URL)
		require.NoError(err)
		c.Invalidate(srv.URL + "/")
		_, err = c.Get(ctx, srv.Client(), srv.URL)
		require.NoError(err)
		assert.Equal(int32(2), atomic.LoadInt32(calls))

		c.Purge()
		_, err = c.Get(ctx, srv.Client(), srv.URL)
		require.NoError(err)
		assert.Equal(int32(3), atomic.LoadInt32(calls))
	})
	t.Run("errors-not-cached", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		srv, calls := testDiscoveryServer(t, http.StatusBadGateway, `{}`)
		c, err := NewDiscoveryCache(time.Hour)
		require.NoError(err)
		for i := 0; i < 2; i++ {
			_, err = c.Get(ctx, srv.Client(), srv.URL)
			assert.ErrorIs(err, ErrDiscovery)
		}
		assert.Equal(int32(2), atomic.LoadInt32(calls))
	})
	t.Run("single-flight", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		var calls int32
		started := make(chan struct{})
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				close(started)
			}
			<-release
			_, _ = w.Write([]byte(testDiscoveryDoc))
		}))
		t.Cleanup(srv.Close)
		c, err := NewDiscoveryCache(time.Hour)
		require.NoError(err)

		const n = 10
		var wg sync.WaitGroup
		results := make([]*ProviderMetadata, n)
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = c.Get(ctx, srv.Client(), srv.URL)
			}(i)
		}
		<-started
		close(release)
		wg.Wait()

		assert.Equal(int32(1), atomic.LoadInt32(&calls))
		for i := 0; i < n; i++ {
			require.NoError(errs[i], fmt.Sprintf("caller %d", i))
			assert.Same(results[0], results[i])
		}
	})
	t.Run("waiter-context-canceled", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		started := make(chan struct{})
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			close(started)
			<-release
			_, _ = w.Write([]byte(testDiscoveryDoc))
		}))
		t.Cleanup(srv.Close)
		c, err := NewDiscoveryCache(time.Hour)
		require.NoError(err)

		done := make(chan error, 1)
		go func() {
			_, err := c.Get(ctx, srv.Client(), srv.URL)
			done <- err
		}()
		<-started
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = c.Get(cctx, srv.Client(), srv.URL)
		assert.ErrorIs(err, ErrDiscovery)
		assert.ErrorIs(err, context.Canceled)
		close(release)
		require.NoError(<-done)
	})
	t.Run("fetcher-context-canceled", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		started := make(chan struct{})
		release := make(chan struct{})
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				close(started)
			}
			<-release
			_, _ = w.Write([]byte(testDiscoveryDoc))
		}))
		t.Cleanup(srv.Close)
		c, err := NewDiscoveryCache(time.Hour)
		require.NoError(err)

		fctx, cancel := context.WithCancel(ctx)
		fetcher := make(chan error, 1)
		go func() {
			_, err := c.Get(fctx, srv.Client(), srv.URL)
			fetcher <- err
		}()
		<-started

		type result struct {
			md  *ProviderMetadata
			err error
		}
		waiter := make(chan result, 1)
		go func() {
			md, err := c.Get(ctx, srv.Client(), srv.URL)
			waiter <- result{md, err}
		}()

		cancel()
		err = <-fetcher
		assert.ErrorIs(err, ErrDiscovery)
		assert.ErrorIs(err, context.Canceled)

		close(release)
		got := <-waiter
		require.NoError(got.err)
		assert.Equal("https://idp/auth", got.md.AuthorizationEndpoint)
		assert.Equal(int32(1), atomic.LoadInt32(&calls))
	})
}
