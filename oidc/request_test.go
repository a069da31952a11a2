// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func testRequestConfig(t *testing.T) *Config {
	t.Helper()
	c, err := NewConfig("https://idp", "c1", "secret", "https://app/cb", false,
		WithScope("openid email"),
		WithPostLogoutRedirectURL("https://app/bye"),
	)
	require.NoError(t, err)
	return c
}

func TestAuthURL(t *testing.T) {
	t.Parallel()
	c := testRequestConfig(t)
	md := &ProviderMetadata{AuthorizationEndpoint: "https://idp/auth"}

	tests := []struct {
		name      string
		md        *ProviderMetadata
		c         *Config
		state     string
		nonce     string
		opt       []Option
		want      string
		wantIsErr error
	}{
		{
			name:  "exact",
			md:    md,
			c:     c,
			state: "ABC",
			nonce: "XYZ",
			want:  "https://idp/auth?response_type=code&client_id=c1&redirect_uri=https%3A%2F%2Fapp%2Fcb&scope=openid+email&state=ABC&nonce=XYZ",
		},
		{
			name:  "with-acr-and-locales",
			md:    md,
			c:     c,
			state: "ABC",
			nonce: "XYZ",
			opt:   []Option{WithACRValues("eidas1"), WithUILocales(language.French, language.English)},
			want:  "https://idp/auth?response_type=code&client_id=c1&redirect_uri=https%3A%2F%2Fapp%2Fcb&scope=openid+email&state=ABC&nonce=XYZ&acr_values=eidas1&ui_locales=fr+en",
		},
		{
			name:  "endpoint-with-query",
			md:    &ProviderMetadata{AuthorizationEndpoint: "https://idp/auth?tenant=agents"},
			c:     c,
			state: "ABC",
			nonce: "XYZ",
			want:  "https://idp/auth?tenant=agents&response_type=code&client_id=c1&redirect_uri=https%3A%2F%2Fapp%2Fcb&scope=openid+email&state=ABC&nonce=XYZ",
		},
		{
			name:      "nil-metadata",
			c:         c,
			state:     "ABC",
			nonce:     "XYZ",
			wantIsErr: ErrNilParameter,
		},
		{
			name:      "nil-config",
			md:        md,
			state:     "ABC",
			nonce:     "XYZ",
			wantIsErr: ErrNilParameter,
		},
		{
			name:      "missing-endpoint",
			md:        &ProviderMetadata{},
			c:         c,
			state:     "ABC",
			nonce:     "XYZ",
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "missing-state",
			md:        md,
			c:         c,
			nonce:     "XYZ",
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "missing-nonce",
			md:        md,
			c:         c,
			state:     "ABC",
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "state-equals-nonce",
			md:        md,
			c:         c,
			state:     "ABC",
			nonce:     "ABC",
			wantIsErr: ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := AuthURL(tt.md, tt.c, tt.state, tt.nonce, tt.opt...)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				assert.Empty(got)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestAuthURL_RoundTrip(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	c, err := NewConfig("https://idp", "client id/with&odd=chars", "secret", "https://app/cb?x=1&y=2", false)
	require.NoError(err)
	got, err := AuthURL(&ProviderMetadata{AuthorizationEndpoint: "https://idp/auth"}, c, "s t", "n+o")
	require.NoError(err)
	u, err := url.Parse(got)
	require.NoError(err)
	q := u.Query()
	assert.Equal("client id/with&odd=chars", q.Get("client_id"))
	assert.Equal("https://app/cb?x=1&y=2", q.Get("redirect_uri"))
	assert.Equal(DefaultScope, q.Get("scope"))
	assert.Equal("s t", q.Get("state"))
	assert.Equal("n+o", q.Get("nonce"))
}

func TestLogoutURL(t *testing.T) {
	t.Parallel()
	c := testRequestConfig(t)
	md := &ProviderMetadata{EndSessionEndpoint: "https://idp/logout"}

	t.Run("order", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		got, err := LogoutURL(md, c, "I.D.T", "ABC")
		require.NoError(err)
		assert.Equal("https://idp/logout?id_token_hint=I.D.T&state=ABC&post_logout_redirect_uri=https%3A%2F%2Fapp%2Fbye", got)
	})
	t.Run("no-end-session-endpoint", func(t *testing.T) {
		_, err := LogoutURL(&ProviderMetadata{}, c, "I", "ABC")
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
	t.Run("nil-metadata", func(t *testing.T) {
		_, err := LogoutURL(nil, c, "I", "ABC")
		assert.ErrorIs(t, err, ErrNilParameter)
	})
	t.Run("nil-config", func(t *testing.T) {
		_, err := LogoutURL(md, nil, "I", "ABC")
		assert.ErrorIs(t, err, ErrNilParameter)
	})
}
