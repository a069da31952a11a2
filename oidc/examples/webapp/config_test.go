package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
listen: localhost:4000
client_id: yaml-client
client_secret: yaml-secret
proconnect_domain: https://fca.integ01.dev-agentconnect.fr/api/v2
redirect_uri: http://localhost:4000/auth/proconnect/callback
post_logout_redirect_uri: http://localhost:4000/
scope: openid email
verify_signature: false
discovery_ttl: 2m
`

func testWriteFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadConfig(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		got, err := loadConfig(testWriteFile(t, "config.yaml", testConfigYAML))
		require.NoError(err)
		assert.Equal(&webappConfig{
			Listen:                "localhost:4000",
			Mount:                 "/auth/proconnect",
			ClientID:              "yaml-client",
			ClientSecret:          "yaml-secret",
			ProconnectDomain:      "https://fca.integ01.dev-agentconnect.fr/api/v2",
			RedirectURI:           "http://localhost:4000/auth/proconnect/callback",
			PostLogoutRedirectURI: "http://localhost:4000/",
			Scope:                 "openid email",
			VerifySignature:       false,
			DiscoveryTTL:          2 * time.Minute,
		}, got)
	})
	t.Run("env-overrides-yaml", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		t.Setenv(envClientID, "env-client")
		t.Setenv(envMount, "/login")
		t.Setenv(envVerifySignature, "true")
		t.Setenv(envDiscoveryTTL, "30s")
		got, err := loadConfig(testWriteFile(t, "config.yaml", testConfigYAML))
		require.NoError(err)
		assert.Equal("env-client", got.ClientID)
		assert.Equal("yaml-secret", got.ClientSecret)
		assert.Equal("/login", got.Mount)
		assert.True(got.VerifySignature)
		assert.Equal(30*time.Second, got.DiscoveryTTL)
	})
	t.Run("env-only", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		t.Setenv(envClientID, "c")
		t.Setenv(envClientSecret, "s")
		t.Setenv(envDomain, "https://idp")
		t.Setenv(envRedirectURI, "http://localhost:3000/auth/proconnect/callback")
		got, err := loadConfig("")
		require.NoError(err)
		assert.Equal("localhost:3000", got.Listen)
		assert.True(got.VerifySignature)
		assert.Equal(10*time.Minute, got.DiscoveryTTL)
	})
	t.Run("missing-required", func(t *testing.T) {
		assert := assert.New(t)
		t.Setenv(envVerifySignature, "maybe")
		_, err := loadConfig("")
		assert.Error(err)
		assert.Contains(err.Error(), "'ClientID' failed on the 'required' tag")
		assert.Contains(err.Error(), "'ClientSecret' failed on the 'required' tag")
		assert.Contains(err.Error(), envVerifySignature)
	})
	t.Run("bad-mount", func(t *testing.T) {
		t.Setenv(envMount, "auth")
		_, err := loadConfig(testWriteFile(t, "config.yaml", testConfigYAML))
		assert.ErrorContains(t, err, "'Mount' failed on the 'startswith' tag")
	})
	t.Run("bad-yaml", func(t *testing.T) {
		_, err := loadConfig(testWriteFile(t, "config.yaml", "listen: [unterminated"))
		assert.Error(t, err)
	})
	t.Run("missing-file", func(t *testing.T) {
		_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestLoadEnv(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	const key = "PROCONNECT_TEST_LOAD_ENV"
	t.Setenv(key, "")
	require.NoError(os.Unsetenv(key))
	p := testWriteFile(t, ".env", key+"=from-file\n")
	require.NoError(loadEnv(filepath.Join(t.TempDir(), "missing.env"), p))
	assert.Equal("from-file", os.Getenv(key))
}
