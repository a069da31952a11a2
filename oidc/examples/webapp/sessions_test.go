package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieSessions(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	s := newCookieSessions(true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/proconnect", nil)
	assert.Nil(s.lookup(req))
	store, err := s.session(rec, req)
	require.NoError(err)
	require.NoError(store.Set(ctx, "proconnect.state", "ABC"))

	cookies := rec.Result().Cookies()
	require.Len(cookies, 1)
	assert.Equal(sessionCookie, cookies[0].Name)
	assert.Len(cookies[0].Value, 32)
	assert.True(cookies[0].HttpOnly)
	assert.True(cookies[0].Secure)

	// same browser
	req = httptest.NewRequest(http.MethodGet, "/auth/proconnect/callback", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	again, err := s.session(rec, req)
	require.NoError(err)
	v, err := again.Get(ctx, "proconnect.state")
	require.NoError(err)
	assert.Equal("ABC", v)
	assert.Empty(rec.Result().Cookies())

	// another browser
	other, err := s.session(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)
	v, err = other.Get(ctx, "proconnect.state")
	require.NoError(err)
	assert.Empty(v)
}
