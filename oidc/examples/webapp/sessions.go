// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"net/http"
	"sync"

	"github.com/hashicorp/proconnect/oidc"
	"github.com/hashicorp/proconnect/sdk/id"
)

const sessionCookie = "proconnect_session"

// cookieSessions keeps one in memory session store per browser, keyed by a
// random id in a cookie. Sessions are lost on restart and never expire, so
// stores grows with every new browser; a deployment needs a store with
// expiry, e.g. backed by its own session layer.
type cookieSessions struct {
	mu     sync.Mutex
	stores map[string]*oidc.MemorySessionStore
	secure bool
}

func newCookieSessions(secure bool) *cookieSessions {
	return &cookieSessions{
		stores: map[string]*oidc.MemorySessionStore{},
		secure: secure,
	}
}

// lookup returns the browser's store, or nil when it has none.
func (s *cookieSessions) lookup(req *http.Request) *oidc.MemorySessionStore {
	c, err := req.Cookie(sessionCookie)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stores[c.Value]
}

// session implements callback.SessionFunc, starting a new session when the
// browser has none.
func (s *cookieSessions) session(w http.ResponseWriter, req *http.Request) (oidc.SessionStore, error) {
	if store := s.lookup(req); store != nil {
		return store, nil
	}
	sid, err := id.New()
	if err != nil {
		return nil, err
	}
	store := oidc.NewMemorySessionStore()
	s.mu.Lock()
	s.stores[sid] = store
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}
