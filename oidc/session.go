package oidc

import (
	"context"
	"fmt"
	"sync"
)

// SessionStore is the host's per browser session key/value storage. It must
// survive across the redirect to the provider and back, and provide
// read-your-writes consistency for one session.
//
// Get returns an empty string and a nil error for a key that was never set.
type SessionStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// SessionKeys are the namespaced keys a Flow reads and writes.
type SessionKeys struct {
	State        string
	Nonce        string
	AccessToken  string
	IDToken      string
	RefreshToken string
}

// NewSessionKeys returns the keys for namespace, e.g. "proconnect.state".
func NewSessionKeys(namespace string) SessionKeys {
	k := func(name string) string { return namespace + "." + name }
	return SessionKeys{
		State:        k("state"),
		Nonce:        k("nonce"),
		AccessToken:  k("access_token"),
		IDToken:      k("id_token"),
		RefreshToken: k("refresh_token"),
	}
}

// Session binds a SessionStore to the keys of one namespace.
type Session struct {
	store SessionStore
	keys  SessionKeys
}

// NewSession creates a Session over store using namespace for its keys.
func NewSession(store SessionStore, namespace string) (*Session, error) {
	const op = "NewSession"
	if store == nil {
		return nil, fmt.Errorf("%s: session store is nil: %w", op, ErrNilParameter)
	}
	if namespace == "" {
		return nil, fmt.Errorf("%s: namespace is empty: %w", op, ErrInvalidParameter)
	}
	return &Session{store: store, keys: NewSessionKeys(namespace)}, nil
}

// Keys returns the session's keys.
func (s *Session) Keys() SessionKeys { return s.keys }

func (s *Session) get(ctx context.Context, key string) (string, error) {
	v, err := s.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("unable to read %s from session: %w", key, err)
	}
	return v, nil
}

func (s *Session) set(ctx context.Context, key, value string) error {
	if err := s.store.Set(ctx, key, value); err != nil {
		return fmt.Errorf("unable to write %s to session: %w", key, err)
	}
	return nil
}

// State returns the stored state, or "" when none was issued.
func (s *Session) State(ctx context.Context) (string, error) {
	return s.get(ctx, s.keys.State)
}

// Nonce returns the stored nonce, or "" when none was issued.
func (s *Session) Nonce(ctx context.Context) (string, error) {
	return s.get(ctx, s.keys.Nonce)
}

// AccessToken returns the stored access token.
func (s *Session) AccessToken(ctx context.Context) (AccessToken, error) {
	v, err := s.get(ctx, s.keys.AccessToken)
	return AccessToken(v), err
}

// IDToken returns the stored id token.
func (s *Session) IDToken(ctx context.Context) (IDToken, error) {
	v, err := s.get(ctx, s.keys.IDToken)
	return IDToken(v), err
}

// RefreshToken returns the stored refresh token.
func (s *Session) RefreshToken(ctx context.Context) (RefreshToken, error) {
	v, err := s.get(ctx, s.keys.RefreshToken)
	return RefreshToken(v), err
}

// StoreTokens writes the three tokens of t. A token the provider omitted is
// written as "" so nothing from an earlier login survives.
func (s *Session) StoreTokens(ctx context.Context, t *TokenResponse) error {
	const op = "Session.StoreTokens"
	if t == nil {
		return fmt.Errorf("%s: token response is nil: %w", op, ErrNilParameter)
	}
	for _, kv := range [][2]string{
		{s.keys.AccessToken, string(t.AccessToken)},
		{s.keys.IDToken, string(t.IDToken)},
		{s.keys.RefreshToken, string(t.RefreshToken)},
	} {
		if err := s.set(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// MemorySessionStore is a SessionStore backed by a map. It is concurrently
// safe and intended for tests and single process demos.
type MemorySessionStore struct {
	mu sync.RWMutex
	m  map[string]string
}

// ensure that MemorySessionStore implements the SessionStore interface
var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an empty MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{m: map[string]string{}}
}

// Get implements SessionStore.
func (s *MemorySessionStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[key], nil
}

// Set implements SessionStore.
func (s *MemorySessionStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

// Snapshot returns a copy of every stored key and value.
func (s *MemorySessionStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]string, len(s.m))
	for k, v := range s.m {
		cp[k] = v
	}
	return cp
}
