package oidc

import (
	"context"
	"crypto/subtle"
	"fmt"
)

// IssueState generates a new state, stores it in the session and returns it.
// The state is stored before it's returned so a redirect is never built with
// a value the session doesn't know about.
func (s *Session) IssueState(ctx context.Context) (string, error) {
	const op = "Session.IssueState"
	v, err := s.issue(ctx, s.keys.State)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// IssueNonce generates a new nonce, stores it in the session and returns it.
func (s *Session) IssueNonce(ctx context.Context) (string, error) {
	const op = "Session.IssueNonce"
	v, err := s.issue(ctx, s.keys.Nonce)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

func (s *Session) issue(ctx context.Context, key string) (string, error) {
	v, err := NewID()
	if err != nil {
		return "", err
	}
	if err := s.set(ctx, key, v); err != nil {
		return "", err
	}
	return v, nil
}

// VerifyState compares received with the state stored in the session. A
// missing stored state is a mismatch. The returned error never includes
// either value.
func (s *Session) VerifyState(ctx context.Context, received string) error {
	const op = "Session.VerifyState"
	stored, err := s.State(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(received)) != 1 {
		return fmt.Errorf("%s: callback state rejected: %w", op, ErrCSRFMismatch)
	}
	return nil
}
