package oidc

import (
	"errors"
)

var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrNilParameter      = errors.New("nil parameter")
	ErrInvalidCACert     = errors.New("invalid CA certificate")
	ErrIDGeneratorFailed = errors.New("id generation failed")

	// ErrDiscovery is returned when the provider's discovery document can't
	// be fetched or is missing a required endpoint.
	ErrDiscovery = errors.New("provider discovery failed")

	// ErrTokenExchange is returned when the authorization code can't be
	// exchanged for tokens.
	ErrTokenExchange = errors.New("token exchange failed")

	// ErrUserinfo is returned when the userinfo endpoint request fails.
	ErrUserinfo = errors.New("userinfo request failed")

	// ErrMissingToken is returned when a token required by the next step of
	// the flow is not in the session.
	ErrMissingToken = errors.New("token is missing")

	// ErrClaimsDecode is returned when the userinfo body can't be decoded
	// into Claims.
	ErrClaimsDecode = errors.New("claims decode failed")

	// ErrCSRFMismatch is returned when a callback's state doesn't match the
	// state stored for the session. It is a security violation: never retry
	// it and never show the compared values to the user.
	ErrCSRFMismatch = errors.New("state does not match the stored state")
)
