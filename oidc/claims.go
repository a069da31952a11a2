package oidc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/proconnect/jwt"
)

// Claims are the identity claims decoded from a userinfo response. Raw holds
// every claim, including the named ones.
type Claims struct {
	Subject     string
	Email       string
	GivenName   string
	UsualName   string
	PhoneNumber string

	Raw map[string]interface{}
}

// DecodeClaims decodes a userinfo body into Claims.
//
// With verifySignature set, raw must be a compact JWS whose signature
// verifies against keySet. Without it, the JWS payload is read without any
// signature check, and a plain JSON object body is accepted too; callers
// then rely on having fetched raw over TLS directly from the provider.
//
// A malformed body or a missing sub claim returns ErrClaimsDecode.
func DecodeClaims(ctx context.Context, raw []byte, verifySignature bool, keySet jwt.KeySet) (*Claims, error) {
	const op = "DecodeClaims"
	body := bytes.TrimSpace(raw)
	if len(body) == 0 {
		return nil, fmt.Errorf("%s: userinfo body is empty: %w", op, ErrClaimsDecode)
	}

	var all map[string]interface{}
	switch {
	case verifySignature:
		if keySet == nil {
			return nil, fmt.Errorf("%s: signature verification requires a key set: %w", op, ErrNilParameter)
		}
		var err error
		all, err = keySet.VerifySignature(ctx, string(body))
		if err != nil {
			return nil, fmt.Errorf("%s: unable to verify userinfo signature: %w: %w", op, ErrClaimsDecode, err)
		}
	case body[0] == '{':
		if err := json.Unmarshal(body, &all); err != nil {
			return nil, fmt.Errorf("%s: unable to parse userinfo json: %w: %w", op, ErrClaimsDecode, err)
		}
	default:
		tok, err := josejwt.ParseSigned(string(body), joseSigningAlgorithms())
		if err != nil {
			return nil, fmt.Errorf("%s: unable to parse userinfo jwt: %w: %w", op, ErrClaimsDecode, err)
		}
		if err := tok.UnsafeClaimsWithoutVerification(&all); err != nil {
			return nil, fmt.Errorf("%s: unable to read userinfo jwt claims: %w: %w", op, ErrClaimsDecode, err)
		}
	}
	return newClaims(all)
}

func newClaims(all map[string]interface{}) (*Claims, error) {
	const op = "newClaims"
	if all == nil {
		return nil, fmt.Errorf("%s: no claims: %w", op, ErrClaimsDecode)
	}
	c := &Claims{Raw: all}
	fields := []struct {
		name string
		dst  *string
	}{
		{"sub", &c.Subject},
		{"email", &c.Email},
		{"given_name", &c.GivenName},
		{"usual_name", &c.UsualName},
		{"phone_number", &c.PhoneNumber},
	}
	for _, f := range fields {
		v, ok := all[f.name]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s: claim %s is not a string: %w", op, f.name, ErrClaimsDecode)
		}
		*f.dst = s
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%s: sub claim is missing: %w", op, ErrClaimsDecode)
	}
	return c, nil
}

func joseSigningAlgorithms() []jose.SignatureAlgorithm {
	algs := jwt.DefaultSigningAlgorithms()
	out := make([]jose.SignatureAlgorithm, 0, len(algs))
	for _, a := range algs {
		out = append(out, jose.SignatureAlgorithm(a))
	}
	return out
}
