package jwt

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4/jwt"
	sdkHttp "github.com/hashicorp/proconnect/sdk/http"
)

// KeySet represents a set of keys that can be used to verify the signatures of JWTs.
// A KeySet is expected to be backed by a set of local or remote keys.
type KeySet interface {

	// VerifySignature parses the given JWT, verifies its signature, and returns the claims in its payload.
	VerifySignature(ctx context.Context, token string) (claims map[string]interface{}, err error)
}

// JSONWebKeySet verifies JWT signatures using keys obtained from a JWKS URL.
type JSONWebKeySet struct {
	remoteJWKS *oidc.RemoteKeySet
}

// StaticKeySet verifies JWT signatures using local PEM-encoded public keys.
type StaticKeySet struct {
	publicKeys []interface{}
	algs       []Alg
}

// NewJSONWebKeySet returns a KeySet that verifies JWT signatures using keys from the JSON Web
// Key Set (JWKS) at the given jwksURL. The client used to obtain the remote JWKS will verify
// server certificates using the root certificates provided by jwksCAPEM.
//
// The keys are fetched lazily and refreshed when a token names an unknown
// key. ctx must outlive the KeySet.
//
// Supported options:
//
//	WithHTTPClient
func NewJSONWebKeySet(ctx context.Context, jwksURL string, jwksCAPEM string, opt ...Option) (KeySet, error) {
	if jwksURL == "" {
		return nil, fmt.Errorf("jwksURL must not be empty: %w", ErrInvalidParameter)
	}
	opts := getKeySetOpts(opt...)

	client := opts.withHTTPClient
	if client == nil {
		var err error
		if client, err = sdkHttp.NewClient(jwksCAPEM, 0); err != nil {
			return nil, err
		}
	}
	caCtx := sdkHttp.OidcClientContext(ctx, client)

	return JSONWebKeySet{
		remoteJWKS: oidc.NewRemoteKeySet(caCtx, jwksURL),
	}, nil
}

// VerifySignature parses the given JWT, verifies its signature using JWKS keys, and returns
// the claims in its payload. The given JWT must be of the JWS compact serialization form.
func (ks JSONWebKeySet) VerifySignature(ctx context.Context, token string) (map[string]interface{}, error) {
	payload, err := ks.remoteJWKS.VerifySignature(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	// Unmarshal payload into a set of all received claims
	allClaims := map[string]interface{}{}
	if err := json.Unmarshal(payload, &allClaims); err != nil {
		return nil, err
	}

	return allClaims, nil
}

// NewStaticKeySet returns a KeySet that verifies JWT signatures using PEM-encoded public keys.
// The given publicKeys must be of PEM-encoded x509 certificate or PKIX public key forms.
//
// Supported options:
//
//	WithSupportedAlgorithms
func NewStaticKeySet(publicKeys []string, opt ...Option) (KeySet, error) {
	if len(publicKeys) == 0 {
		return nil, fmt.Errorf("publicKeys must not be empty: %w", ErrInvalidParameter)
	}
	opts := getKeySetOpts(opt...)
	if err := SupportedSigningAlgorithm(opts.withSupportedAlgorithms...); err != nil {
		return nil, err
	}
	parsedPublicKeys := make([]interface{}, 0, len(publicKeys))
	for _, k := range publicKeys {
		key, err := parsePublicKeyPEM([]byte(k))
		if err != nil {
			return nil, err
		}
		parsedPublicKeys = append(parsedPublicKeys, key)
	}

	return StaticKeySet{
		publicKeys: parsedPublicKeys,
		algs:       opts.withSupportedAlgorithms,
	}, nil
}

// VerifySignature parses the given JWT, verifies its signature using local PEM-encoded public keys,
// and returns the claims in its payload. The given JWT must be of the JWS compact serialization form.
func (ks StaticKeySet) VerifySignature(_ context.Context, token string) (map[string]interface{}, error) {
	parsedJWT, err := jwt.ParseSigned(token, joseAlgorithms(ks.algs))
	if err != nil {
		return nil, err
	}

	var valid bool
	allClaims := map[string]interface{}{}
	for _, key := range ks.publicKeys {
		if err := parsedJWT.Claims(key, &allClaims); err == nil {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("no known key successfully validated the token signature: %w", ErrInvalidSignature)
	}

	return allClaims, nil
}

// parsePublicKeyPEM is used to parse RSA, ECDSA and Ed25519 public keys from PEMs.
func parsePublicKeyPEM(data []byte) (interface{}, error) {
	block, _ := pem.Decode(data)
	if block != nil {
		var rawKey interface{}
		var err error
		if rawKey, err = x509.ParsePKIXPublicKey(block.Bytes); err != nil {
			if cert, err := x509.ParseCertificate(block.Bytes); err == nil {
				rawKey = cert.PublicKey
			} else {
				return nil, err
			}
		}

		switch k := rawKey.(type) {
		case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
			return k, nil
		}
	}

	return nil, errors.New("data does not contain any valid RSA, ECDSA or Ed25519 public keys")
}
