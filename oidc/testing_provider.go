package oidc

import (
	"bytes"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/proconnect/oidc/internal/strutils"
	"github.com/stretchr/testify/require"
)

// Paths served by a TestProvider.
const (
	TestAuthPath     = "/auth"
	TestTokenPath    = "/token"
	TestUserInfoPath = "/userinfo"
	TestCertsPath    = "/certs"
	TestLogoutPath   = "/logout"
)

const testProviderKeyID = "test-provider-key"

// TestProvider is local server that supports test provider capabilities which
// make writing tests much easier. It serves discovery, authorization, token,
// userinfo (as an ES256 signed JWT), JWKS and end session endpoints and
// counts every request by path.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	jwks *jose.JSONWebKeySet

	mu                  sync.Mutex
	clientID            string
	clientSecret        string
	expectedAuthCode    string
	allowedRedirectURIs []string
	tokenReply          map[string]interface{}
	userInfoClaims      map[string]interface{}
	userInfoJSON        bool
	statusOverrides     map[string]int
	calls               map[string]int
	lastTokenForm       url.Values
	lastTokenBody       string
	lastUserInfoAuthz   string

	ecdsaPublicKey  string
	ecdsaPrivateKey string

	t *testing.T
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// StartTestProvider creates a disposable TestProvider serving TLS on a random
// local port. It's stopped when the test completes.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	p := &TestProvider{
		t:                   t,
		allowedRedirectURIs: []string{"https://example.com"},
		expectedAuthCode:    "CODE1",
		tokenReply: map[string]interface{}{
			"access_token":  "A",
			"id_token":      "I",
			"refresh_token": "R",
			"token_type":    "Bearer",
			"expires_in":    60,
		},
		userInfoClaims: map[string]interface{}{
			"sub":        "u1",
			"email":      "a@b.com",
			"given_name": "Jean",
			"usual_name": "Dupont",
		},
		statusOverrides: map[string]int{},
		calls:           map[string]int{},
	}
	p.ecdsaPublicKey, p.ecdsaPrivateKey = TestGenerateKeys(t)
	p.jwks = testJWKS(t, p.ecdsaPublicKey)

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	cert := p.httpServer.Certificate()

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	require.NoError(err)
	p.caCert = buf.String()

	return p
}

// SetClientCreds is for configuring the client information required for the
// token endpoint. When unset, any client is accepted.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetExpectedAuthCode configures the auth code returned from /auth and the
// only code /token accepts. Defaults to "CODE1".
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetAllowedRedirectURIs allows you to configure the allowed redirect URIs for
// the OIDC workflow. If not configured a sample of "https://example.com" is
// used.
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetTokenReply replaces the JSON object /token answers with.
func (p *TestProvider) SetTokenReply(reply map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenReply = reply
}

// SetUserInfoClaims replaces the claims /userinfo answers with.
func (p *TestProvider) SetUserInfoClaims(claims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userInfoClaims = claims
}

// SetUserInfoJSON makes /userinfo answer with a plain JSON object instead of
// a signed JWT.
func (p *TestProvider) SetUserInfoJSON(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userInfoJSON = enabled
}

// SetStatus forces every request to path to fail with status. A status of
// zero removes the override.
func (p *TestProvider) SetStatus(path string, status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if status == 0 {
		delete(p.statusOverrides, path)
		return
	}
	p.statusOverrides[path] = status
}

// Calls returns how many requests were made to path.
func (p *TestProvider) Calls(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[path]
}

// LastTokenRequest returns the parsed form and the raw body of the last
// request to /token.
func (p *TestProvider) LastTokenRequest() (url.Values, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTokenForm, p.lastTokenBody
}

// LastUserInfoAuthorization returns the Authorization header of the last
// request to /userinfo.
func (p *TestProvider) LastUserInfoAuthorization() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastUserInfoAuthz
}

// Addr returns the current base URL for the test provider's running webserver.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// HTTPClient returns a client that trusts the test provider's certificate.
func (p *TestProvider) HTTPClient() *http.Client { return p.httpServer.Client() }

// SigningKeys returns the test provider's pem-encoded keys used to sign JWTs.
func (p *TestProvider) SigningKeys() (pub, priv string) {
	return p.ecdsaPublicKey, p.ecdsaPrivateKey
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()

	redirectURI := qv.Get("redirect_uri") +
		"?state=" + url.QueryEscape(qv.Get("state")) +
		"&error=" + url.QueryEscape(errorCode)

	if errorMessage != "" {
		redirectURI += "&error_description=" + url.QueryEscape(errorMessage)
	}

	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) error {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(&body)
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.t.Helper()

	p.calls[req.URL.Path]++
	if status, ok := p.statusOverrides[req.URL.Path]; ok {
		w.WriteHeader(status)
		return
	}

	switch req.URL.Path {
	case WellKnownPath:
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		reply := ProviderMetadata{
			Issuer:                p.Addr(),
			AuthorizationEndpoint: p.Addr() + TestAuthPath,
			TokenEndpoint:         p.Addr() + TestTokenPath,
			UserinfoEndpoint:      p.Addr() + TestUserInfoPath,
			EndSessionEndpoint:    p.Addr() + TestLogoutPath,
			JWKSURI:               p.Addr() + TestCertsPath,
		}
		_ = p.writeJSON(w, &reply)

	case TestAuthPath:
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		qv := req.URL.Query()

		switch {
		case qv.Get("response_type") != "code":
			p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
		case !strutils.StrListContains(strings.Fields(qv.Get("scope")), "openid"):
			p.writeAuthErrorResponse(w, req, "invalid_scope", "")
		case p.expectedAuthCode == "":
			p.writeAuthErrorResponse(w, req, "access_denied", "")
		case qv.Get("state") == "":
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
		case qv.Get("nonce") == "":
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing nonce parameter")
		case qv.Get("redirect_uri") == "":
			w.WriteHeader(http.StatusBadRequest)
		default:
			redirectURI := qv.Get("redirect_uri") +
				"?state=" + url.QueryEscape(qv.Get("state")) +
				"&code=" + url.QueryEscape(p.expectedAuthCode)
			http.Redirect(w, req, redirectURI, http.StatusFound)
		}

	case TestCertsPath:
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = p.writeJSON(w, p.jwks)

	case TestTokenPath:
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(req.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		form, err := url.ParseQuery(string(body))
		if err != nil {
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "malformed form body")
			return
		}
		p.lastTokenForm, p.lastTokenBody = form, string(body)

		switch {
		case form.Get("grant_type") != "authorization_code":
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "bad grant_type")
		case p.clientID != "" && (form.Get("client_id") != p.clientID || form.Get("client_secret") != p.clientSecret):
			_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		case !strutils.StrListContains(p.allowedRedirectURIs, form.Get("redirect_uri")):
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
		case form.Get("code") != p.expectedAuthCode:
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unexpected auth code")
		default:
			_ = p.writeJSON(w, p.tokenReply)
		}

	case TestUserInfoPath:
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.lastUserInfoAuthz = req.Header.Get("Authorization")
		if at, _ := p.tokenReply["access_token"].(string); at == "" || p.lastUserInfoAuthz != "Bearer "+at {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if p.userInfoJSON {
			_ = p.writeJSON(w, p.userInfoClaims)
			return
		}
		stdClaims := jwt.Claims{
			Issuer:   p.Addr(),
			IssuedAt: jwt.NewNumericDate(time.Now()),
		}
		if p.clientID != "" {
			stdClaims.Audience = jwt.Audience{p.clientID}
		}
		w.Header().Set("Content-Type", "application/jwt")
		_, _ = w.Write([]byte(TestSignJWT(p.t, p.ecdsaPrivateKey, testProviderKeyID, stdClaims, p.userInfoClaims)))

	case TestLogoutPath:
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// testJWKS converts a pem-encoded public key into JWKS data suitable for a
// verification endpoint response
func testJWKS(t *testing.T, pubKey string) *jose.JSONWebKeySet {
	t.Helper()
	require := require.New(t)

	block, _ := pem.Decode([]byte(pubKey))
	require.NotNil(block)

	input := block.Bytes

	pub, err := x509.ParsePKIXPublicKey(input)
	require.NoError(err)

	return &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       pub,
				KeyID:     testProviderKeyID,
				Algorithm: string(jose.ES256),
				Use:       "sig",
			},
		},
	}
}
