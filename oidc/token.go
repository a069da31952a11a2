package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// TokenResponse is the token endpoint's reply to an authorization code
// exchange. Extra holds every field of the reply.
type TokenResponse struct {
	AccessToken  AccessToken  `json:"access_token"`
	IDToken      IDToken      `json:"id_token"`
	RefreshToken RefreshToken `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    json.Number  `json:"expires_in"`

	Extra map[string]interface{} `json:"-"`
}

// tokenResponseJSON mirrors TokenResponse with plain strings, since the
// redacting token types only redact on the way out.
type tokenResponseJSON struct {
	AccessToken  string      `json:"access_token"`
	IDToken      string      `json:"id_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    json.Number `json:"expires_in"`
}

// tokenErrorJSON is an OAuth 2.0 error reply.
type tokenErrorJSON struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Expiry returns when the access token expires relative to now, or the zero
// time when the provider didn't say.
func (t *TokenResponse) Expiry(now time.Time) time.Time {
	if t == nil || t.ExpiresIn == "" {
		return time.Time{}
	}
	secs, err := t.ExpiresIn.Int64()
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(secs) * time.Second)
}

// OAuth2Token converts the response into an oauth2.Token.
func (t *TokenResponse) OAuth2Token() *oauth2.Token {
	if t == nil {
		return nil
	}
	tk := &oauth2.Token{
		AccessToken:  string(t.AccessToken),
		TokenType:    t.TokenType,
		RefreshToken: string(t.RefreshToken),
		Expiry:       t.Expiry(time.Now()),
	}
	return tk.WithExtra(t.Extra)
}

// Exchange trades an authorization code for tokens at the provider's token
// endpoint. The client authenticates with client_secret_post: the secret is
// sent in the form body. The form fields are, in order: grant_type,
// client_id, client_secret, redirect_uri, code.
//
// A missing access_token is not an error here; it's caught before the
// userinfo request.
func Exchange(ctx context.Context, client *http.Client, md *ProviderMetadata, c *Config, code string) (*TokenResponse, error) {
	const op = "Exchange"
	switch {
	case client == nil:
		return nil, fmt.Errorf("%s: http client is nil: %w", op, ErrNilParameter)
	case md == nil:
		return nil, fmt.Errorf("%s: provider metadata is nil: %w", op, ErrNilParameter)
	case c == nil:
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	case md.TokenEndpoint == "":
		return nil, fmt.Errorf("%s: token endpoint is empty: %w", op, ErrInvalidParameter)
	}
	form := encodeQuery([]queryParam{
		{"grant_type", "authorization_code"},
		{"client_id", c.ClientID},
		{"client_secret", string(c.ClientSecret)},
		{"redirect_uri", c.RedirectURL},
		{"code", code},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, md.TokenEndpoint, strings.NewReader(form))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create request: %w: %w", op, ErrTokenExchange, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w: %w", op, ErrTokenExchange, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read response: %w: %w", op, ErrTokenExchange, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e tokenErrorJSON
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("%s: provider returned %d %s: %s: %w", op, resp.StatusCode, e.Error, e.ErrorDescription, ErrTokenExchange)
		}
		return nil, fmt.Errorf("%s: unexpected status %d: %w", op, resp.StatusCode, ErrTokenExchange)
	}

	var raw tokenResponseJSON
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%s: unable to parse token response: %w: %w", op, ErrTokenExchange, err)
	}
	tr := &TokenResponse{
		AccessToken:  AccessToken(raw.AccessToken),
		IDToken:      IDToken(raw.IDToken),
		RefreshToken: RefreshToken(raw.RefreshToken),
		TokenType:    raw.TokenType,
		ExpiresIn:    raw.ExpiresIn,
	}
	if err := json.Unmarshal(body, &tr.Extra); err != nil {
		return nil, fmt.Errorf("%s: unable to parse token response: %w: %w", op, ErrTokenExchange, err)
	}
	return tr, nil
}
