package oidc

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// UserInfo fetches the raw userinfo body with the access token as a bearer
// credential. An empty token returns ErrMissingToken without any request.
//
// ProConnect answers with a signed JWT; use DecodeClaims on the result.
func UserInfo(ctx context.Context, client *http.Client, md *ProviderMetadata, accessToken AccessToken) ([]byte, error) {
	const op = "UserInfo"
	switch {
	case accessToken == "":
		return nil, fmt.Errorf("%s: no access token in session: %w", op, ErrMissingToken)
	case client == nil:
		return nil, fmt.Errorf("%s: http client is nil: %w", op, ErrNilParameter)
	case md == nil:
		return nil, fmt.Errorf("%s: provider metadata is nil: %w", op, ErrNilParameter)
	case md.UserinfoEndpoint == "":
		return nil, fmt.Errorf("%s: userinfo endpoint is empty: %w", op, ErrInvalidParameter)
	}

	authClient := &http.Client{
		Timeout: client.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{
				AccessToken: string(accessToken),
				TokenType:   "Bearer",
			}),
			Base: client.Transport,
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, md.UserinfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create request: %w: %w", op, ErrUserinfo, err)
	}
	req.Header.Set("Accept", "application/jwt, application/json")

	resp, err := authClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w: %w", op, ErrUserinfo, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read response: %w: %w", op, ErrUserinfo, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: unexpected status %d: %w", op, resp.StatusCode, ErrUserinfo)
	}
	return body, nil
}
