package oidc

import "fmt"

// LogoutURL builds the RP-initiated logout redirect to the provider's end
// session endpoint. The query is, in order: id_token_hint, state,
// post_logout_redirect_uri. state is the session's current state, reused
// rather than reissued.
func LogoutURL(md *ProviderMetadata, c *Config, idToken IDToken, state string) (string, error) {
	const op = "LogoutURL"
	switch {
	case md == nil:
		return "", fmt.Errorf("%s: provider metadata is nil: %w", op, ErrNilParameter)
	case c == nil:
		return "", fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	case md.EndSessionEndpoint == "":
		return "", fmt.Errorf("%s: provider has no end session endpoint: %w", op, ErrInvalidParameter)
	}
	u, err := withQuery(md.EndSessionEndpoint, []queryParam{
		{"id_token_hint", string(idToken)},
		{"state", state},
		{"post_logout_redirect_uri", c.PostLogoutRedirectURL},
	})
	if err != nil {
		return "", fmt.Errorf("%s: end session endpoint %s is invalid: %w", op, md.EndSessionEndpoint, ErrInvalidParameter)
	}
	return u, nil
}
