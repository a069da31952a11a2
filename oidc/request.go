package oidc

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/language"
)

// queryParam is one key/value of an ordered query string.
type queryParam struct {
	key, value string
}

// encodeQuery form-encodes params in the given order. url.Values.Encode
// sorts keys, and providers and tests expect a stable, documented order.
func encodeQuery(params []queryParam) string {
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}

// withQuery appends params to endpoint, keeping any query the endpoint
// already carries.
func withQuery(endpoint string, params []queryParam) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := encodeQuery(params)
	if u.RawQuery != "" {
		u.RawQuery += "&" + q
	} else {
		u.RawQuery = q
	}
	return u.String(), nil
}

// AuthURL builds the redirect to the provider's authorization endpoint. The
// query is, in order: response_type=code, client_id, redirect_uri, scope,
// state, nonce, then acr_values and ui_locales when requested.
//
// The state and nonce must already be stored in the session (see
// Session.IssueState and Session.IssueNonce).
//
// Supported options:
//
//	WithACRValues
//	WithUILocales
func AuthURL(md *ProviderMetadata, c *Config, state, nonce string, opt ...Option) (string, error) {
	const op = "AuthURL"
	switch {
	case md == nil:
		return "", fmt.Errorf("%s: provider metadata is nil: %w", op, ErrNilParameter)
	case c == nil:
		return "", fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	case md.AuthorizationEndpoint == "":
		return "", fmt.Errorf("%s: authorization endpoint is empty: %w", op, ErrInvalidParameter)
	case state == "":
		return "", fmt.Errorf("%s: state is empty: %w", op, ErrInvalidParameter)
	case nonce == "":
		return "", fmt.Errorf("%s: nonce is empty: %w", op, ErrInvalidParameter)
	case state == nonce:
		return "", fmt.Errorf("%s: state and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}
	opts := getAuthURLOpts(opt...)

	params := []queryParam{
		{"response_type", "code"},
		{"client_id", c.ClientID},
		{"redirect_uri", c.RedirectURL},
		{"scope", c.Scope},
		{"state", state},
		{"nonce", nonce},
	}
	if len(opts.withACRValues) > 0 {
		params = append(params, queryParam{"acr_values", strings.Join(opts.withACRValues, " ")})
	}
	if len(opts.withUILocales) > 0 {
		locales := make([]string, 0, len(opts.withUILocales))
		for _, l := range opts.withUILocales {
			locales = append(locales, l.String())
		}
		params = append(params, queryParam{"ui_locales", strings.Join(locales, " ")})
	}
	u, err := withQuery(md.AuthorizationEndpoint, params)
	if err != nil {
		return "", fmt.Errorf("%s: authorization endpoint %s is invalid: %w", op, md.AuthorizationEndpoint, ErrInvalidParameter)
	}
	return u, nil
}

// authURLOptions is the set of available options for AuthURL
type authURLOptions struct {
	withACRValues []string
	withUILocales []language.Tag
}

func authURLDefaults() authURLOptions {
	return authURLOptions{}
}

func getAuthURLOpts(opt ...Option) authURLOptions {
	opts := authURLDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithACRValues provides optional acr_values for the authorization request,
// e.g. "eidas1".
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#AuthRequest
func WithACRValues(values ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*authURLOptions); ok {
			o.withACRValues = values
		}
	}
}

// WithUILocales provides optional ui_locales for the authorization request,
// in order of preference.
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#AuthRequest
func WithUILocales(locales ...language.Tag) Option {
	return func(o interface{}) {
		if o, ok := o.(*authURLOptions); ok {
			o.withUILocales = locales
		}
	}
}
