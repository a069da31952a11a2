package oidc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/proconnect/oidc/internal/strutils"
	sdkHttp "github.com/hashicorp/proconnect/sdk/http"
)

const (
	// DefaultScope is requested when no scope is configured.
	DefaultScope = "openid email given_name usual_name"

	// DefaultProviderName is reported as Info.Provider in identities.
	DefaultProviderName = "proconnect"

	// DefaultSessionNamespace prefixes every session key written by a Flow.
	DefaultSessionNamespace = "proconnect"

	// DefaultTimeout bounds every outbound request when no timeout is
	// configured.
	DefaultTimeout = 10 * time.Second
)

// ClientSecret is an oauth client secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// Config represents the configuration for the authorization code flow with a
// confidential client, plus RP-initiated logout.
type Config struct {
	// ClientID is the relying party id
	ClientID string

	// ClientSecret is the relying party secret. It is sent in the token
	// request body (client_secret_post).
	ClientSecret ClientSecret

	// Issuer is the provider's base URL. Discovery is done at
	// Issuer + "/.well-known/openid-configuration".
	Issuer string

	// RedirectURL is where the provider sends the browser back with the
	// authorization code.
	RedirectURL string

	// PostLogoutRedirectURL is where the provider sends the browser after
	// the end session request.
	PostLogoutRedirectURL string

	// Scope is a space delimited list of scopes and must include "openid".
	Scope string

	// ProviderName is reported in Identity.Info.Provider.
	ProviderName string

	// VerifyClaimsSignature controls whether the signature of the userinfo
	// token is checked against the provider's JWKS. When false the claims are
	// trusted because they were fetched directly from the provider over TLS.
	VerifyClaimsSignature bool

	// Timeout bounds every outbound request.
	Timeout time.Duration

	// ProviderCA is an optional CA cert to use when sending requests to the provider.
	ProviderCA string

	// SessionNamespace prefixes the keys written to the SessionStore.
	SessionNamespace string

	// Logger is an optional logger. Secrets and tokens are never logged.
	Logger hclog.Logger
}

// NewConfig composes a new config for a provider. verifyClaimsSignature has
// no default and must be chosen by the caller (see
// Config.VerifyClaimsSignature).
//
// Supported options:
//
//	WithScope
//	WithPostLogoutRedirectURL
//	WithProviderName
//	WithTimeout
//	WithProviderCA
//	WithSessionNamespace
//	WithLogger
func NewConfig(issuer, clientID string, clientSecret ClientSecret, redirectURL string, verifyClaimsSignature bool, opt ...Option) (*Config, error) {
	const op = "NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		Issuer:                issuer,
		ClientID:              clientID,
		ClientSecret:          clientSecret,
		RedirectURL:           redirectURL,
		PostLogoutRedirectURL: opts.withPostLogoutRedirectURL,
		Scope:                 strutils.NormalizeScope(opts.withScope),
		ProviderName:          opts.withProviderName,
		VerifyClaimsSignature: verifyClaimsSignature,
		Timeout:               opts.withTimeout,
		ProviderCA:            opts.withProviderCA,
		SessionNamespace:      opts.withSessionNamespace,
		Logger:                opts.withLogger,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid provider config: %w", op, err)
	}
	return c, nil
}

// Validate the configuration. Every problem found is reported, not just the
// first one. It doesn't verify the Issuer is discoverable via an http
// request.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter))
	}
	if c.ClientSecret == "" {
		result = multierror.Append(result, fmt.Errorf("%s: client secret is empty: %w", op, ErrInvalidParameter))
	}
	if err := validateURL("issuer", c.Issuer, true); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: %w", op, err))
	}
	if err := validateURL("redirect URL", c.RedirectURL, true); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: %w", op, err))
	}
	if err := validateURL("post logout redirect URL", c.PostLogoutRedirectURL, false); err != nil {
		result = multierror.Append(result, fmt.Errorf("%s: %w", op, err))
	}
	if !strutils.StrListContains(strings.Fields(c.Scope), "openid") {
		result = multierror.Append(result, fmt.Errorf("%s: scope %q does not include openid: %w", op, c.Scope, ErrInvalidParameter))
	}
	if c.ProviderName == "" {
		result = multierror.Append(result, fmt.Errorf("%s: provider name is empty: %w", op, ErrInvalidParameter))
	}
	if c.SessionNamespace == "" {
		result = multierror.Append(result, fmt.Errorf("%s: session namespace is empty: %w", op, ErrInvalidParameter))
	}
	if c.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("%s: timeout %s is negative: %w", op, c.Timeout, ErrInvalidParameter))
	}
	return result.ErrorOrNil()
}

func validateURL(name, raw string, required bool) error {
	if raw == "" {
		if required {
			return fmt.Errorf("%s is empty: %w", name, ErrInvalidParameter)
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s %s is invalid: %w", name, raw, ErrInvalidParameter)
	}
	if !strutils.StrListContains([]string{"https", "http"}, u.Scheme) {
		return fmt.Errorf("%s %s scheme %q is not http or https: %w", name, raw, u.Scheme, ErrInvalidParameter)
	}
	if u.Host == "" {
		return fmt.Errorf("%s %s has no host: %w", name, raw, ErrInvalidParameter)
	}
	return nil
}

// HttpClient is a helper function that creates a new http client for the
// provider configured
func (c *Config) HttpClient() (*http.Client, error) {
	const op = "Config.HttpClient"
	client, err := sdkHttp.NewClient(c.ProviderCA, c.Timeout)
	if err != nil {
		if errors.Is(err, sdkHttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}

func (c *Config) logger() hclog.Logger {
	if c == nil || c.Logger == nil {
		return hclog.NewNullLogger()
	}
	return c.Logger
}

// configOptions is the set of available options
type configOptions struct {
	withScope                 string
	withPostLogoutRedirectURL string
	withProviderName          string
	withTimeout               time.Duration
	withProviderCA            string
	withSessionNamespace      string
	withLogger                hclog.Logger
}

// configDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func configDefaults() configOptions {
	return configOptions{
		withScope:            DefaultScope,
		withProviderName:     DefaultProviderName,
		withTimeout:          DefaultTimeout,
		withSessionNamespace: DefaultSessionNamespace,
		withLogger:           hclog.NewNullLogger(),
	}
}

// getConfigOpts gets the defaults and applies the opt overrides passed in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithScope provides an optional space delimited scope for the config. It
// replaces DefaultScope.
func WithScope(scope string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withScope = scope
		}
	}
}

// WithPostLogoutRedirectURL provides an optional post logout redirect URL
func WithPostLogoutRedirectURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withPostLogoutRedirectURL = u
		}
	}
}

// WithProviderName provides an optional provider name reported in identities
func WithProviderName(name string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderName = name
		}
	}
}

// WithTimeout provides an optional timeout for outbound requests. Zero
// disables the client timeout; the caller's context still applies.
func WithTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withTimeout = d
		}
	}
}

// WithProviderCA provides an optional CA cert for the provider's config
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithSessionNamespace provides an optional prefix for session keys
func WithSessionNamespace(ns string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withSessionNamespace = ns
		}
	}
}

// WithLogger provides an optional logger
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withLogger = l
		}
	}
}
