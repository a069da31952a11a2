package oidc

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/proconnect/jwt"
	sdkHttp "github.com/hashicorp/proconnect/sdk/http"
)

// DefaultCallbackPath is appended to the mount path to form the callback
// path.
const DefaultCallbackPath = "/callback"

// LogoutPath is appended to the mount path to form the logout path.
const LogoutPath = "/logout"

// FlowState is where a Flow is in the authorization code flow.
type FlowState int

const (
	StateIdle FlowState = iota
	StateAwaitingRedirect
	StateAwaitingCallback
	StateAuthenticated
	StateLoggingOut
)

// String returns the state's name.
func (s FlowState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingRedirect:
		return "awaiting-redirect"
	case StateAwaitingCallback:
		return "awaiting-callback"
	case StateAuthenticated:
		return "authenticated"
	case StateLoggingOut:
		return "logging-out"
	default:
		return "unknown"
	}
}

// Phase is the kind of inbound request, as decided by Route.
type Phase int

const (
	// PhaseOther is non-flow traffic, passed through to the application.
	PhaseOther Phase = iota
	// PhaseRequest starts a login.
	PhaseRequest
	// PhaseCallback is the provider's redirect back.
	PhaseCallback
	// PhaseLogout starts an RP-initiated logout.
	PhaseLogout
)

// String returns the phase's name.
func (p Phase) String() string {
	switch p {
	case PhaseRequest:
		return "request"
	case PhaseCallback:
		return "callback"
	case PhaseLogout:
		return "logout"
	default:
		return "other"
	}
}

// Route classifies path against a flow mounted at mount, e.g.
// "/auth/proconnect". A trailing slash on path is ignored. The logout match
// is an exact suffix match: the path must end with mount + "/logout".
//
// Supported options:
//
//	WithCallbackPath
func Route(mount, path string, opt ...Option) Phase {
	opts := getRouteOpts(opt...)
	mount = strings.TrimSuffix(mount, "/")
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	switch {
	case path == mount, mount == "" && path == "/":
		return PhaseRequest
	case path == mount+opts.withCallbackPath:
		return PhaseCallback
	case strings.HasSuffix(path, mount+LogoutPath):
		return PhaseLogout
	default:
		return PhaseOther
	}
}

// Flow drives one browser's authorization code flow against a ProConnect
// provider. All of its durable state lives in the session store, so a Flow
// is created per inbound request and discarded afterwards. A Flow is not
// safe for concurrent use.
type Flow struct {
	config          *Config
	session         *Session
	client          *http.Client
	discoveryClient *http.Client
	cache           *DiscoveryCache
	keySet          jwt.KeySet
	keySets         *KeySetCache
	logger          hclog.Logger

	md    *ProviderMetadata
	state FlowState
}

// NewFlow creates a Flow for c over store.
//
// Supported options:
//
//	WithHTTPClient
//	WithDiscoveryCache
//	WithKeySet
//	WithKeySetCache
//	WithDiscoveryRetryMax
func NewFlow(c *Config, store SessionStore, opt ...Option) (*Flow, error) {
	const op = "NewFlow"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}
	session, err := NewSession(store, c.SessionNamespace)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getFlowOpts(opt...)

	client := opts.withHTTPClient
	if client == nil {
		if client, err = c.HttpClient(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	logger := c.logger().Named(c.ProviderName)
	return &Flow{
		config:          c,
		session:         session,
		client:          client,
		discoveryClient: sdkHttp.NewRetryingClient(client, logger, opts.withDiscoveryRetryMax),
		cache:           opts.withDiscoveryCache,
		keySet:          opts.withKeySet,
		keySets:         opts.withKeySetCache,
		logger:          logger,
		state:           StateIdle,
	}, nil
}

// State returns the flow's current state.
func (f *Flow) State() FlowState { return f.state }

// Session returns the flow's session.
func (f *Flow) Session() *Session { return f.session }

// Metadata returns the discovered provider metadata, or nil before Setup.
func (f *Flow) Metadata() *ProviderMetadata { return f.md }

// Setup discovers the provider. The result is kept for the life of the Flow,
// and shared through the DiscoveryCache when one was provided.
func (f *Flow) Setup(ctx context.Context) error {
	const op = "Flow.Setup"
	if f.md != nil {
		return nil
	}
	var (
		md  *ProviderMetadata
		err error
	)
	if f.cache != nil {
		md, err = f.cache.Get(ctx, f.discoveryClient, f.config.Issuer)
	} else {
		md, err = Discover(ctx, f.discoveryClient, f.config.Issuer)
	}
	if err != nil {
		f.logger.Error("provider discovery failed", "issuer", f.config.Issuer, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	f.md = md
	return nil
}

// Login discovers the provider, issues a new state and nonce and returns the
// authorization redirect. Nothing is written to the session when discovery
// fails.
//
// Supported options:
//
//	WithACRValues
//	WithUILocales
func (f *Flow) Login(ctx context.Context, opt ...Option) (string, error) {
	const op = "Flow.Login"
	if err := f.Setup(ctx); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	state, err := f.session.IssueState(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	nonce, err := f.session.IssueNonce(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	u, err := AuthURL(f.md, f.config, state, nonce, opt...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	f.state = StateAwaitingRedirect
	f.logger.Debug("login redirect issued", "endpoint", f.md.AuthorizationEndpoint)
	return u, nil
}

// Callback completes the flow for the provider's redirect back carrying code
// and state. The state is verified before any request is made. Each step
// gates the next and any failure aborts the callback without an identity.
func (f *Flow) Callback(ctx context.Context, code, state string) (*Identity, error) {
	const op = "Flow.Callback"
	f.state = StateAwaitingCallback

	if err := f.session.VerifyState(ctx, state); err != nil {
		f.logger.Warn("callback rejected: state mismatch")
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if code == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrTokenExchange)
	}
	if err := f.Setup(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tokens, err := Exchange(ctx, f.client, f.md, f.config, code)
	if err != nil {
		f.logger.Error("token exchange failed", "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := f.session.StoreTokens(ctx, tokens); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	accessToken, err := f.session.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	raw, err := UserInfo(ctx, f.client, f.md, accessToken)
	if err != nil {
		f.logger.Error("userinfo request failed", "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var ks jwt.KeySet
	if f.config.VerifyClaimsSignature {
		if ks, err = f.claimsKeySet(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	claims, err := DecodeClaims(ctx, raw, f.config.VerifyClaimsSignature, ks)
	if err != nil {
		f.logger.Error("unable to decode userinfo claims", "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	id := NewIdentity(f.config.ProviderName, claims)
	f.state = StateAuthenticated
	f.logger.Info("authenticated", "uid", id.UID)
	return id, nil
}

// Logout returns the RP-initiated logout redirect for the session's id
// token and current state. It doesn't clear the session's tokens.
func (f *Flow) Logout(ctx context.Context) (string, error) {
	const op = "Flow.Logout"
	if err := f.Setup(ctx); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	idToken, err := f.session.IDToken(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if idToken == "" {
		return "", fmt.Errorf("%s: no id token in session: %w", op, ErrMissingToken)
	}
	state, err := f.session.State(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	u, err := LogoutURL(f.md, f.config, idToken, state)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	f.state = StateLoggingOut
	f.logger.Debug("logout redirect issued", "endpoint", f.md.EndSessionEndpoint)
	return u, nil
}

func (f *Flow) claimsKeySet(ctx context.Context) (jwt.KeySet, error) {
	const op = "Flow.claimsKeySet"
	if f.keySet != nil {
		return f.keySet, nil
	}
	if f.md.JWKSURI == "" {
		return nil, fmt.Errorf("%s: provider has no jwks_uri to verify claims with: %w", op, ErrDiscovery)
	}
	var ks jwt.KeySet
	var err error
	if f.keySets != nil {
		ks, err = f.keySets.Get(ctx, f.client, f.md.JWKSURI)
	} else {
		ks, err = jwt.NewJSONWebKeySet(ctx, f.md.JWKSURI, "", jwt.WithHTTPClient(f.client))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	f.keySet = ks
	return ks, nil
}

// flowOptions is the set of available options for NewFlow
type flowOptions struct {
	withHTTPClient        *http.Client
	withDiscoveryCache    *DiscoveryCache
	withKeySet            jwt.KeySet
	withKeySetCache       *KeySetCache
	withDiscoveryRetryMax int
}

func flowDefaults() flowOptions {
	return flowOptions{withDiscoveryRetryMax: sdkHttp.DefaultRetryMax}
}

func getFlowOpts(opt ...Option) flowOptions {
	opts := flowDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithHTTPClient provides the client for every request to the provider. It
// replaces the client built from the Config's CA and timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*flowOptions); ok {
			o.withHTTPClient = c
		}
	}
}

// WithDiscoveryCache shares discovery documents between flows through c.
func WithDiscoveryCache(c *DiscoveryCache) Option {
	return func(o interface{}) {
		if o, ok := o.(*flowOptions); ok {
			o.withDiscoveryCache = c
		}
	}
}

// WithKeySet provides the key set userinfo signatures are verified with when
// the Config enables verification. By default the key set is built from the
// provider's jwks_uri.
func WithKeySet(ks jwt.KeySet) Option {
	return func(o interface{}) {
		if o, ok := o.(*flowOptions); ok {
			o.withKeySet = ks
		}
	}
}

// WithKeySetCache shares the key sets built from the provider's jwks_uri
// between flows through c. WithKeySet takes precedence.
func WithKeySetCache(c *KeySetCache) Option {
	return func(o interface{}) {
		if o, ok := o.(*flowOptions); ok {
			o.withKeySetCache = c
		}
	}
}

// WithDiscoveryRetryMax sets how many times a transient discovery failure is
// retried. Zero disables retries.
func WithDiscoveryRetryMax(n int) Option {
	return func(o interface{}) {
		if o, ok := o.(*flowOptions); ok && n >= 0 {
			o.withDiscoveryRetryMax = n
		}
	}
}

// routeOptions is the set of available options for Route
type routeOptions struct {
	withCallbackPath string
}

func routeDefaults() routeOptions {
	return routeOptions{withCallbackPath: DefaultCallbackPath}
}

func getRouteOpts(opt ...Option) routeOptions {
	opts := routeDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithCallbackPath overrides the callback path relative to the mount path.
func WithCallbackPath(p string) Option {
	return func(o interface{}) {
		if o, ok := o.(*routeOptions); ok && p != "" {
			if !strings.HasPrefix(p, "/") {
				p = "/" + p
			}
			o.withCallbackPath = p
		}
	}
}
