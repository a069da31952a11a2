package callback

import (
	"fmt"
	"net/http"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/proconnect/oidc"
)

// Middleware routes the flow's paths below its mount path to a new
// oidc.Flow per request and passes every other request to the next handler.
type Middleware struct {
	config   *oidc.Config
	mount    string
	sessions SessionFunc
	success  SuccessResponseFunc
	failure  ErrorResponseFunc
	next     http.Handler
	opts     []oidc.Option
	logger   hclog.Logger
}

// NewMiddleware creates a Middleware mounted at mount, e.g.
// "/auth/proconnect". A nil next responds 404 to non-flow requests.
//
// The options are handed to oidc.Route, oidc.NewFlow and Flow.Login, so for
// example oidc.WithCallbackPath, oidc.WithDiscoveryCache and
// oidc.WithACRValues are all supported. Every flow shares one http client
// built from c, and one oidc.KeySetCache when c verifies claims signatures,
// unless oidc.WithHTTPClient or oidc.WithKeySetCache say otherwise.
func NewMiddleware(c *oidc.Config, mount string, sessions SessionFunc, sFn SuccessResponseFunc, eFn ErrorResponseFunc, next http.Handler, opt ...oidc.Option) (*Middleware, error) {
	const op = "callback.NewMiddleware"
	switch {
	case c == nil:
		return nil, fmt.Errorf("%s: config is nil: %w", op, oidc.ErrNilParameter)
	case sessions == nil:
		return nil, fmt.Errorf("%s: session func is nil: %w", op, oidc.ErrNilParameter)
	case sFn == nil:
		return nil, fmt.Errorf("%s: success response func is nil: %w", op, oidc.ErrNilParameter)
	case eFn == nil:
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, oidc.ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if next == nil {
		next = http.NotFoundHandler()
	}
	logger := c.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	// one client and key set cache for every request; options from the
	// caller come last so they win
	client, err := c.HttpClient()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := []oidc.Option{oidc.WithHTTPClient(client)}
	if c.VerifyClaimsSignature {
		opts = append(opts, oidc.WithKeySetCache(oidc.NewKeySetCache()))
	}
	opts = append(opts, opt...)
	return &Middleware{
		config:   c,
		mount:    mount,
		sessions: sessions,
		success:  sFn,
		failure:  eFn,
		next:     next,
		opts:     opts,
		logger:   logger.Named("callback"),
	}, nil
}

// ServeHTTP implements http.Handler.
func (m *Middleware) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	phase := oidc.Route(m.mount, req.URL.Path, m.opts...)
	if phase == oidc.PhaseOther {
		m.next.ServeHTTP(w, req)
		return
	}

	store, err := m.sessions(w, req)
	if err != nil {
		m.failure(nil, fmt.Errorf("unable to load session: %w", err), w, req)
		return
	}
	f, err := oidc.NewFlow(m.config, store, m.opts...)
	if err != nil {
		m.failure(nil, err, w, req)
		return
	}

	ctx := req.Context()
	switch phase {
	case oidc.PhaseRequest:
		authURL, err := f.Login(ctx, m.opts...)
		if err != nil {
			m.failure(nil, err, w, req)
			return
		}
		http.Redirect(w, req, authURL, http.StatusFound)

	case oidc.PhaseCallback:
		// get parameters from either the body or query parameters.
		// FormValue prioritizes body values, if found
		if reqErr := req.FormValue("error"); reqErr != "" {
			m.logger.Debug("provider returned an authentication error", "error", reqErr)
			m.failure(&AuthenErrorResponse{
				Error:       reqErr,
				Description: req.FormValue("error_description"),
				Uri:         req.FormValue("error_uri"),
			}, nil, w, req)
			return
		}
		id, err := f.Callback(ctx, req.FormValue("code"), req.FormValue("state"))
		if err != nil {
			m.failure(nil, err, w, req)
			return
		}
		m.success(id, w, req)

	case oidc.PhaseLogout:
		logoutURL, err := f.Logout(ctx)
		if err != nil {
			m.failure(nil, err, w, req)
			return
		}
		http.Redirect(w, req, logoutURL, http.StatusFound)
	}
}
