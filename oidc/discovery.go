package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// WellKnownPath is appended to the issuer to find the discovery document.
const WellKnownPath = "/.well-known/openid-configuration"

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 1 << 20

// ProviderMetadata is the subset of the provider's discovery document used by
// a Flow. Extra holds every field of the document, including the ones copied
// into the named fields.
type ProviderMetadata struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	EndSessionEndpoint    string `json:"end_session_endpoint"`
	JWKSURI               string `json:"jwks_uri"`

	Extra map[string]interface{} `json:"-"`
}

// DiscoveryURL returns the discovery document URL for issuer.
func DiscoveryURL(issuer string) string {
	return strings.TrimSuffix(issuer, "/") + WellKnownPath
}

// Discover fetches the provider's discovery document with a single GET. Any
// failure, including a missing authorization, token, userinfo or end session
// endpoint, wraps ErrDiscovery.
func Discover(ctx context.Context, client *http.Client, issuer string) (*ProviderMetadata, error) {
	const op = "Discover"
	if client == nil {
		return nil, fmt.Errorf("%s: http client is nil: %w", op, ErrNilParameter)
	}
	if issuer == "" {
		return nil, fmt.Errorf("%s: issuer is empty: %w", op, ErrInvalidParameter)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, DiscoveryURL(issuer), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create request: %w: %w", op, ErrDiscovery, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w: %w", op, ErrDiscovery, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read response: %w: %w", op, ErrDiscovery, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: unexpected status %d: %w", op, resp.StatusCode, ErrDiscovery)
	}

	var md ProviderMetadata
	if err := json.Unmarshal(body, &md); err != nil {
		return nil, fmt.Errorf("%s: unable to parse discovery document: %w: %w", op, ErrDiscovery, err)
	}
	if err := json.Unmarshal(body, &md.Extra); err != nil {
		return nil, fmt.Errorf("%s: unable to parse discovery document: %w: %w", op, ErrDiscovery, err)
	}
	if err := md.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &md, nil
}

func (md *ProviderMetadata) validate() error {
	for _, f := range []struct{ name, value string }{
		{"authorization_endpoint", md.AuthorizationEndpoint},
		{"token_endpoint", md.TokenEndpoint},
		{"userinfo_endpoint", md.UserinfoEndpoint},
		{"end_session_endpoint", md.EndSessionEndpoint},
	} {
		if f.value == "" {
			return fmt.Errorf("discovery document is missing %s: %w", f.name, ErrDiscovery)
		}
	}
	return nil
}

// DiscoveryCache shares discovery documents between flows for a bounded
// time. Concurrent lookups of an issuer that isn't cached share one fetch.
// Failed fetches are not cached.
//
// A cached document outlives a provider outage for up to the TTL, and a
// provider's endpoint change is seen only after the TTL or an Invalidate.
type DiscoveryCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*discoveryEntry
}

type discoveryEntry struct {
	ready   chan struct{}
	md      *ProviderMetadata
	err     error
	expires time.Time
}

// NewDiscoveryCache creates a cache holding documents for ttl.
//
// Supported options:
//
//	WithNow
func NewDiscoveryCache(ttl time.Duration, opt ...Option) (*DiscoveryCache, error) {
	const op = "NewDiscoveryCache"
	if ttl <= 0 {
		return nil, fmt.Errorf("%s: ttl not greater than zero: %w", op, ErrInvalidParameter)
	}
	opts := getDiscoveryCacheOpts(opt...)
	return &DiscoveryCache{
		ttl:     ttl,
		now:     opts.withNowFunc,
		entries: map[string]*discoveryEntry{},
	}, nil
}

// Get returns the cached document for issuer, fetching it with client when
// it's missing or expired. The fetch isn't tied to the cancellation of any
// one caller: a caller whose ctx is done stops waiting, and the others still
// get the document. client's timeout bounds the fetch.
func (c *DiscoveryCache) Get(ctx context.Context, client *http.Client, issuer string) (*ProviderMetadata, error) {
	const op = "DiscoveryCache.Get"
	key := strings.TrimSuffix(issuer, "/")

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		select {
		case <-e.ready:
			if c.now().Before(e.expires) {
				c.mu.Unlock()
				return e.md, nil
			}
			ok = false
		default:
			// another caller is fetching
		}
	}
	if !ok {
		e = &discoveryEntry{ready: make(chan struct{})}
		c.entries[key] = e
		go c.fetch(context.WithoutCancel(ctx), client, issuer, key, e)
	}
	c.mu.Unlock()

	select {
	case <-e.ready:
		return e.md, e.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w: %w", op, ErrDiscovery, ctx.Err())
	}
}

func (c *DiscoveryCache) fetch(ctx context.Context, client *http.Client, issuer, key string, e *discoveryEntry) {
	md, err := Discover(ctx, client, issuer)

	c.mu.Lock()
	defer c.mu.Unlock()
	e.md, e.err = md, err
	e.expires = c.now().Add(c.ttl)
	if err != nil && c.entries[key] == e {
		delete(c.entries, key)
	}
	close(e.ready)
}

// Invalidate drops the cached document for issuer.
func (c *DiscoveryCache) Invalidate(issuer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, strings.TrimSuffix(issuer, "/"))
}

// Purge drops every cached document.
func (c *DiscoveryCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]*discoveryEntry{}
}

// discoveryCacheOptions is the set of available options for DiscoveryCache
type discoveryCacheOptions struct {
	withNowFunc func() time.Time
}

func discoveryCacheDefaults() discoveryCacheOptions {
	return discoveryCacheOptions{withNowFunc: time.Now}
}

func getDiscoveryCacheOpts(opt ...Option) discoveryCacheOptions {
	opts := discoveryCacheDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithNow provides an optional func for determining what the current time it
// is.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if now == nil {
			return
		}
		if o, ok := o.(*discoveryCacheOptions); ok {
			o.withNowFunc = now
		}
	}
}
