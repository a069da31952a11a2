package oidc

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/hashicorp/proconnect/jwt"
)

// KeySetCache shares one jwt.KeySet per jwks_uri between flows, so the
// provider's keys are fetched once per process instead of once per login.
// The key sets refresh themselves when a token names an unknown key.
type KeySetCache struct {
	mu   sync.Mutex
	sets map[string]jwt.KeySet
}

// NewKeySetCache creates an empty KeySetCache.
func NewKeySetCache() *KeySetCache {
	return &KeySetCache{sets: map[string]jwt.KeySet{}}
}

// Get returns the key set for jwksURI, creating it with client on first use.
// The key set outlives ctx's cancellation.
func (c *KeySetCache) Get(ctx context.Context, client *http.Client, jwksURI string) (jwt.KeySet, error) {
	const op = "KeySetCache.Get"
	if client == nil {
		return nil, fmt.Errorf("%s: http client is nil: %w", op, ErrNilParameter)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ks, ok := c.sets[jwksURI]; ok {
		return ks, nil
	}
	ks, err := jwt.NewJSONWebKeySet(context.WithoutCancel(ctx), jwksURI, "", jwt.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.sets[jwksURI] = ks
	return ks, nil
}
