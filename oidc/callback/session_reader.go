// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"net/http"

	"github.com/hashicorp/proconnect/oidc"
)

// SessionFunc returns the session store of the browser that sent req. It may
// set cookies on w to establish a new session.
//
// Implementations must be concurrently safe, since the func will be used
// within a concurrent http.Handler
type SessionFunc func(w http.ResponseWriter, req *http.Request) (oidc.SessionStore, error)

// SingleSession returns a SessionFunc that always returns store. It's only
// suitable for tests and single user tools.
func SingleSession(store oidc.SessionStore) SessionFunc {
	return func(http.ResponseWriter, *http.Request) (oidc.SessionStore, error) {
		return store, nil
	}
}
