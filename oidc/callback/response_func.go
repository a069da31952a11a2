// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hashicorp/proconnect/oidc"
)

// SuccessResponseFunc is used by the Middleware to create a http response
// when the callback is successful.
//
// The oidc.Identity is the authenticated user. The function should use the
// http.ResponseWriter to send back whatever content (headers, html, JSON,
// etc) it wishes, typically after binding the identity to the application's
// own session.
type SuccessResponseFunc func(id *oidc.Identity, w http.ResponseWriter, req *http.Request)

// ErrorResponseFunc is used by the Middleware to create a http response when
// a login, callback or logout fails.
//
// It gets either the provider's authentication error response or the error
// raised while processing the request. An error matching
// oidc.ErrCSRFMismatch is a security violation and its response must not
// echo the request's state.
type ErrorResponseFunc func(respErr *AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request)

// AuthenErrorResponse represents Oauth2 error responses.  See:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthError
type AuthenErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Uri         string `json:"error_uri,omitempty"`
}

// DefaultErrorResponse is an ErrorResponseFunc that writes a JSON
// AuthenErrorResponse. Provider errors are returned as 401, state mismatches
// as 403, missing tokens as 400 and provider failures as 502.
func DefaultErrorResponse(respErr *AuthenErrorResponse, e error, w http.ResponseWriter, _ *http.Request) {
	status, body := http.StatusInternalServerError, &AuthenErrorResponse{Error: "internal-callback-error"}
	switch {
	case respErr != nil:
		status, body = http.StatusUnauthorized, respErr
	case errors.Is(e, oidc.ErrCSRFMismatch):
		status, body = http.StatusForbidden, &AuthenErrorResponse{Error: "invalid-state", Description: oidc.ErrCSRFMismatch.Error()}
	case errors.Is(e, oidc.ErrMissingToken):
		status, body = http.StatusBadRequest, &AuthenErrorResponse{Error: "missing-token", Description: oidc.ErrMissingToken.Error()}
	case errors.Is(e, oidc.ErrDiscovery), errors.Is(e, oidc.ErrTokenExchange),
		errors.Is(e, oidc.ErrUserinfo), errors.Is(e, oidc.ErrClaimsDecode):
		status, body = http.StatusBadGateway, &AuthenErrorResponse{Error: "provider-error"}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
