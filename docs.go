// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// proconnect provides the packages a relying party needs to authenticate
// users with ProConnect, the French public sector OpenID Connect federation.
//
// See the oidc package for the flow engine, oidc/callback for a ready to
// mount http middleware and jwt for verifying signed userinfo responses.
package proconnect
