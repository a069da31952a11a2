/*
oidc is a package for driving the ProConnect OpenID Connect authorization code
flow as a confidential relying party, plus RP-initiated logout.

Primary types provided by the package

* Config: the client's registration with the provider (client id/secret,
issuer, redirect URLs, scope) and whether userinfo signatures are verified.
Without verification the userinfo JWT is trusted because it was fetched over
TLS directly from the provider's userinfo endpoint.

* Flow: one browser's trip through the flow: Login builds the authorization
redirect, Callback verifies the returned state, exchanges the code and turns
the userinfo claims into an Identity, and Logout builds the end session
redirect. A Flow keeps nothing between requests: state, nonce and tokens live
in the host's SessionStore.

* Session: the namespaced view of a SessionStore used to issue and verify the
state and nonce and to keep the tokens.

* DiscoveryCache: an optional process wide, TTL bounded cache of discovery
documents shared between flows.

* Identity: the uid, profile and raw claims handed to the host.

The building blocks (Discover, AuthURL, Exchange, UserInfo, DecodeClaims,
LogoutURL, NewIdentity) are exported for hosts that drive the flow
themselves.

The oidc.callback package

The callback package provides a net/http middleware that routes the mount,
callback and logout paths to a Flow and passes every other request through.

Examples

* A demo web application:
oidc/examples/webapp
*/
package oidc
