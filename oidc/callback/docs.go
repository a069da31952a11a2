// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
callback is a package that provides a net/http middleware which mounts a
ProConnect authorization code flow: the mount path starts a login, the
callback path completes it and the logout path starts an RP-initiated logout.
Every other request is passed through to the application.
*/
package callback
