// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import "net/http"

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

type keySetOptions struct {
	withHTTPClient          *http.Client
	withSupportedAlgorithms []Alg
}

func keySetDefaults() keySetOptions {
	return keySetOptions{
		withSupportedAlgorithms: DefaultSigningAlgorithms(),
	}
}

// getKeySetOpts gets the defaults and applies the opt overrides passed
// in.
func getKeySetOpts(opt ...Option) keySetOptions {
	opts := keySetDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// WithHTTPClient provides the client used to fetch a remote JWKS. It takes
// precedence over a CA PEM.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *keySetOptions:
			v.withHTTPClient = c
		}
	}
}

// WithSupportedAlgorithms limits the algorithms a StaticKeySet accepts.
func WithSupportedAlgorithms(algs ...Alg) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *keySetOptions:
			if len(algs) > 0 {
				v.withSupportedAlgorithms = algs
			}
		}
	}
}
