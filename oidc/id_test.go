// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHexID = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestNewID(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	got, err := NewID()
	require.NoError(err)
	assert.Regexp(testHexID, got)
}

func TestNewID_NoCollisions(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	const n = 10000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		got, err := NewID()
		require.NoError(err)
		require.Regexp(testHexID, got)
		_, dup := seen[got]
		require.Falsef(dup, "NewID() returned %s twice", got)
		seen[got] = struct{}{}
	}
	assert.Len(seen, n)
}
