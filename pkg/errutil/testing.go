// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode asserts that err carries the given oops code. Auth flows
// route everything through coded errors, so a missing code usually means a
// raw error escaped a service boundary.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected a coded error, got %T: %v", err, err)
	assert.Equal(t, code, oopsErr.Code(), "wrong error code")
}

// AssertErrorContext asserts that err is an oops error whose context holds
// key with the given value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected a coded error, got %T: %v", err, err)
	got, present := oopsErr.Context()[key]
	require.True(t, present, "error context missing key %q", key)
	assert.Equal(t, value, got, "wrong value for context key %q", key)
}
