// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package simtest provides helpers for driving an engine from tests:
// poke inputs, advance cycles, peek and expect values.
package simtest

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TheAIBot/treadle"
)

// Poke writes a top level input, failing the test on error.
func Poke(t *testing.T, e *treadle.Engine, name string, value int64) {
	t.Helper()
	require.NoError(t, e.SetValue(name, big.NewInt(value)), "poke %s", name)
}

// Peek reads a symbol as an int64, failing the test on error or if the
// value does not fit.
func Peek(t *testing.T, e *treadle.Engine, name string) int64 {
	t.Helper()
	v, err := e.GetValue(name)
	require.NoError(t, err, "peek %s", name)
	require.True(t, v.IsInt64(), "peek %s: %s does not fit in int64", name, v)
	return v.Int64()
}

// Expect peeks a symbol and asserts its value.
func Expect(t *testing.T, e *treadle.Engine, name string, want int64) {
	t.Helper()
	require.Equalf(t, want, Peek(t, e, name), "value of %s", name)
}

// Step runs n cycles, failing the test if the circuit errors or stops.
func Step(t *testing.T, e *treadle.Engine, n int) {
	t.Helper()
	require.NoError(t, e.DoCycles(n), "step %d cycles", n)
}
