package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine(Vector{1, 0}, Vector{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine(Vector{1, 0}, Vector{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine(Vector{1, 0}, Vector{-1, 0}), 1e-9)
	assert.InDelta(t, 0.7071, Cosine(Vector{1, 0}, Vector{1, 1}), 1e-3)

	// Degenerate inputs score zero instead of dividing by zero.
	assert.Zero(t, Cosine(Vector{}, Vector{1, 0}))
	assert.Zero(t, Cosine(Vector{0, 0}, Vector{1, 0}))
	assert.Zero(t, Cosine(Vector{1, 0}, Vector{1, 0, 1}))
}

func TestVectorScanValue(t *testing.T) {
	v := Vector{0.1, -0.2, 0.3}

	raw, err := v.Value()
	require.NoError(t, err)

	var got Vector
	require.NoError(t, got.Scan(raw))
	assert.Equal(t, v, got)

	var empty Vector
	require.NoError(t, empty.Scan(nil))
	assert.Nil(t, empty)
}
