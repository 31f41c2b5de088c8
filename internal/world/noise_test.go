package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNoiseGrid_Deterministic(t *testing.T) {
	a := NewNoiseGrid(42, 32, 32, 4, 1.5)
	b := NewNoiseGrid(42, 32, 32, 4, 1.5)

	require.Equal(t, len(a.Heights), len(b.Heights))
	for r := range a.Heights {
		assert.Equal(t, a.Heights[r], b.Heights[r], "row %d", r)
	}
}

func TestNewNoiseGrid_SeedChangesTerrain(t *testing.T) {
	a := NewNoiseGrid(1, 16, 16, 4, 1.0)
	b := NewNoiseGrid(2, 16, 16, 4, 1.0)

	same := true
	for r := range a.Heights {
		for c := range a.Heights[r] {
			if a.Heights[r][c] != b.Heights[r][c] {
				same = false
			}
		}
	}
	assert.False(t, same)
}

func TestNewNoiseGrid_AmplitudeBounds(t *testing.T) {
	g := NewNoiseGrid(7, 24, 24, 5, 2.0)

	lo, hi := g.Heights[0][0], g.Heights[0][0]
	for r := range g.Heights {
		for c := range g.Heights[r] {
			v := g.Heights[r][c]
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	assert.InDelta(t, 0.0, lo, 1e-12)
	assert.InDelta(t, 2.0, hi, 1e-12)
}

func TestNewNoiseGrid_CenteredOnOrigin(t *testing.T) {
	g := NewNoiseGrid(3, 11, 21, 2, 1.0)
	assert.InDelta(t, -20.0, g.OriginX, 1e-12) // (21-1)/2 * 2
	assert.InDelta(t, -10.0, g.OriginZ, 1e-12)
}

func TestNewNoiseGrid_DegenerateSize(t *testing.T) {
	g := NewNoiseGrid(3, 1, 1, 2, 1.0)
	assert.Nil(t, g.Heights)
	assert.Equal(t, 0.0, g.HeightAt(0, 0))
}
