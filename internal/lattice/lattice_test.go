package lattice

import (
	"math"
	"math/rand"
	"testing"

	"github.com/san-kum/moldyn/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellsPerAxis(t *testing.T) {
	tests := []struct {
		nMol, dim, want int
	}{
		{1000, 3, 10},
		{999, 3, 9},
		{1001, 3, 10},
		{64, 3, 4},
		{125, 3, 5},
		{216, 3, 6},
		{100, 2, 10},
		{99, 2, 9},
		{7, 1, 7},
		{256, 4, 4},
		{1, 3, 1},
		{0, 3, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CellsPerAxis(tt.nMol, tt.dim), "nMol=%d dim=%d", tt.nMol, tt.dim)
	}
}

func TestCubic3D(t *testing.T) {
	region, pos, err := Cubic[vector.D3](1000, 0.8)
	require.NoError(t, err)
	require.Len(t, pos, 1000)

	edge := math.Pow(1000/0.8, 1.0/3)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, edge, region.Dimensions().At(i), 1e-9)
	}

	half := edge / 2
	for _, p := range pos {
		for _, c := range p.Components() {
			require.GreaterOrEqual(t, c, -half)
			require.Less(t, c, half)
		}
	}

	// Lattice is symmetric about the origin.
	assert.InDelta(t, 0, vector.Sum(pos).Length(), 1e-9)
}

func TestCubicRoundsDown(t *testing.T) {
	_, pos, err := Cubic[vector.D2](50, 0.5)
	require.NoError(t, err)
	assert.Len(t, pos, 49)

	_, pos4, err := Cubic[vector.D4](100, 1)
	require.NoError(t, err)
	assert.Len(t, pos4, 81)
}

func TestCubicSpacing(t *testing.T) {
	region, pos, err := Cubic[vector.D1](4, 1)
	require.NoError(t, err)
	assert.Equal(t, vector.New[vector.D1](4), region.Dimensions())

	want := []float64{-1.5, -0.5, 0.5, 1.5}
	for i, p := range pos {
		assert.InDelta(t, want[i], p.At(0), 1e-12)
	}
}

func TestCubicDistinctSites(t *testing.T) {
	_, pos, err := Cubic[vector.D3](27, 1)
	require.NoError(t, err)

	seen := make(map[vector.Vector[vector.D3]]bool, len(pos))
	for _, p := range pos {
		assert.False(t, seen[p], "duplicate site %v", p)
		seen[p] = true
	}
	assert.Len(t, seen, 27)
}

func TestCubicRejectsBadInput(t *testing.T) {
	_, _, err := Cubic[vector.D3](0, 0.8)
	assert.Error(t, err)

	_, _, err = Cubic[vector.D3](10, 0)
	assert.Error(t, err)

	_, _, err = Cubic[vector.D3](10, math.NaN())
	assert.Error(t, err)
}

func TestShiftVectors(t *testing.T) {
	vs := []vector.Vector[vector.D2]{vector.New[vector.D2](1, 1), vector.New[vector.D2](0, -2)}
	ShiftVectors(vs, vector.New[vector.D2](-1, 0.5))
	assert.Equal(t, vector.New[vector.D2](0, 1.5), vs[0])
	assert.Equal(t, vector.New[vector.D2](-1, -1.5), vs[1])
}

func TestRandomizeVectors(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	vs := make([]vector.Vector[vector.D3], 100)
	RandomizeVectors(vs, 2.5, rng)

	distinct := 0
	for i, v := range vs {
		assert.InDelta(t, 2.5, v.Length(), 1e-12)
		if i > 0 && v != vs[i-1] {
			distinct++
		}
	}
	assert.Equal(t, 99, distinct)
}
