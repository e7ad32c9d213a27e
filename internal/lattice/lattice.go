// Package lattice builds initial particle configurations.
package lattice

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/san-kum/moldyn/internal/boundary"
	"github.com/san-kum/moldyn/internal/vector"
)

// Cubic places particles at the cell centers of a simple cubic lattice filling
// a region sized for nMol particles at the given number density. The region is
// centered on the origin. Only CellsPerAxis(nMol, D)^D particles are placed, so
// nMol values that are not perfect powers are rounded down.
func Cubic[D vector.Dimension](nMol int, density float64) (*boundary.Region[D], []vector.Vector[D], error) {
	if nMol < 1 {
		return nil, nil, fmt.Errorf("lattice: need at least one molecule, got %d", nMol)
	}
	if density <= 0 || math.IsNaN(density) || math.IsInf(density, 0) {
		return nil, nil, fmt.Errorf("lattice: invalid density %v", density)
	}

	dim := vector.DimOf[D]()
	edge := math.Pow(float64(nMol)/density, 1/float64(dim))
	region, err := boundary.NewRegion(vector.Fill[D](edge))
	if err != nil {
		return nil, nil, err
	}

	cells := CellsPerAxis(nMol, dim)
	gap := edge / float64(cells)

	total := 1
	for i := 0; i < dim; i++ {
		total *= cells
	}

	pos := make([]vector.Vector[D], 0, total)
	var idx [vector.MaxDim]int
	for n := 0; n < total; n++ {
		var site vector.Vector[D]
		for axis := 0; axis < dim; axis++ {
			site.Set(axis, (0.5+float64(idx[axis]))*gap)
		}
		pos = append(pos, site)

		// Advance the odometer, last axis fastest.
		for axis := dim - 1; axis >= 0; axis-- {
			idx[axis]++
			if idx[axis] < cells {
				break
			}
			idx[axis] = 0
		}
	}

	ShiftVectors(pos, region.Dimensions().Scale(-0.5))
	return region, pos, nil
}

// CellsPerAxis returns floor(nMol^(1/dim)), exact for perfect powers.
func CellsPerAxis(nMol, dim int) int {
	if nMol < 1 || dim < 1 {
		return 0
	}
	c := int(math.Pow(float64(nMol), 1/float64(dim)))
	for ipow(c+1, dim) <= nMol {
		c++
	}
	for c > 0 && ipow(c, dim) > nMol {
		c--
	}
	return c
}

func ipow(base, exp int) int {
	result := 1
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

func ShiftVectors[D vector.Dimension](vs []vector.Vector[D], shift vector.Vector[D]) {
	for i := range vs {
		vs[i] = vs[i].Add(shift)
	}
}

// RandomizeVectors replaces every vector with one of length mag pointing in a
// random direction.
func RandomizeVectors[D vector.Dimension](vs []vector.Vector[D], mag float64, rng *rand.Rand) {
	for i := range vs {
		dir := vector.Random[D](rng)
		for dir.SquareLength() == 0 {
			dir = vector.Random[D](rng)
		}
		vs[i] = dir.Scale(mag / dir.Length())
	}
}
