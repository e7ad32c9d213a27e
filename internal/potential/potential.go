// Package potential implements pairwise force kernels.
//
// A [Potential] turns positions into accelerations (unit mass) and keeps the
// potential-energy and virial sums of its latest evaluation readable through
// [Potential.USum] and [Potential.VirialSum].
package potential

import (
	"math"
	"sync/atomic"

	"github.com/san-kum/moldyn/internal/boundary"
	"github.com/san-kum/moldyn/internal/vector"
)

type Potential[D vector.Dimension] interface {
	// ComputeForces overwrites acc with the forces at pos. pos and acc must
	// have equal length.
	ComputeForces(pos, acc []vector.Vector[D], b boundary.Conditions[D])
	USum() float64
	VirialSum() float64
}

// NoInteraction never contributes a force.
type NoInteraction[D vector.Dimension] struct{}

func (NoInteraction[D]) ComputeForces(pos, acc []vector.Vector[D], b boundary.Conditions[D]) {}
func (NoInteraction[D]) USum() float64                                                     { return 0 }
func (NoInteraction[D]) VirialSum() float64                                                { return 0 }

// atomicFloat is a float64 cell with sequentially consistent loads and stores.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

func (f *atomicFloat) Store(x float64) {
	f.bits.Store(math.Float64bits(x))
}
