// Package boundary holds the boundary policies applied to particle positions
// and pair separations.
package boundary

import (
	"fmt"

	"github.com/san-kum/moldyn/internal/vector"
)

// Conditions wraps a position or separation back into the primary cell. An
// implementation may correct at most one period of drift per call.
type Conditions[D vector.Dimension] interface {
	Wrap(p *vector.Vector[D])
}

// Sized is implemented by boundaries with finite per-axis extents.
type Sized[D vector.Dimension] interface {
	Dimensions() vector.Vector[D]
}

// Region is a periodic box centered on the origin. The primary cell is
// [-L/2, L/2) on every axis.
type Region[D vector.Dimension] struct {
	size vector.Vector[D]
}

// NewRegion builds a region from per-axis extents, all of which must be positive.
func NewRegion[D vector.Dimension](size vector.Vector[D]) (*Region[D], error) {
	for i := 0; i < size.Dim(); i++ {
		if !(size.At(i) > 0) {
			return nil, fmt.Errorf("boundary: extent %d must be positive, got %g", i, size.At(i))
		}
	}
	return &Region[D]{size: size}, nil
}

// MustRegion is NewRegion that panics on invalid extents.
func MustRegion[D vector.Dimension](size vector.Vector[D]) *Region[D] {
	r, err := NewRegion(size)
	if err != nil {
		panic(err)
	}
	return r
}

// Cubic returns a region with the same extent on every axis.
func Cubic[D vector.Dimension](edge float64) (*Region[D], error) {
	return NewRegion(vector.Fill[D](edge))
}

func (r *Region[D]) Dimensions() vector.Vector[D] { return r.size }

func (r *Region[D]) Volume() float64 {
	vol := 1.0
	for i := 0; i < r.size.Dim(); i++ {
		vol *= r.size.At(i)
	}
	return vol
}

// Wrap applies a single minimum-image correction per axis: coordinates at or
// above L/2 move down one period, coordinates below -L/2 move up one period.
func (r *Region[D]) Wrap(p *vector.Vector[D]) {
	for i := 0; i < r.size.Dim(); i++ {
		l := r.size.At(i)
		x := p.At(i)
		if x >= l/2 {
			p.Set(i, x-l)
		} else if x < -l/2 {
			p.Set(i, x+l)
		}
	}
}

// Unbounded leaves positions untouched. Use it for open systems.
type Unbounded[D vector.Dimension] struct{}

func (Unbounded[D]) Wrap(*vector.Vector[D]) {}
