package state

import (
	"fmt"

	"github.com/san-kum/moldyn/internal/vector"
)

// Ensemble holds per-particle kinematics. All three slices have the same length.
type Ensemble[D vector.Dimension] struct {
	Positions     []vector.Vector[D] `json:"positions"`
	Velocities    []vector.Vector[D] `json:"velocities"`
	Accelerations []vector.Vector[D] `json:"accelerations"`
}

// NewEnsemble takes ownership of pos and allocates zero velocities and
// accelerations of the same length.
func NewEnsemble[D vector.Dimension](pos []vector.Vector[D]) Ensemble[D] {
	return Ensemble[D]{
		Positions:     pos,
		Velocities:    make([]vector.Vector[D], len(pos)),
		Accelerations: make([]vector.Vector[D], len(pos)),
	}
}

// Len returns the particle count. It panics if the slices disagree.
func (e *Ensemble[D]) Len() int {
	if err := e.Validate(); err != nil {
		panic(err.Error())
	}
	return len(e.Positions)
}

func (e *Ensemble[D]) Validate() error {
	n := len(e.Positions)
	if len(e.Velocities) != n || len(e.Accelerations) != n {
		return fmt.Errorf("state: mismatched ensemble (pos=%d vel=%d acc=%d)",
			n, len(e.Velocities), len(e.Accelerations))
	}
	return nil
}

// Clone returns a deep copy.
func (e *Ensemble[D]) Clone() Ensemble[D] {
	return Ensemble[D]{
		Positions:     append([]vector.Vector[D](nil), e.Positions...),
		Velocities:    append([]vector.Vector[D](nil), e.Velocities...),
		Accelerations: append([]vector.Vector[D](nil), e.Accelerations...),
	}
}
