// Package integrators advances particle ensembles in time.
package integrators

import (
	"fmt"

	"github.com/san-kum/moldyn/internal/boundary"
	"github.com/san-kum/moldyn/internal/potential"
	"github.com/san-kum/moldyn/internal/vector"
)

// Integrator advances positions and velocities by one time step. acc holds the
// accelerations at the current positions on entry and at the new positions on
// return.
type Integrator[D vector.Dimension] interface {
	Step(dt float64, pos, vel, acc []vector.Vector[D], b boundary.Conditions[D], p potential.Potential[D])
}

// Leapfrog is the kick-drift-kick scheme.
type Leapfrog[D vector.Dimension] struct{}

func NewLeapfrog[D vector.Dimension]() Leapfrog[D] {
	return Leapfrog[D]{}
}

func (Leapfrog[D]) Step(dt float64, pos, vel, acc []vector.Vector[D], b boundary.Conditions[D], p potential.Potential[D]) {
	SingleStep(dt, pos, vel, acc, b, p)
}

// SingleStep runs one leapfrog step: half kick, drift, wrap, force evaluation,
// half kick.
func SingleStep[D vector.Dimension](dt float64, pos, vel, acc []vector.Vector[D], b boundary.Conditions[D], p potential.Potential[D]) {
	checkLengths(pos, vel, acc)

	LeapfrogBegin(dt, pos, vel, acc)
	ApplyBoundaryConditions(pos, b)
	p.ComputeForces(pos, acc, b)
	LeapfrogEnd(dt, vel, acc)
}

// LeapfrogBegin kicks velocities by half a step and drifts positions a full step.
func LeapfrogBegin[D vector.Dimension](dt float64, pos, vel, acc []vector.Vector[D]) {
	checkLengths(pos, vel, acc)

	halfDt := 0.5 * dt
	for i := range pos {
		vel[i] = vel[i].Add(acc[i].Scale(halfDt))
		pos[i] = pos[i].Add(vel[i].Scale(dt))
	}
}

// LeapfrogEnd kicks velocities by the remaining half step.
func LeapfrogEnd[D vector.Dimension](dt float64, vel, acc []vector.Vector[D]) {
	if len(vel) != len(acc) {
		panic(fmt.Sprintf("integrators: %d velocities but %d accelerations", len(vel), len(acc)))
	}

	halfDt := 0.5 * dt
	for i := range vel {
		vel[i] = vel[i].Add(acc[i].Scale(halfDt))
	}
}

func ApplyBoundaryConditions[D vector.Dimension](pos []vector.Vector[D], b boundary.Conditions[D]) {
	for i := range pos {
		b.Wrap(&pos[i])
	}
}

func checkLengths[D vector.Dimension](pos, vel, acc []vector.Vector[D]) {
	if len(pos) != len(vel) || len(pos) != len(acc) {
		panic(fmt.Sprintf("integrators: mismatched ensemble (pos=%d vel=%d acc=%d)", len(pos), len(vel), len(acc)))
	}
}
