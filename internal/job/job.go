// Package job drives a molecular-dynamics run: integration, property
// accumulation and state synchronization, one step at a time.
package job

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/charmbracelet/log"
	"github.com/san-kum/moldyn/internal/boundary"
	"github.com/san-kum/moldyn/internal/integrators"
	"github.com/san-kum/moldyn/internal/potential"
	"github.com/san-kum/moldyn/internal/props"
	"github.com/san-kum/moldyn/internal/state"
	"github.com/san-kum/moldyn/internal/vector"
)

type Job[D vector.Dimension] struct {
	state      state.Molecular[D]
	boundaries boundary.Conditions[D]
	potential  potential.Potential[D]
	props      props.Accumulator[D]
	integrator integrators.Integrator[D]
	logger     *log.Logger

	stepCount int
	deltaT    float64
	running   bool
}

// Run advances the job by steps steps. The context is checked between steps.
// A failed sync or a failed CheckStability stops the run; the step that failed
// has already been counted.
func (j *Job[D]) Run(ctx context.Context, steps int) error {
	if steps <= 0 {
		return nil
	}

	j.running = true
	defer func() { j.running = false }()

	limit := j.stepCount + steps
	j.logger.Debug("run", "from", j.stepCount, "steps", steps, "dt", j.deltaT)

	for j.stepCount < limit {
		if err := ctx.Err(); err != nil {
			return &SimulationError{
				Step:    j.stepCount,
				Time:    j.TimeNow(),
				Wrapped: fmt.Errorf("%w: %w", ErrCanceled, err),
			}
		}
		if err := j.step(); err != nil {
			return err
		}
		if err := j.CheckStability(); err != nil {
			j.logger.Error("run stopped", "step", j.stepCount, "err", err)
			return err
		}
	}

	j.logger.Debug("run finished", "step", j.stepCount, "time", j.TimeNow())
	return nil
}

// Step advances the job by exactly one step.
func (j *Job[D]) Step() error {
	return j.step()
}

func (j *Job[D]) step() error {
	j.stepCount++

	ens := j.state.Ensemble()
	j.integrator.Step(j.deltaT, ens.Positions, ens.Velocities, ens.Accelerations, j.boundaries, j.potential)
	j.updateProps(ens)

	if err := j.state.Sync(j.TimeNow()); err != nil {
		return &SimulationError{
			Step:    j.stepCount,
			Time:    j.TimeNow(),
			Wrapped: fmt.Errorf("%w: %w", ErrCheckpoint, err),
		}
	}
	return nil
}

func (j *Job[D]) updateProps(ens *state.Ensemble[D]) {
	j.props.Eval(j.potential, ens.Positions, ens.Velocities)
	j.props.Accum()
	if j.props.NeedAvg(j.stepCount) {
		j.props.Avg()
		j.props.Summarize()
		j.props.Reset()
	}
}

// Positions returns the live position slice. Callers must not modify it.
func (j *Job[D]) Positions() []vector.Vector[D] { return j.state.Ensemble().Positions }

func (j *Job[D]) Velocities() []vector.Vector[D] { return j.state.Ensemble().Velocities }

func (j *Job[D]) NumParticles() int { return len(j.state.Ensemble().Positions) }

// Extents reports the box size when the boundary conditions have one.
func (j *Job[D]) Extents() (vector.Vector[D], bool) {
	sized, ok := j.boundaries.(boundary.Sized[D])
	if !ok {
		return vector.Vector[D]{}, false
	}
	return sized.Dimensions(), true
}

func (j *Job[D]) TimeNow() float64 { return j.deltaT * float64(j.stepCount) }

func (j *Job[D]) StepCount() int  { return j.stepCount }
func (j *Job[D]) DeltaT() float64 { return j.deltaT }
func (j *Job[D]) Running() bool   { return j.running }

func (j *Job[D]) VelSum() vector.Vector[D] {
	return vector.Sum(j.state.Ensemble().Velocities)
}

func (j *Job[D]) Potential() potential.Potential[D] { return j.potential }
func (j *Job[D]) Props() props.Accumulator[D]       { return j.props }
func (j *Job[D]) State() state.Molecular[D]         { return j.state }

// CheckStability returns ErrUnstable when any particle has a non-finite
// position or velocity, or would cross more than a box length in one step.
func (j *Job[D]) CheckStability() error {
	ens := j.state.Ensemble()
	extents, sized := j.Extents()

	for i := range ens.Positions {
		p, v := ens.Positions[i], ens.Velocities[i]
		if !p.IsFinite() || !v.IsFinite() {
			return j.unstable(fmt.Errorf("%w: particle %d is not finite", ErrUnstable, i))
		}
		if !sized {
			continue
		}
		for axis := 0; axis < v.Dim(); axis++ {
			if math.Abs(v.At(axis))*j.deltaT > extents.At(axis) {
				return j.unstable(fmt.Errorf("%w: particle %d crosses the box on axis %d", ErrUnstable, i, axis))
			}
		}
	}
	return nil
}

func (j *Job[D]) unstable(err error) error {
	return &SimulationError{Step: j.stepCount, Time: j.TimeNow(), Wrapped: err}
}

// Close releases the state if it holds resources.
func (j *Job[D]) Close() error {
	if c, ok := j.state.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
