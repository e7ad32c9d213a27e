package job

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/charmbracelet/log"
	"github.com/san-kum/moldyn/internal/boundary"
	"github.com/san-kum/moldyn/internal/integrators"
	"github.com/san-kum/moldyn/internal/lattice"
	"github.com/san-kum/moldyn/internal/potential"
	"github.com/san-kum/moldyn/internal/props"
	"github.com/san-kum/moldyn/internal/state"
	"github.com/san-kum/moldyn/internal/vector"
)

const (
	DefaultDeltaT = 0.005
	DefaultEdge   = 50.0
)

// Setup builds a Job. The zero-configuration job has a cubic box of edge
// DefaultEdge, a Lennard-Jones potential with the default cutoff, trivial
// properties, an empty in-memory state and DefaultDeltaT.
type Setup[D vector.Dimension] struct {
	job       Job[D]
	resumeAt  float64
	resume    bool
	skipPrime bool
	built     bool
}

func NewSetup[D vector.Dimension]() *Setup[D] {
	return &Setup[D]{
		job: Job[D]{
			state:      state.NewInMemory(state.Ensemble[D]{}),
			boundaries: boundary.MustRegion(vector.Fill[D](DefaultEdge)),
			potential:  potential.NewLennardJones[D](potential.DefaultCutoff),
			props:      props.Trivial[D]{},
			integrator: integrators.NewLeapfrog[D](),
			logger:     log.Default(),
			deltaT:     DefaultDeltaT,
		},
	}
}

func (s *Setup[D]) DeltaT(dt float64) *Setup[D] {
	s.job.deltaT = dt
	return s
}

func (s *Setup[D]) Potential(p potential.Potential[D]) *Setup[D] {
	s.job.potential = p
	return s
}

func (s *Setup[D]) Props(a props.Accumulator[D]) *Setup[D] {
	s.job.props = a
	return s
}

func (s *Setup[D]) Boundaries(b boundary.Conditions[D]) *Setup[D] {
	s.job.boundaries = b
	return s
}

func (s *Setup[D]) Integrator(i integrators.Integrator[D]) *Setup[D] {
	s.job.integrator = i
	return s
}

// State replaces the molecular state. Positions set earlier are discarded.
func (s *Setup[D]) State(m state.Molecular[D]) *Setup[D] {
	s.job.state = m
	return s
}

func (s *Setup[D]) Logger(l *log.Logger) *Setup[D] {
	s.job.logger = l
	return s
}

// InitPos replaces the positions and zeroes velocities and accelerations.
func (s *Setup[D]) InitPos(pos []vector.Vector[D]) *Setup[D] {
	*s.job.state.Ensemble() = state.NewEnsemble(pos)
	return s
}

// RandomVel assigns every particle a speed of sqrt(T*D*(1-1/N)) in a random
// direction and removes the center-of-mass velocity.
func (s *Setup[D]) RandomVel(temperature float64, rng *rand.Rand) *Setup[D] {
	ens := s.job.state.Ensemble()
	n := len(ens.Velocities)
	if n == 0 {
		return s
	}

	dim := float64(vector.DimOf[D]())
	mag := math.Sqrt(temperature * dim * (1 - 1/float64(n)))
	lattice.RandomizeVectors(ens.Velocities, mag, rng)
	lattice.ShiftVectors(ens.Velocities, vector.Sum(ens.Velocities).Scale(-1/float64(n)))
	return s
}

// Resume starts the step counter at the step closest to time, for continuing
// a restored state.
func (s *Setup[D]) Resume(time float64) *Setup[D] {
	s.resumeAt = time
	s.resume = true
	return s
}

// SkipForcePrime leaves the initial accelerations as they are instead of
// evaluating the potential once in Job.
func (s *Setup[D]) SkipForcePrime() *Setup[D] {
	s.skipPrime = true
	return s
}

// Job validates the configuration and returns the job. Unless skipped, the
// accelerations are evaluated at the initial positions. The job takes over the
// state, so a Setup builds at most one job; later calls return ErrSetupUsed.
func (s *Setup[D]) Job() (*Job[D], error) {
	if s.built {
		return nil, ErrSetupUsed
	}
	j := s.job
	if j.deltaT <= 0 || math.IsNaN(j.deltaT) || math.IsInf(j.deltaT, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidTimeStep, j.deltaT)
	}

	ens := j.state.Ensemble()
	if err := ens.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDimensionMismatch, err)
	}

	if s.resume {
		j.stepCount = int(math.Round(s.resumeAt / j.deltaT))
	}

	if !s.skipPrime && len(ens.Positions) > 0 {
		j.potential.ComputeForces(ens.Positions, ens.Accelerations, j.boundaries)
	}
	s.built = true
	return &j, nil
}
