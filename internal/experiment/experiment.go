// Package experiment turns a config.Config into a running simulation whose
// dimension is chosen at run time.
package experiment

import (
	"context"
	"fmt"
	"io"
	"math/rand"

	"github.com/charmbracelet/log"
	"github.com/san-kum/moldyn/internal/config"
	"github.com/san-kum/moldyn/internal/job"
	"github.com/san-kum/moldyn/internal/lattice"
	"github.com/san-kum/moldyn/internal/props"
	"github.com/san-kum/moldyn/internal/state"
	"github.com/san-kum/moldyn/internal/vector"
)

// Runner is a job with its dimension erased. Vectors are reported as slices of
// Dim() components.
type Runner interface {
	Run(ctx context.Context, steps int) error
	Step() error
	Positions() [][]float64
	Extents() []float64
	TimeNow() float64
	StepCount() int
	DeltaT() float64
	Dim() int
	NumParticles() int
	// Current holds the instantaneous properties of the latest step.
	Current() props.Summary
	Summaries() []props.Summary
	// Restored reports whether the initial state came from a checkpoint.
	Restored() bool
	CheckStability() error
	Close() error
}

type Option func(*options)

type options struct {
	logger      *log.Logger
	observer    func(props.Summary)
	trackPath   string
	restorePath string
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver forwards every property summary to fn.
func WithObserver(fn func(props.Summary)) Option {
	return func(o *options) { o.observer = fn }
}

// WithTrack writes a checkpoint line to path after every step.
func WithTrack(path string) Option {
	return func(o *options) { o.trackPath = path }
}

// WithRestore continues from the last checkpoint in path and keeps appending
// to it. Without a usable checkpoint the run starts fresh.
func WithRestore(path string) Option {
	return func(o *options) { o.restorePath = path }
}

// New validates cfg and builds a runner of dimension cfg.Dim.
func New(cfg *config.Config, opts ...Option) (Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: log.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	switch cfg.Dim {
	case 1:
		return newRunner[vector.D1](cfg, o)
	case 2:
		return newRunner[vector.D2](cfg, o)
	case 3:
		return newRunner[vector.D3](cfg, o)
	case 4:
		return newRunner[vector.D4](cfg, o)
	default:
		return nil, fmt.Errorf("%w: unsupported dimension %d", job.ErrDimensionMismatch, cfg.Dim)
	}
}

type runner[D vector.Dimension] struct {
	cfg      config.Config
	job      *job.Job[D]
	thermo   *props.Thermo[D]
	restored bool
}

func newRunner[D vector.Dimension](cfg *config.Config, o options) (*runner[D], error) {
	reg := NewRegistry[D]()
	pot, err := reg.GetPotential(cfg.Potential, cfg)
	if err != nil {
		return nil, err
	}
	integ, err := reg.GetIntegrator("leapfrog")
	if err != nil {
		return nil, err
	}

	region, pos, err := lattice.Cubic[D](cfg.Particles, cfg.Density)
	if err != nil {
		return nil, err
	}

	thermoOpts := []props.ThermoOption{props.WithLogger(o.logger)}
	if o.observer != nil {
		thermoOpts = append(thermoOpts, props.WithObserver(o.observer))
	}
	thermo := props.NewThermo[D](cfg.Density, cfg.StepAvg, thermoOpts...)

	setup := job.NewSetup[D]().
		DeltaT(cfg.Dt).
		Potential(pot).
		Integrator(integ).
		Props(thermo).
		Boundaries(region).
		Logger(o.logger)

	rng := rand.New(rand.NewSource(cfg.Seed))
	restored := false
	var closer io.Closer

	switch {
	case o.restorePath != "":
		tr, status, err := state.RestoreTrack[D](o.restorePath, state.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		closer = tr
		setup.State(tr)
		if status == state.Restored {
			setup.Resume(tr.LastTime())
			restored = true
		} else {
			setup.InitPos(pos).RandomVel(cfg.Temperature, rng)
		}
	case o.trackPath != "":
		tr, err := state.OpenTrack[D](o.trackPath, state.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		closer = tr
		setup.State(tr).InitPos(pos).RandomVel(cfg.Temperature, rng)
	default:
		setup.InitPos(pos).RandomVel(cfg.Temperature, rng)
	}

	j, err := setup.Job()
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}

	o.logger.Info("simulation ready",
		"dim", vector.DimOf[D](),
		"particles", j.NumParticles(),
		"potential", cfg.Potential,
		"dt", cfg.Dt,
		"restored", restored,
	)

	return &runner[D]{cfg: *cfg, job: j, thermo: thermo, restored: restored}, nil
}

func (r *runner[D]) Run(ctx context.Context, steps int) error { return r.job.Run(ctx, steps) }
func (r *runner[D]) Step() error                              { return r.job.Step() }
func (r *runner[D]) TimeNow() float64                         { return r.job.TimeNow() }
func (r *runner[D]) StepCount() int                           { return r.job.StepCount() }
func (r *runner[D]) DeltaT() float64                          { return r.job.DeltaT() }
func (r *runner[D]) Dim() int                                 { return vector.DimOf[D]() }
func (r *runner[D]) NumParticles() int                        { return r.job.NumParticles() }
func (r *runner[D]) Current() props.Summary                   { return r.thermo.Current() }
func (r *runner[D]) Summaries() []props.Summary               { return r.thermo.Summaries() }
func (r *runner[D]) Restored() bool                           { return r.restored }
func (r *runner[D]) CheckStability() error                    { return r.job.CheckStability() }
func (r *runner[D]) Close() error                             { return r.job.Close() }

func (r *runner[D]) Positions() [][]float64 {
	pos := r.job.Positions()
	out := make([][]float64, len(pos))
	for i, p := range pos {
		out[i] = p.Components()
	}
	return out
}

func (r *runner[D]) Extents() []float64 {
	ext, ok := r.job.Extents()
	if !ok {
		return nil
	}
	return ext.Components()
}
