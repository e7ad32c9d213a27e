package job_test

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/moldyn/internal/boundary"
	"github.com/san-kum/moldyn/internal/job"
	"github.com/san-kum/moldyn/internal/lattice"
	"github.com/san-kum/moldyn/internal/potential"
	"github.com/san-kum/moldyn/internal/props"
	"github.com/san-kum/moldyn/internal/state"
	"github.com/san-kum/moldyn/internal/vector"
)

type vec3 = vector.Vector[vector.D3]

// failingState fails to sync from step failAt on.
type failingState struct {
	state.InMemory[vector.D3]
	syncs  int
	failAt int
}

func (f *failingState) Sync(float64) error {
	f.syncs++
	if f.syncs >= f.failAt {
		return errors.New("disk full")
	}
	return nil
}

// countingProps records how often each phase of the property cycle runs.
type countingProps struct {
	every                             int
	resets, evals, accums, avgs, sums int
}

func (c *countingProps) Reset()                                 { c.resets++ }
func (c *countingProps) Eval(props.EnergySource, []vec3, []vec3) { c.evals++ }
func (c *countingProps) Accum()                                 { c.accums++ }
func (c *countingProps) NeedAvg(step int) bool                  { return step%c.every == 0 }
func (c *countingProps) Avg()                                   { c.avgs++ }
func (c *countingProps) Summarize()                             { c.sums++ }

func totalEnergy(j *job.Job[vector.D3]) float64 {
	var kin float64
	for _, v := range j.Velocities() {
		kin += 0.5 * v.SquareLength()
	}
	return kin + j.Potential().USum()
}

var _ = Describe("Job", func() {
	ctx := context.Background()

	Describe("time keeping", func() {
		It("advances time by dt per step", func() {
			j, err := job.NewSetup[vector.D3]().DeltaT(1e-3).Logger(quiet).Job()
			Expect(err).NotTo(HaveOccurred())
			Expect(j.Run(ctx, 100)).To(Succeed())
			Expect(j.StepCount()).To(Equal(100))
			Expect(j.TimeNow()).To(BeNumerically("~", 0.1, 1e-12))
		})

		It("continues from where the last run stopped", func() {
			j, err := job.NewSetup[vector.D2]().Logger(quiet).Job()
			Expect(err).NotTo(HaveOccurred())
			Expect(j.Run(ctx, 10)).To(Succeed())
			Expect(j.Run(ctx, 5)).To(Succeed())
			Expect(j.Step()).To(Succeed())
			Expect(j.StepCount()).To(Equal(16))
			Expect(j.Running()).To(BeFalse())
		})

		It("treats a non-positive step count as a no-op", func() {
			j, err := job.NewSetup[vector.D1]().Logger(quiet).Job()
			Expect(err).NotTo(HaveOccurred())
			Expect(j.Run(ctx, 0)).To(Succeed())
			Expect(j.Run(ctx, -3)).To(Succeed())
			Expect(j.StepCount()).To(Equal(0))
		})

		It("resumes the step counter from a restored time", func() {
			j, err := job.NewSetup[vector.D3]().Resume(0.5).Logger(quiet).Job()
			Expect(err).NotTo(HaveOccurred())
			Expect(j.StepCount()).To(Equal(100))
			Expect(j.Run(ctx, 1)).To(Succeed())
			Expect(j.TimeNow()).To(BeNumerically("~", 0.505, 1e-12))
		})
	})

	Describe("defaults", func() {
		It("uses a cubic box of edge 50 and dt 0.005", func() {
			j, err := job.NewSetup[vector.D3]().Logger(quiet).Job()
			Expect(err).NotTo(HaveOccurred())
			Expect(j.DeltaT()).To(Equal(job.DefaultDeltaT))
			extents, ok := j.Extents()
			Expect(ok).To(BeTrue())
			Expect(extents).To(Equal(vector.Fill[vector.D3](50)))
			Expect(j.NumParticles()).To(Equal(0))

			lj, ok := j.Potential().(*potential.LennardJones[vector.D3])
			Expect(ok).To(BeTrue())
			Expect(lj.Cutoff()).To(Equal(potential.DefaultCutoff))
			Expect(j.Props()).To(BeAssignableToTypeOf(props.Trivial[vector.D3]{}))
		})

		It("has no extents without a region", func() {
			j, err := job.NewSetup[vector.D2]().Boundaries(boundary.Unbounded[vector.D2]{}).Logger(quiet).Job()
			Expect(err).NotTo(HaveOccurred())
			_, ok := j.Extents()
			Expect(ok).To(BeFalse())
		})
	})

	Describe("validation", func() {
		DescribeTable("rejects invalid time steps",
			func(dt float64) {
				_, err := job.NewSetup[vector.D3]().DeltaT(dt).Logger(quiet).Job()
				Expect(err).To(MatchError(job.ErrInvalidTimeStep))
			},
			Entry("zero", 0.0),
			Entry("negative", -0.01),
			Entry("NaN", math.NaN()),
			Entry("infinite", math.Inf(1)),
		)

		It("rejects a mismatched ensemble", func() {
			m := state.NewInMemory(state.Ensemble[vector.D3]{
				Positions:  make([]vec3, 3),
				Velocities: make([]vec3, 2),
			})
			_, err := job.NewSetup[vector.D3]().State(m).Logger(quiet).Job()
			Expect(err).To(MatchError(job.ErrDimensionMismatch))
		})

		It("builds at most one job per setup", func() {
			setup := job.NewSetup[vector.D2]().Logger(quiet)
			_, err := setup.Job()
			Expect(err).NotTo(HaveOccurred())
			_, err = setup.Job()
			Expect(err).To(MatchError(job.ErrSetupUsed))
		})
	})

	Describe("free particles on a lattice", func() {
		It("leaves particles at rest in place", func() {
			region, pos, err := lattice.Cubic[vector.D3](1000, 0.8)
			Expect(err).NotTo(HaveOccurred())
			initial := append([]vec3(nil), pos...)

			j, err := job.NewSetup[vector.D3]().
				DeltaT(1e-3).
				Boundaries(region).
				InitPos(pos).
				Potential(potential.NoInteraction[vector.D3]{}).
				Logger(quiet).
				Job()
			Expect(err).NotTo(HaveOccurred())

			Expect(j.Run(ctx, 100)).To(Succeed())
			Expect(j.TimeNow()).To(BeNumerically("~", 0.1, 1e-12))
			Expect(j.Positions()).To(HaveLen(1000))
			for i, p := range j.Positions() {
				Expect(p).To(Equal(initial[i]), "particle %d moved", i)
			}
		})

		It("keeps the total momentum at zero", func() {
			region, pos, err := lattice.Cubic[vector.D3](1000, 0.8)
			Expect(err).NotTo(HaveOccurred())

			j, err := job.NewSetup[vector.D3]().
				Boundaries(region).
				InitPos(pos).
				RandomVel(1, rand.New(rand.NewSource(1))).
				Potential(potential.NoInteraction[vector.D3]{}).
				Logger(quiet).
				Job()
			Expect(err).NotTo(HaveOccurred())
			Expect(j.NumParticles()).To(Equal(1000))

			Expect(j.Run(ctx, 100)).To(Succeed())
			Expect(j.TimeNow()).To(BeNumerically("~", 0.5, 1e-12))
			Expect(j.VelSum().Length()).To(BeNumerically("<", 1e-3))
			Expect(j.CheckStability()).To(Succeed())
		})
	})

	Describe("Lennard-Jones fluid", func() {
		It("conserves momentum", func() {
			region, pos, err := lattice.Cubic[vector.D3](216, 0.8)
			Expect(err).NotTo(HaveOccurred())

			j, err := job.NewSetup[vector.D3]().
				Boundaries(region).
				InitPos(pos).
				RandomVel(1, rand.New(rand.NewSource(2))).
				Logger(quiet).
				Job()
			Expect(err).NotTo(HaveOccurred())

			Expect(j.Run(ctx, 200)).To(Succeed())
			Expect(j.VelSum().Length()).To(BeNumerically("<", 1e-8))
			Expect(j.CheckStability()).To(Succeed())
		})

		It("keeps the energy drift bounded with the repulsive cutoff", func() {
			region, pos, err := lattice.Cubic[vector.D3](125, 0.6)
			Expect(err).NotTo(HaveOccurred())

			j, err := job.NewSetup[vector.D3]().
				Boundaries(region).
				InitPos(pos).
				RandomVel(1, rand.New(rand.NewSource(3))).
				Potential(potential.NewLennardJones[vector.D3](potential.WCACutoff)).
				DeltaT(0.002).
				Logger(quiet).
				Job()
			Expect(err).NotTo(HaveOccurred())

			e0 := totalEnergy(j)
			Expect(e0).To(BeNumerically(">", 0))
			for i := 0; i < 50; i++ {
				Expect(j.Run(ctx, 10)).To(Succeed())
				Expect(math.Abs(totalEnergy(j)-e0) / e0).To(BeNumerically("<", 1e-2))
			}
		})

		It("gives the same trajectory with a parallel kernel", func() {
			build := func(p potential.Potential[vector.D3]) *job.Job[vector.D3] {
				region, pos, err := lattice.Cubic[vector.D3](125, 0.8)
				Expect(err).NotTo(HaveOccurred())
				j, err := job.NewSetup[vector.D3]().
					Boundaries(region).
					InitPos(pos).
					RandomVel(1, rand.New(rand.NewSource(4))).
					Potential(p).
					Logger(quiet).
					Job()
				Expect(err).NotTo(HaveOccurred())
				return j
			}

			serial := build(potential.NewLennardJones[vector.D3](potential.DefaultCutoff))
			parallel := build(potential.NewLennardJones[vector.D3](potential.DefaultCutoff, potential.WithWorkers(4)))
			Expect(serial.Run(ctx, 20)).To(Succeed())
			Expect(parallel.Run(ctx, 20)).To(Succeed())

			for i, p := range serial.Positions() {
				Expect(p.Sub(parallel.Positions()[i]).Length()).To(BeNumerically("<", 1e-8))
			}
		})
	})

	Describe("property cycle", func() {
		It("evaluates every step and averages on demand", func() {
			c := &countingProps{every: 2}
			_, pos, err := lattice.Cubic[vector.D3](8, 0.5)
			Expect(err).NotTo(HaveOccurred())
			j, err := job.NewSetup[vector.D3]().InitPos(pos).Props(c).Logger(quiet).Job()
			Expect(err).NotTo(HaveOccurred())

			Expect(j.Run(ctx, 5)).To(Succeed())
			Expect(c.evals).To(Equal(5))
			Expect(c.accums).To(Equal(5))
			Expect(c.avgs).To(Equal(2))
			Expect(c.sums).To(Equal(2))
			Expect(c.resets).To(Equal(2))
		})

		It("feeds the thermodynamic accumulator", func() {
			region, pos, err := lattice.Cubic[vector.D3](64, 0.8)
			Expect(err).NotTo(HaveOccurred())
			th := props.NewThermo[vector.D3](0.8, 10, props.WithLogger(quiet))

			j, err := job.NewSetup[vector.D3]().
				Boundaries(region).
				InitPos(pos).
				RandomVel(1, rand.New(rand.NewSource(5))).
				Props(th).
				Logger(quiet).
				Job()
			Expect(err).NotTo(HaveOccurred())
			Expect(j.Run(ctx, 30)).To(Succeed())

			summaries := th.Summaries()
			Expect(summaries).To(HaveLen(3))
			Expect(summaries[2].Step).To(Equal(30))
			Expect(summaries[0].Kinetic).To(BeNumerically(">", 0))
		})
	})

	Describe("errors", func() {
		It("stops and reports a failed sync", func() {
			fs := &failingState{failAt: 3}
			j, err := job.NewSetup[vector.D3]().State(fs).Logger(quiet).Job()
			Expect(err).NotTo(HaveOccurred())

			err = j.Run(ctx, 10)
			Expect(err).To(MatchError(job.ErrCheckpoint))
			Expect(err).To(MatchError(ContainSubstring("disk full")))

			var simErr *job.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Step).To(Equal(3))
			Expect(j.StepCount()).To(Equal(3))
		})

		It("stops between steps when the context is canceled", func() {
			canceled, cancel := context.WithCancel(ctx)
			cancel()

			j, err := job.NewSetup[vector.D3]().Logger(quiet).Job()
			Expect(err).NotTo(HaveOccurred())
			err = j.Run(canceled, 10)
			Expect(err).To(MatchError(job.ErrCanceled))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(j.StepCount()).To(Equal(0))
		})

		It("detects particles outrunning the box", func() {
			m := state.NewInMemory(state.NewEnsemble([]vec3{{}}))
			m.Ensemble().Velocities[0] = vector.New[vector.D3](0, 20000, 0)
			j, err := job.NewSetup[vector.D3]().State(m).Logger(quiet).Job()
			Expect(err).NotTo(HaveOccurred())
			Expect(j.CheckStability()).To(MatchError(job.ErrUnstable))
		})

		It("stops a run once particles outrun the box", func() {
			m := state.NewInMemory(state.NewEnsemble([]vec3{{}}))
			m.Ensemble().Velocities[0] = vector.New[vector.D3](0, 20000, 0)
			j, err := job.NewSetup[vector.D3]().
				State(m).
				Potential(potential.NoInteraction[vector.D3]{}).
				Logger(quiet).
				Job()
			Expect(err).NotTo(HaveOccurred())

			err = j.Run(ctx, 10)
			Expect(err).To(MatchError(job.ErrUnstable))
			var simErr *job.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Step).To(Equal(1))
			Expect(j.StepCount()).To(Equal(1))
		})

		It("detects non-finite velocities", func() {
			m := state.NewInMemory(state.NewEnsemble([]vec3{{}}))
			m.Ensemble().Velocities[0] = vector.New[vector.D3](math.NaN(), 0, 0)
			j, err := job.NewSetup[vector.D3]().
				State(m).
				Boundaries(boundary.Unbounded[vector.D3]{}).
				Logger(quiet).
				Job()
			Expect(err).NotTo(HaveOccurred())
			Expect(j.CheckStability()).To(MatchError(job.ErrUnstable))
		})
	})

	Describe("checkpoint and restart", func() {
		var path string

		BeforeEach(func() {
			dir, err := os.MkdirTemp("", "moldyn-job-*")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(os.RemoveAll, dir)
			path = filepath.Join(dir, "track.log")
		})

		It("continues a run from its track log", func() {
			region, pos, err := lattice.Cubic[vector.D3](27, 0.8)
			Expect(err).NotTo(HaveOccurred())

			tr, err := state.OpenTrack[vector.D3](path, state.WithLogger(quiet))
			Expect(err).NotTo(HaveOccurred())
			first, err := job.NewSetup[vector.D3]().
				State(tr).
				Boundaries(region).
				InitPos(pos).
				RandomVel(1, rand.New(rand.NewSource(6))).
				Logger(quiet).
				Job()
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Run(ctx, 20)).To(Succeed())
			Expect(first.Close()).To(Succeed())

			restored, status, err := state.RestoreTrack[vector.D3](path, state.WithLogger(quiet))
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(Equal(state.Restored))
			Expect(restored.LastTime()).To(BeNumerically("~", first.TimeNow(), 1e-12))

			second, err := job.NewSetup[vector.D3]().
				State(restored).
				Boundaries(region).
				Resume(restored.LastTime()).
				Logger(quiet).
				Job()
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(second.Close)
			Expect(second.StepCount()).To(Equal(20))
			Expect(second.Positions()).To(Equal(first.Positions()))

			Expect(first.Run(ctx, 5)).To(HaveOccurred())
			Expect(second.Run(ctx, 5)).To(Succeed())
			Expect(second.StepCount()).To(Equal(25))
		})
	})
})
