package potential

import (
	"fmt"
	"math"
	"sync"

	"github.com/san-kum/moldyn/internal/boundary"
	"github.com/san-kum/moldyn/internal/vector"
)

const (
	// DefaultCutoff truncates the interaction at 2.5 sigma.
	DefaultCutoff = 2.5

	// parallelThreshold is the particle count below which extra workers are
	// not worth their goroutines.
	parallelThreshold = 64
)

// WCACutoff is the potential minimum, 2^(1/6). With this cutoff the shifted
// potential is purely repulsive and goes continuously to zero.
var WCACutoff = math.Pow(2, 1.0/6)

// LennardJones is the truncated and shifted 12-6 potential in reduced units.
type LennardJones[D vector.Dimension] struct {
	rCut    float64
	workers int
	uSum    atomicFloat
	vSum    atomicFloat
}

type Option func(*options)

type options struct {
	workers int
}

// WithWorkers spreads the pair loop over n goroutines. Each worker owns its own
// partial accelerations which are summed once all workers are done.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

func NewLennardJones[D vector.Dimension](rCut float64, opts ...Option) *LennardJones[D] {
	o := options{workers: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	return &LennardJones[D]{rCut: rCut, workers: o.workers}
}

func (lj *LennardJones[D]) Cutoff() float64 { return lj.rCut }
func (lj *LennardJones[D]) Workers() int    { return lj.workers }

func (lj *LennardJones[D]) USum() float64      { return lj.uSum.Load() }
func (lj *LennardJones[D]) VirialSum() float64 { return lj.vSum.Load() }

func (lj *LennardJones[D]) ComputeForces(pos, acc []vector.Vector[D], b boundary.Conditions[D]) {
	n := len(pos)
	if n != len(acc) {
		panic(fmt.Sprintf("potential: %d positions but %d accelerations", n, len(acc)))
	}

	vector.Reset(acc)

	var uSum, vSum float64
	if lj.workers > 1 && n >= parallelThreshold {
		uSum, vSum = lj.forcesParallel(pos, acc, b)
	} else {
		uSum, vSum = lj.pairs(pos, acc, b, 0, 1)
	}

	lj.uSum.Store(uSum)
	lj.vSum.Store(vSum)
}

// pairs accumulates every pair (j1, j2>j1) with j1 = first, first+stride, ...
// into acc and returns the energy and virial of those pairs.
func (lj *LennardJones[D]) pairs(pos, acc []vector.Vector[D], b boundary.Conditions[D], first, stride int) (uSum, vSum float64) {
	n := len(pos)
	rrCut := lj.rCut * lj.rCut

	for j1 := first; j1 < n-1; j1 += stride {
		for j2 := j1 + 1; j2 < n; j2++ {
			dr := pos[j1].Sub(pos[j2])
			b.Wrap(&dr)
			rr := dr.SquareLength()
			if rr >= rrCut {
				continue
			}

			rri := 1 / rr
			rri3 := rri * rri * rri
			fcVal := 48 * rri3 * (rri3 - 0.5) * rri
			force := dr.Scale(fcVal)

			acc[j1] = acc[j1].Add(force)
			acc[j2] = acc[j2].Sub(force)

			uSum += 4*rri3*(rri3-1) + 1
			vSum += fcVal * rr
		}
	}
	return uSum, vSum
}

func (lj *LennardJones[D]) forcesParallel(pos, acc []vector.Vector[D], b boundary.Conditions[D]) (float64, float64) {
	n := len(pos)
	workers := lj.workers

	localAcc := make([][]vector.Vector[D], workers)
	localU := make([]float64, workers)
	localV := make([]float64, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		localAcc[w] = make([]vector.Vector[D], n)
		wg.Add(1)
		// Interleaved rows keep the triangular loop balanced across workers.
		go func(worker int) {
			defer wg.Done()
			localU[worker], localV[worker] = lj.pairs(pos, localAcc[worker], b, worker, workers)
		}(w)
	}
	wg.Wait()

	var uSum, vSum float64
	for w := 0; w < workers; w++ {
		for i := 0; i < n; i++ {
			acc[i] = acc[i].Add(localAcc[w][i])
		}
		uSum += localU[w]
		vSum += localV[w]
	}
	return uSum, vSum
}
