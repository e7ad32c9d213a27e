package potential

import (
	"math"
	"math/rand"
	"testing"

	"github.com/san-kum/moldyn/internal/boundary"
	"github.com/san-kum/moldyn/internal/vector"
)

type vec3 = vector.Vector[vector.D3]

// jitteredLattice places perAxis^3 particles on a grid of the given spacing,
// centered on the origin, each displaced by at most 0.1 per axis.
func jitteredLattice(perAxis int, spacing float64, seed int64) []vec3 {
	rng := rand.New(rand.NewSource(seed))
	edge := float64(perAxis) * spacing
	pos := make([]vec3, 0, perAxis*perAxis*perAxis)
	for i := 0; i < perAxis; i++ {
		for j := 0; j < perAxis; j++ {
			for k := 0; k < perAxis; k++ {
				site := vector.New[vector.D3](float64(i), float64(j), float64(k)).
					Add(vector.Fill[vector.D3](0.5)).
					Scale(spacing).
					Sub(vector.Fill[vector.D3](edge / 2))
				pos = append(pos, site.Add(vector.Random[vector.D3](rng).Scale(0.2)))
			}
		}
	}
	return pos
}

func TestLennardJonesPair(t *testing.T) {
	lj := NewLennardJones[vector.D3](DefaultCutoff)
	region := boundary.MustRegion(vector.Fill[vector.D3](10))

	pos := []vec3{vector.New[vector.D3](0, 0, 0), vector.New[vector.D3](1, 0, 0)}
	acc := make([]vec3, 2)
	lj.ComputeForces(pos, acc, region)

	// At r = 1: rri3 = 1, so the force factor is 24 and the pair energy is the shift.
	if got := acc[0].At(0); math.Abs(got+24) > 1e-12 {
		t.Errorf("expected acc[0].x = -24, got %f", got)
	}
	if acc[0] != acc[1].Neg() {
		t.Errorf("pair forces not opposite: %v vs %v", acc[0], acc[1])
	}
	if math.Abs(lj.USum()-1) > 1e-12 {
		t.Errorf("expected energy 1, got %f", lj.USum())
	}
	if math.Abs(lj.VirialSum()-24) > 1e-12 {
		t.Errorf("expected virial 24, got %f", lj.VirialSum())
	}
}

func TestLennardJonesCutoff(t *testing.T) {
	lj := NewLennardJones[vector.D2](DefaultCutoff)
	region := boundary.MustRegion(vector.Fill[vector.D2](20))

	pos := []vector.Vector[vector.D2]{vector.New[vector.D2](0, 0), vector.New[vector.D2](2.5, 0)}
	acc := []vector.Vector[vector.D2]{vector.New[vector.D2](7, 7), vector.New[vector.D2](7, 7)}
	lj.ComputeForces(pos, acc, region)

	for i, a := range acc {
		if a != (vector.Vector[vector.D2]{}) {
			t.Errorf("acc[%d] should be reset to zero, got %v", i, a)
		}
	}
	if lj.USum() != 0 || lj.VirialSum() != 0 {
		t.Errorf("expected zero sums beyond cutoff, got u=%f v=%f", lj.USum(), lj.VirialSum())
	}
}

func TestLennardJonesMinimumImage(t *testing.T) {
	lj := NewLennardJones[vector.D1](DefaultCutoff)
	region := boundary.MustRegion(vector.New[vector.D1](10))

	// 9 apart directly, 1 apart through the boundary.
	pos := []vector.Vector[vector.D1]{vector.New[vector.D1](-4.5), vector.New[vector.D1](4.5)}
	acc := make([]vector.Vector[vector.D1], 2)
	lj.ComputeForces(pos, acc, region)

	// The wrapped separation pos[0]-pos[1] is +1, so particle 0 is pushed to +x.
	if math.Abs(acc[0].At(0)-24) > 1e-9 {
		t.Errorf("expected acc[0] = 24 through the boundary, got %f", acc[0].At(0))
	}
}

func TestLennardJonesMomentumConservation(t *testing.T) {
	lj := NewLennardJones[vector.D3](DefaultCutoff)
	region := boundary.MustRegion(vector.Fill[vector.D3](4.4))
	pos := jitteredLattice(4, 1.1, 3)
	acc := make([]vec3, len(pos))

	lj.ComputeForces(pos, acc, region)

	total := vector.Sum(acc)
	var scale float64
	for _, a := range acc {
		scale = math.Max(scale, a.Length())
	}
	if total.Length() > 1e-9*math.Max(1, scale) {
		t.Errorf("net force should vanish, got %v", total)
	}
}

func TestLennardJonesParallelMatchesSerial(t *testing.T) {
	region := boundary.MustRegion(vector.Fill[vector.D3](6.6))
	pos := jitteredLattice(6, 1.1, 11)

	serial := NewLennardJones[vector.D3](DefaultCutoff)
	parallel := NewLennardJones[vector.D3](DefaultCutoff, WithWorkers(4))
	if parallel.Workers() != 4 {
		t.Fatalf("expected 4 workers, got %d", parallel.Workers())
	}

	accS := make([]vec3, len(pos))
	accP := make([]vec3, len(pos))
	serial.ComputeForces(pos, accS, region)
	parallel.ComputeForces(pos, accP, region)

	for i := range pos {
		diff := accS[i].Sub(accP[i]).Length()
		if diff > 1e-6*math.Max(1, accS[i].Length()) {
			t.Fatalf("particle %d: serial %v, parallel %v", i, accS[i], accP[i])
		}
	}
	if rel := math.Abs(serial.USum()-parallel.USum()) / math.Max(1, math.Abs(serial.USum())); rel > 1e-9 {
		t.Errorf("energy mismatch: %f vs %f", serial.USum(), parallel.USum())
	}
	if rel := math.Abs(serial.VirialSum()-parallel.VirialSum()) / math.Max(1, math.Abs(serial.VirialSum())); rel > 1e-9 {
		t.Errorf("virial mismatch: %f vs %f", serial.VirialSum(), parallel.VirialSum())
	}
}

func TestLennardJonesLengthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on mismatched lengths")
		}
	}()
	lj := NewLennardJones[vector.D2](DefaultCutoff)
	lj.ComputeForces(make([]vector.Vector[vector.D2], 3), make([]vector.Vector[vector.D2], 2), boundary.Unbounded[vector.D2]{})
}

func TestLennardJonesEmpty(t *testing.T) {
	lj := NewLennardJones[vector.D3](DefaultCutoff)
	lj.ComputeForces(nil, nil, boundary.Unbounded[vector.D3]{})
	if lj.USum() != 0 {
		t.Errorf("expected zero energy, got %f", lj.USum())
	}
}

func TestNoInteraction(t *testing.T) {
	var p Potential[vector.D2] = NoInteraction[vector.D2]{}
	acc := []vector.Vector[vector.D2]{vector.New[vector.D2](1, 2)}
	p.ComputeForces(make([]vector.Vector[vector.D2], 1), acc, boundary.Unbounded[vector.D2]{})
	if acc[0] != vector.New[vector.D2](1, 2) {
		t.Errorf("no-interaction must not touch accelerations, got %v", acc[0])
	}
	if p.USum() != 0 || p.VirialSum() != 0 {
		t.Error("expected zero sums")
	}
}

func BenchmarkLennardJones(b *testing.B) {
	region := boundary.MustRegion(vector.Fill[vector.D3](11))
	pos := jitteredLattice(10, 1.1, 5)
	acc := make([]vec3, len(pos))

	for _, workers := range []int{1, 4} {
		lj := NewLennardJones[vector.D3](DefaultCutoff, WithWorkers(workers))
		name := "serial"
		if workers > 1 {
			name = "parallel"
		}
		b.Run(name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				lj.ComputeForces(pos, acc, region)
			}
		})
	}
}
