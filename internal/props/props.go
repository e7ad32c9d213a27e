// Package props evaluates and averages per-step ensemble properties.
//
// A job drives an [Accumulator] once per step: Eval, Accum, and when NeedAvg
// reports true, Avg, Summarize and Reset.
package props

import "github.com/san-kum/moldyn/internal/vector"

// EnergySource exposes the sums of the latest force evaluation.
type EnergySource interface {
	USum() float64
	VirialSum() float64
}

type Accumulator[D vector.Dimension] interface {
	Reset()
	Eval(u EnergySource, pos, vel []vector.Vector[D])
	Accum()
	NeedAvg(step int) bool
	Avg()
	Summarize()
}

// Trivial records nothing and averages on every step.
type Trivial[D vector.Dimension] struct{}

func (Trivial[D]) Reset()                                                    {}
func (Trivial[D]) Eval(EnergySource, []vector.Vector[D], []vector.Vector[D]) {}
func (Trivial[D]) Accum()                                                    {}
func (Trivial[D]) NeedAvg(int) bool                                          { return true }
func (Trivial[D]) Avg()                                                      {}
func (Trivial[D]) Summarize()                                                {}
