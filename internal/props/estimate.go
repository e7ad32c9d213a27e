package props

import "math"

// Estimate is a property's current value together with its running sums.
// After Avg, Mean and StdDev describe the averaging window.
type Estimate struct {
	Val  float64
	sum  float64
	sum2 float64

	Mean   float64
	StdDev float64
}

func (e *Estimate) zero() {
	e.sum = 0
	e.sum2 = 0
}

func (e *Estimate) accum() {
	e.sum += e.Val
	e.sum2 += e.Val * e.Val
}

func (e *Estimate) avg(n int) {
	if n == 0 {
		e.Mean, e.StdDev = 0, 0
		return
	}
	e.Mean = e.sum / float64(n)
	e.StdDev = math.Sqrt(math.Max(e.sum2/float64(n)-e.Mean*e.Mean, 0))
}
