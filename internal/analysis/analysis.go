package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/moldyn/internal/props"
)

var ErrNoData = errors.New("analysis: no samples")

// Stat describes one property over a run.
type Stat struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Drift describes how a conserved quantity moved away from its first sample.
type Drift struct {
	Initial      float64 `json:"initial"`
	Final        float64 `json:"final"`
	Absolute     float64 `json:"absolute"`
	Relative     float64 `json:"relative"`
	MaxDeviation float64 `json:"max_deviation"`
}

type Report struct {
	Samples     int     `json:"samples"`
	Kinetic     Stat    `json:"kinetic"`
	Potential   Stat    `json:"potential"`
	Total       Stat    `json:"total"`
	Pressure    Stat    `json:"pressure"`
	Temperature Stat    `json:"temperature"`
	Drift       Drift   `json:"drift"`
	DriftRate   float64 `json:"drift_rate"`
	MaxVelSum   float64 `json:"max_vel_sum"`
}

// Analyze reduces a property history. times[i] is the simulation time of
// summaries[i]; dim is the spatial dimension used for the temperature.
func Analyze(summaries []props.Summary, times []float64, dim int) (*Report, error) {
	n := len(summaries)
	if n == 0 {
		return nil, ErrNoData
	}
	if len(times) != n {
		return nil, fmt.Errorf("analysis: %d summaries but %d times", n, len(times))
	}
	if dim < 1 {
		return nil, fmt.Errorf("analysis: invalid dimension %d", dim)
	}

	kinetic := make([]float64, n)
	potential := make([]float64, n)
	total := make([]float64, n)
	pressure := make([]float64, n)
	temperature := make([]float64, n)
	velSum := make([]float64, n)
	for i, s := range summaries {
		kinetic[i] = s.Kinetic
		potential[i] = s.Potential
		total[i] = s.Total
		pressure[i] = s.Pressure
		temperature[i] = Temperature(s.Kinetic, dim)
		velSum[i] = s.VelSum
	}

	return &Report{
		Samples:     n,
		Kinetic:     describe(kinetic),
		Potential:   describe(potential),
		Total:       describe(total),
		Pressure:    describe(pressure),
		Temperature: describe(temperature),
		Drift:       EnergyDrift(total),
		DriftRate:   DriftRate(times, total),
		MaxVelSum:   floats.Max(velSum),
	}, nil
}

func describe(xs []float64) Stat {
	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) < 2 {
		std = 0
	}
	return Stat{Mean: mean, StdDev: std, Min: floats.Min(xs), Max: floats.Max(xs)}
}

// Temperature is the kinetic temperature 2<KE>/D of a per-particle kinetic
// energy in D dimensions (k_B = 1).
func Temperature(kinetic float64, dim int) float64 {
	return 2 * kinetic / float64(dim)
}

// EnergyDrift compares every sample with the first. Relative is zero when
// the initial value is zero.
func EnergyDrift(total []float64) Drift {
	if len(total) == 0 {
		return Drift{}
	}

	d := Drift{Initial: total[0], Final: total[len(total)-1]}
	d.Absolute = d.Final - d.Initial
	if d.Initial != 0 {
		d.Relative = d.Absolute / math.Abs(d.Initial)
	}
	for _, e := range total {
		d.MaxDeviation = math.Max(d.MaxDeviation, math.Abs(e-d.Initial))
	}
	return d
}

// DriftRate is the least-squares slope of values against times. Fewer than
// two samples, or samples all at one time, give zero.
func DriftRate(times, values []float64) float64 {
	if len(times) < 2 || len(times) != len(values) {
		return 0
	}
	if floats.Max(times) == floats.Min(times) {
		return 0
	}
	_, beta := stat.LinearRegression(times, values, nil, false)
	return beta
}
