// Package analysis summarizes the thermodynamic history of a run.
//
//   - [Analyze]: mean, spread and range of each averaged property
//   - [EnergyDrift]: how far the total energy wandered from its first value
//   - [DriftRate]: least-squares slope of total energy against time
//   - [Temperature]: kinetic temperature from the mean kinetic energy
//
// # Energy Conservation
//
// In a microcanonical run the total energy should stay flat. A relative
// drift much larger than dt^2 usually means the step is too large:
//
//	report, err := analysis.Analyze(summaries, times, dim)
//	if err == nil && math.Abs(report.Drift.Relative) > 1e-3 {
//	    // reduce dt
//	}
package analysis
