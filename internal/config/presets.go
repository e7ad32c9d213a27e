package config

import "sort"

var Presets = map[string]*Config{
	"gas": {
		Name: "gas", Dim: 3, Particles: 512, Density: 0.05, Temperature: 2.0,
		Dt: 0.005, Steps: 2000, Potential: "lj", StepAvg: 100, Seed: 1, Checkpoint: true,
	},
	"liquid": {
		Name: "liquid", Dim: 3, Particles: 1000, Density: 0.8, Temperature: 1.0,
		Dt: 0.005, Steps: 5000, Potential: "lj", StepAvg: 250, Seed: 1, Checkpoint: true,
	},
	"wca2d": {
		Name: "wca2d", Dim: 2, Particles: 400, Density: 0.8, Temperature: 1.0,
		Dt: 0.005, Steps: 10000, Potential: "wca", StepAvg: 100, Seed: 1, Checkpoint: true,
	},
	"dense4d": {
		Name: "dense4d", Dim: 4, Particles: 625, Density: 1.0, Temperature: 1.5,
		Dt: 0.002, Steps: 2000, Potential: "lj", Workers: 4, StepAvg: 100, Seed: 1, Checkpoint: true,
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
