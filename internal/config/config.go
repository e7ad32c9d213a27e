package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/gcfg.v1"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/moldyn/internal/potential"
)

const (
	DefaultDim         = 3
	DefaultParticles   = 1000
	DefaultDensity     = 0.8
	DefaultTemperature = 1.0
	DefaultDt          = 0.005
	DefaultSteps       = 1000
	DefaultStepAvg     = 100
	DefaultPotential   = "lj"
)

// Potentials lists the accepted potential names.
var Potentials = []string{"lj", "wca", "none"}

type Config struct {
	Name        string  `yaml:"name" json:"name" gcfg:"name"`
	Dim         int     `yaml:"dim" json:"dim" gcfg:"dim"`
	Particles   int     `yaml:"particles" json:"particles" gcfg:"particles"`
	Density     float64 `yaml:"density" json:"density" gcfg:"density"`
	Temperature float64 `yaml:"temperature" json:"temperature" gcfg:"temperature"`
	Dt          float64 `yaml:"dt" json:"dt" gcfg:"dt"`
	Steps       int     `yaml:"steps" json:"steps" gcfg:"steps"`
	Potential   string  `yaml:"potential" json:"potential" gcfg:"potential"`
	Cutoff      float64 `yaml:"cutoff,omitempty" json:"cutoff,omitempty" gcfg:"cutoff"`
	Workers     int     `yaml:"workers,omitempty" json:"workers,omitempty" gcfg:"workers"`
	StepAvg     int     `yaml:"step_avg" json:"step_avg" gcfg:"step-avg"`
	Seed        int64   `yaml:"seed" json:"seed" gcfg:"seed"`
	Checkpoint  bool    `yaml:"checkpoint" json:"checkpoint" gcfg:"checkpoint"`
}

// iniFile is the gcfg layout: a single [simulation] section.
type iniFile struct {
	Simulation Config
}

func DefaultConfig() *Config {
	return &Config{
		Name:        "default",
		Dim:         DefaultDim,
		Particles:   DefaultParticles,
		Density:     DefaultDensity,
		Temperature: DefaultTemperature,
		Dt:          DefaultDt,
		Steps:       DefaultSteps,
		Potential:   DefaultPotential,
		StepAvg:     DefaultStepAvg,
		Seed:        1,
		Checkpoint:  true,
	}
}

// Load reads a YAML (.yaml, .yml) or gcfg (.gcfg, .ini) file on top of the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gcfg", ".ini":
		file := iniFile{Simulation: *cfg}
		if err := gcfg.ReadFileInto(&file, path); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		*cfg = file.Simulation
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gcfg", ".ini":
		return fmt.Errorf("config: saving %s: only YAML output is supported", path)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	switch {
	case c.Dim < 1 || c.Dim > 4:
		return fmt.Errorf("config: dim must be between 1 and 4, got %d", c.Dim)
	case c.Particles < 1:
		return fmt.Errorf("config: particles must be positive, got %d", c.Particles)
	case !positive(c.Density):
		return fmt.Errorf("config: density must be positive, got %v", c.Density)
	case !positive(c.Dt):
		return fmt.Errorf("config: dt must be positive, got %v", c.Dt)
	case c.Temperature < 0 || math.IsNaN(c.Temperature):
		return fmt.Errorf("config: temperature must not be negative, got %v", c.Temperature)
	case c.Steps < 0:
		return fmt.Errorf("config: steps must not be negative, got %d", c.Steps)
	case c.Cutoff < 0:
		return fmt.Errorf("config: cutoff must not be negative, got %v", c.Cutoff)
	case c.Workers < 0:
		return fmt.Errorf("config: workers must not be negative, got %d", c.Workers)
	case c.StepAvg < 0:
		return fmt.Errorf("config: step_avg must not be negative, got %d", c.StepAvg)
	}

	known := false
	for _, p := range Potentials {
		if p == c.Potential {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("config: unknown potential %q (want one of %s)", c.Potential, strings.Join(Potentials, ", "))
	}
	return nil
}

// EffectiveCutoff is Cutoff, or the natural cutoff of the potential when
// Cutoff is zero.
func (c *Config) EffectiveCutoff() float64 {
	if c.Cutoff > 0 {
		return c.Cutoff
	}
	if c.Potential == "wca" {
		return potential.WCACutoff
	}
	return potential.DefaultCutoff
}

func positive(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}
