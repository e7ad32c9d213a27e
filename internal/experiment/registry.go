package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/moldyn/internal/config"
	"github.com/san-kum/moldyn/internal/integrators"
	"github.com/san-kum/moldyn/internal/potential"
	"github.com/san-kum/moldyn/internal/vector"
)

// Registry maps configuration names to constructors for one dimension.
type Registry[D vector.Dimension] struct {
	potentials  map[string]func(*config.Config) potential.Potential[D]
	integrators map[string]func() integrators.Integrator[D]
}

func NewRegistry[D vector.Dimension]() *Registry[D] {
	r := &Registry[D]{
		potentials:  make(map[string]func(*config.Config) potential.Potential[D]),
		integrators: make(map[string]func() integrators.Integrator[D]),
	}

	lj := func(cfg *config.Config) potential.Potential[D] {
		return potential.NewLennardJones[D](cfg.EffectiveCutoff(), potential.WithWorkers(cfg.Workers))
	}
	r.potentials["lj"] = lj
	r.potentials["wca"] = lj
	r.potentials["none"] = func(*config.Config) potential.Potential[D] { return potential.NoInteraction[D]{} }

	r.integrators["leapfrog"] = func() integrators.Integrator[D] { return integrators.NewLeapfrog[D]() }

	return r
}

func (r *Registry[D]) GetPotential(name string, cfg *config.Config) (potential.Potential[D], error) {
	fn, ok := r.potentials[name]
	if !ok {
		return nil, fmt.Errorf("unknown potential: %s", name)
	}
	return fn(cfg), nil
}

func (r *Registry[D]) GetIntegrator(name string) (integrators.Integrator[D], error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry[D]) ListPotentials() []string {
	names := make([]string, 0, len(r.potentials))
	for name := range r.potentials {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
