// Package state stores the particle ensemble a job advances and decides what
// happens to it after every step.
//
// [InMemory] keeps the ensemble in memory only. [Track] additionally appends a
// checkpoint line "<time>. <json>" to a log file on every [Molecular.Sync] and
// can rebuild itself from the last line of that log.
package state

import (
	"encoding/json"

	"github.com/san-kum/moldyn/internal/vector"
)

type Molecular[D vector.Dimension] interface {
	// Ensemble returns the ensemble for mutation. The pointer stays valid
	// until the next call that replaces the state.
	Ensemble() *Ensemble[D]
	// Sync is called once per completed step with the simulation time.
	Sync(timeNow float64) error
}

type InMemory[D vector.Dimension] struct {
	ens Ensemble[D]
}

func NewInMemory[D vector.Dimension](ens Ensemble[D]) *InMemory[D] {
	return &InMemory[D]{ens: ens}
}

func (m *InMemory[D]) Ensemble() *Ensemble[D] { return &m.ens }

func (m *InMemory[D]) Sync(float64) error { return nil }

func (m *InMemory[D]) MarshalJSON() ([]byte, error) {
	return json.Marshal(&m.ens)
}

func (m *InMemory[D]) UnmarshalJSON(data []byte) error {
	var ens Ensemble[D]
	if err := json.Unmarshal(data, &ens); err != nil {
		return err
	}
	if err := ens.Validate(); err != nil {
		return err
	}
	m.ens = ens
	return nil
}
