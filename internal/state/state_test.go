package state_test

import (
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/moldyn/internal/state"
	"github.com/san-kum/moldyn/internal/vector"
)

type vec2 = vector.Vector[vector.D2]

func sampleEnsemble() state.Ensemble[vector.D2] {
	return state.Ensemble[vector.D2]{
		Positions:     []vec2{vector.New[vector.D2](1, 2), vector.New[vector.D2](-0.5, 0.25)},
		Velocities:    []vec2{vector.New[vector.D2](0.1, 0), vector.New[vector.D2](0, -0.1)},
		Accelerations: []vec2{vector.New[vector.D2](3, 4), vector.New[vector.D2](-3, -4)},
	}
}

var _ = Describe("Ensemble", func() {
	It("allocates zeroed velocities and accelerations", func() {
		ens := state.NewEnsemble([]vec2{vector.New[vector.D2](1, 1), vector.New[vector.D2](2, 2)})
		Expect(ens.Len()).To(Equal(2))
		Expect(ens.Velocities).To(HaveLen(2))
		Expect(ens.Accelerations).To(ConsistOf(vec2{}, vec2{}))
	})

	It("panics on mismatched lengths", func() {
		ens := sampleEnsemble()
		ens.Velocities = ens.Velocities[:1]
		Expect(ens.Validate()).To(HaveOccurred())
		Expect(func() { ens.Len() }).To(Panic())
	})

	It("clones deeply", func() {
		ens := sampleEnsemble()
		c := ens.Clone()
		c.Positions[0] = vec2{}
		Expect(ens.Positions[0]).To(Equal(vector.New[vector.D2](1, 2)))
	})
})

var _ = Describe("InMemory", func() {
	It("hands out the same ensemble for mutation", func() {
		m := state.NewInMemory(sampleEnsemble())
		m.Ensemble().Positions[0] = vector.New[vector.D2](9, 9)
		Expect(m.Ensemble().Positions[0]).To(Equal(vector.New[vector.D2](9, 9)))
	})

	It("syncs without side effects", func() {
		var m state.InMemory[vector.D2]
		Expect(m.Sync(1.5)).To(Succeed())
		Expect(m.Ensemble().Positions).To(BeEmpty())
	})

	It("serializes with named fields", func() {
		m := state.NewInMemory(sampleEnsemble())
		data, err := json.Marshal(m)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(MatchJSON(`{
			"positions": [[1, 2], [-0.5, 0.25]],
			"velocities": [[0.1, 0], [0, -0.1]],
			"accelerations": [[3, 4], [-3, -4]]
		}`))

		var back state.InMemory[vector.D2]
		Expect(json.Unmarshal(data, &back)).To(Succeed())
		Expect(*back.Ensemble()).To(Equal(sampleEnsemble()))
	})

	It("rejects vectors of the wrong dimension", func() {
		var m state.InMemory[vector.D2]
		err := json.Unmarshal([]byte(`{"positions":[[1]],"velocities":[[0,0]],"accelerations":[[0,0]]}`), &m)
		var decodeErr *vector.DecodeError
		Expect(errors.As(err, &decodeErr)).To(BeTrue())
		Expect(decodeErr.Want).To(Equal(2))
		Expect(decodeErr.Got).To(Equal(1))
	})

	It("rejects mismatched slice lengths", func() {
		var m state.InMemory[vector.D2]
		err := json.Unmarshal([]byte(`{"positions":[[1,1]],"velocities":[],"accelerations":[]}`), &m)
		Expect(err).To(HaveOccurred())
	})
})
