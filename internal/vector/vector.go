package vector

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
)

// MaxDim is the largest supported dimension.
const MaxDim = 4

// Dimension is implemented by the zero-size dimension markers.
type Dimension interface {
	D1 | D2 | D3 | D4
	Dim() int
}

type (
	D1 struct{}
	D2 struct{}
	D3 struct{}
	D4 struct{}
)

func (D1) Dim() int { return 1 }
func (D2) Dim() int { return 2 }
func (D3) Dim() int { return 3 }
func (D4) Dim() int { return 4 }

// DimOf returns the dimension carried by D.
func DimOf[D Dimension]() int {
	var d D
	return d.Dim()
}

// Vector is a real vector with exactly Dim components. Storage beyond Dim is
// always zero, which keeps == meaningful.
type Vector[D Dimension] struct {
	c [MaxDim]float64
}

// New builds a vector from exactly Dim components. Any other count panics.
func New[D Dimension](components ...float64) Vector[D] {
	n := DimOf[D]()
	if len(components) != n {
		panic(fmt.Sprintf("vector: New needs %d components, got %d", n, len(components)))
	}
	var v Vector[D]
	copy(v.c[:n], components)
	return v
}

// Fill returns a vector with every component set to x.
func Fill[D Dimension](x float64) Vector[D] {
	var v Vector[D]
	for i := 0; i < DimOf[D](); i++ {
		v.c[i] = x
	}
	return v
}

// Random draws each component uniformly from [-0.5, 0.5).
func Random[D Dimension](rng *rand.Rand) Vector[D] {
	var v Vector[D]
	for i := 0; i < DimOf[D](); i++ {
		v.c[i] = rng.Float64() - 0.5
	}
	return v
}

func (v Vector[D]) Dim() int { return DimOf[D]() }

func (v Vector[D]) At(i int) float64 {
	if i < 0 || i >= v.Dim() {
		panic(fmt.Sprintf("vector: index %d out of range for dimension %d", i, v.Dim()))
	}
	return v.c[i]
}

// Set replaces component i.
func (v *Vector[D]) Set(i int, x float64) {
	if i < 0 || i >= v.Dim() {
		panic(fmt.Sprintf("vector: index %d out of range for dimension %d", i, v.Dim()))
	}
	v.c[i] = x
}

// Components returns a copy of the Dim components.
func (v Vector[D]) Components() []float64 {
	out := make([]float64, v.Dim())
	copy(out, v.c[:])
	return out
}

func (v Vector[D]) Add(w Vector[D]) Vector[D] {
	for i := 0; i < v.Dim(); i++ {
		v.c[i] += w.c[i]
	}
	return v
}

func (v Vector[D]) Sub(w Vector[D]) Vector[D] {
	for i := 0; i < v.Dim(); i++ {
		v.c[i] -= w.c[i]
	}
	return v
}

func (v Vector[D]) Scale(s float64) Vector[D] {
	for i := 0; i < v.Dim(); i++ {
		v.c[i] *= s
	}
	return v
}

func (v Vector[D]) Neg() Vector[D] {
	return v.Scale(-1)
}

func (v Vector[D]) Dot(w Vector[D]) float64 {
	sum := 0.0
	for i := 0; i < v.Dim(); i++ {
		sum += v.c[i] * w.c[i]
	}
	return sum
}

func (v Vector[D]) SquareLength() float64 {
	return v.Dot(v)
}

func (v Vector[D]) Length() float64 {
	return math.Sqrt(v.SquareLength())
}

// IsFinite reports whether no component is NaN or infinite.
func (v Vector[D]) IsFinite() bool {
	for i := 0; i < v.Dim(); i++ {
		if math.IsNaN(v.c[i]) || math.IsInf(v.c[i], 0) {
			return false
		}
	}
	return true
}

func (v Vector[D]) String() string {
	parts := make([]string, v.Dim())
	for i := range parts {
		parts[i] = strconv.FormatFloat(v.c[i], 'g', -1, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Reset sets every vector in vs to zero.
func Reset[D Dimension](vs []Vector[D]) {
	for i := range vs {
		vs[i] = Vector[D]{}
	}
}

// Sum adds up vs.
func Sum[D Dimension](vs []Vector[D]) Vector[D] {
	var total Vector[D]
	for _, v := range vs {
		total = total.Add(v)
	}
	return total
}

// DecodeError reports a JSON array whose length does not match the dimension.
type DecodeError struct {
	Want int
	Got  int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("vector: expected an array of %d floats, got %d", e.Want, e.Got)
}

func (v Vector[D]) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.c[:v.Dim()])
}

func (v *Vector[D]) UnmarshalJSON(data []byte) error {
	var components []float64
	if err := json.Unmarshal(data, &components); err != nil {
		return err
	}
	n := DimOf[D]()
	if len(components) != n {
		return &DecodeError{Want: n, Got: len(components)}
	}
	*v = Vector[D]{}
	copy(v.c[:n], components)
	return nil
}
