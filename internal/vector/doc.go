// Package vector provides the fixed-dimension real vector used for positions,
// velocities and accelerations.
//
// The dimension is part of the type: a [Vector] is parameterized by one of the
// [Dimension] markers [D1], [D2], [D3] or [D4], so vectors of different
// dimension cannot be mixed without a compile error:
//
//	a := vector.New[vector.D3](1, 2, 3)
//	b := vector.Fill[vector.D3](0.5)
//	c := a.Add(b).Scale(2)
//
// Vectors are plain values. The zero value is the zero vector and == compares
// components exactly.
//
// # Serialization
//
// A vector encodes to JSON as an array of exactly Dim numbers. Decoding an array
// of any other length fails with a [*DecodeError].
package vector
