// Package registration drives the background alignment of a newly loaded
// overlay against a reference image. The numerical optimizer stays behind the
// Optimizer contract; this package owns the worker, the thread-safe progress
// snapshots, and the homogeneous transform type.
package registration

import "gonum.org/v1/gonum/mat"

// Transform is a 4x4 homogeneous spatial transform. Values are immutable;
// every operation returns a new Transform, which is what lets snapshots be
// published as plain copies.
type Transform struct {
	m *mat.Dense
}

// Identity returns the identity transform.
func Identity() Transform {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1)
	}
	return Transform{m: m}
}

// Translation returns a pure translation transform.
func Translation(dx, dy, dz float64) Transform {
	t := Identity()
	t.m.Set(0, 3, dx)
	t.m.Set(1, 3, dy)
	t.m.Set(2, 3, dz)
	return t
}

// IsZero reports whether t carries no matrix (the zero value).
func (t Transform) IsZero() bool { return t.m == nil }

// Matrix returns a copy of the underlying 4x4 matrix.
func (t Transform) Matrix() *mat.Dense {
	out := mat.NewDense(4, 4, nil)
	if t.m == nil {
		for i := 0; i < 4; i++ {
			out.Set(i, i, 1)
		}
		return out
	}
	out.Copy(t.m)
	return out
}

// Compose returns the product t*other, applying other first.
func (t Transform) Compose(other Transform) Transform {
	out := mat.NewDense(4, 4, nil)
	out.Mul(t.Matrix(), other.Matrix())
	return Transform{m: out}
}

// Translation returns the translation component.
func (t Transform) Translation() [3]float64 {
	if t.m == nil {
		return [3]float64{}
	}
	return [3]float64{t.m.At(0, 3), t.m.At(1, 3), t.m.At(2, 3)}
}

// WithTranslation returns a copy of t with the translation component replaced.
func (t Transform) WithTranslation(v [3]float64) Transform {
	m := t.Matrix()
	m.Set(0, 3, v[0])
	m.Set(1, 3, v[1])
	m.Set(2, 3, v[2])
	return Transform{m: m}
}

// ApplyPoint maps a physical point through the transform.
func (t Transform) ApplyPoint(p [3]float64) [3]float64 {
	m := t.Matrix()
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = m.At(i, 3)
		for j := 0; j < 3; j++ {
			out[i] += m.At(i, j) * p[j]
		}
	}
	return out
}
