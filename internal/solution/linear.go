// Package solution provides state implementations for the parallel-in-time
// core. Linear holds a vector y together with the operator A of y' = A y.
package solution

import (
	"fmt"

	"github.com/san-kum/parareal/internal/pint"
	"gonum.org/v1/gonum/mat"
)

var _ pint.Linear = (*Linear)(nil)

// Linear is a state of the linear ODE y' = A y. The operator is shared
// read-only between clones; only the vector is copied.
type Linear struct {
	y *mat.VecDense
	a mat.Matrix
}

// NewLinear copies y and keeps a reference to the square operator a.
func NewLinear(y []float64, a mat.Matrix) (*Linear, error) {
	r, c := a.Dims()
	if r != c {
		return nil, pint.NewConfigurationError("operator", "must be square, got %dx%d", r, c)
	}
	if err := pint.CheckDim("NewLinear", r, len(y)); err != nil {
		return nil, err
	}
	v := make([]float64, len(y))
	copy(v, y)
	return &Linear{y: mat.NewVecDense(len(v), v), a: a}, nil
}

// MustLinear is NewLinear for fixtures with known-good dimensions.
func MustLinear(y []float64, a mat.Matrix) *Linear {
	l, err := NewLinear(y, a)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *Linear) NDOF() int { return l.y.Len() }

func (l *Linear) Norm() float64 { return mat.Norm(l.y, 2) }

func (l *Linear) Vec() *mat.VecDense { return l.y }

func (l *Linear) Operator() mat.Matrix { return l.a }

func (l *Linear) Values() []float64 {
	out := make([]float64, l.y.Len())
	for i := range out {
		out[i] = l.y.AtVec(i)
	}
	return out
}

func (l *Linear) Clone() pint.Solution {
	y := mat.NewVecDense(l.y.Len(), nil)
	y.CopyVec(l.y)
	return &Linear{y: y, a: l.a}
}

func (l *Linear) Axpy(alpha float64, other pint.Solution) error {
	o, ok := other.(pint.Vectorer)
	if !ok {
		return fmt.Errorf("solution: axpy with %T: %w", other, pint.ErrNotLinear)
	}
	if err := pint.CheckDim("Axpy", l.NDOF(), o.NDOF()); err != nil {
		return err
	}
	l.y.AddScaledVec(l.y, alpha, o.Vec())
	return nil
}

func (l *Linear) SetVec(v mat.Vector) error {
	if err := pint.CheckDim("SetVec", l.NDOF(), v.Len()); err != nil {
		return err
	}
	l.y.CopyVec(v)
	return nil
}

// Apply overwrites y with A y.
func (l *Linear) Apply() {
	var ay mat.VecDense
	ay.MulVec(l.a, l.y)
	l.y.CopyVec(&ay)
}

// Solve overwrites y with the solution x of (I - alpha A) x = y.
func (l *Linear) Solve(alpha float64) error {
	m := ShiftedIdentity(l.a, alpha)
	var x mat.VecDense
	if err := x.SolveVec(m, l.y); err != nil {
		return fmt.Errorf("solution: implicit solve: %w", err)
	}
	l.y.CopyVec(&x)
	return nil
}

// ShiftedIdentity returns I - alpha A as a new dense matrix.
func ShiftedIdentity(a mat.Matrix, alpha float64) *mat.Dense {
	n, _ := a.Dims()
	m := mat.NewDense(n, n, nil)
	m.Scale(-alpha, a)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1+m.At(i, i))
	}
	return m
}
