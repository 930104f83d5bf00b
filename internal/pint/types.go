package pint

import "gonum.org/v1/gonum/mat"

type Solution interface {
	// Axpy performs s <- s + alpha*other in place.
	Axpy(alpha float64, other Solution) error
	Norm() float64
	NDOF() int
	// Clone returns a deep copy whose mutation never affects s.
	Clone() Solution
}

// Vectorer is a solution whose values can be read and overwritten as a
// dense vector. Mesh transfer works on this view.
type Vectorer interface {
	Solution
	Vec() *mat.VecDense
	SetVec(v mat.Vector) error
}

// Linear is a solution of the linear problem y' = A y.
type Linear interface {
	Vectorer
	Operator() mat.Matrix
}

type Propagator interface {
	TStart() float64
	TEnd() float64
	NSteps() int
	Dt() float64
	// Run advances sol in place from TStart to TEnd.
	Run(sol Solution) error
}

// LinearPropagator can express Run as a matrix for linear solutions, so
// that Run(sol) == UpdateMatrix(sol) * sol.
type LinearPropagator interface {
	Propagator
	UpdateMatrix(sol Solution) (*mat.Dense, error)
}

type MeshTransferer interface {
	NDOFFine() int
	NDOFCoarse() int
	// Restrict overwrites dst with the coarse representation of src.
	Restrict(src, dst Solution) error
	// Interpolate overwrites dst with the fine representation of src.
	Interpolate(dst, src Solution) error
	Interpolation() *mat.Dense
	Restriction() *mat.Dense
}

// Close reports whether a and b agree within rtol relative to b plus atol.
func Close(a, b, rtol, atol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	m := b
	if m < 0 {
		m = -m
	}
	return d <= atol+rtol*m
}
