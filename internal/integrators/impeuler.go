package integrators

import (
	"fmt"

	"github.com/san-kum/parareal/internal/pint"
	"github.com/san-kum/parareal/internal/solution"
	"gonum.org/v1/gonum/mat"
)

// ImplicitEuler solves (I - dt A) y_new = y once per step.
type ImplicitEuler struct {
	Interval
}

func NewImplicitEuler(tstart, tend float64, nsteps int) (*ImplicitEuler, error) {
	iv, err := NewInterval(tstart, tend, nsteps)
	if err != nil {
		return nil, err
	}
	return &ImplicitEuler{Interval: iv}, nil
}

func (ie *ImplicitEuler) Run(sol pint.Solution) error {
	l, err := linear("ImplicitEuler.Run", sol)
	if err != nil {
		return err
	}
	var lu mat.LU
	lu.Factorize(solution.ShiftedIdentity(l.Operator(), ie.dt))
	y := l.Vec()
	var x mat.VecDense
	for i := 0; i < ie.nsteps; i++ {
		if err := lu.SolveVecTo(&x, false, y); err != nil {
			return fmt.Errorf("integrators: implicit euler step %d: %w", i, err)
		}
		y.CopyVec(&x)
	}
	return nil
}

func (ie *ImplicitEuler) UpdateMatrix(sol pint.Solution) (*mat.Dense, error) {
	l, err := linear("ImplicitEuler.UpdateMatrix", sol)
	if err != nil {
		return nil, err
	}
	var step mat.Dense
	if err := step.Inverse(solution.ShiftedIdentity(l.Operator(), ie.dt)); err != nil {
		return nil, fmt.Errorf("integrators: implicit euler matrix: %w", err)
	}
	return power(&step, ie.nsteps), nil
}
