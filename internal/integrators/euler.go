package integrators

import (
	"github.com/san-kum/parareal/internal/pint"
	"github.com/san-kum/parareal/internal/solution"
	"gonum.org/v1/gonum/mat"
)

// Euler is the explicit Euler method y <- y + dt A y.
type Euler struct {
	Interval
}

func NewEuler(tstart, tend float64, nsteps int) (*Euler, error) {
	iv, err := NewInterval(tstart, tend, nsteps)
	if err != nil {
		return nil, err
	}
	return &Euler{Interval: iv}, nil
}

func (e *Euler) Run(sol pint.Solution) error {
	l, err := linear("Euler.Run", sol)
	if err != nil {
		return err
	}
	y := l.Vec()
	n := y.Len()
	dx := mat.NewVecDense(n, nil)
	for i := 0; i < e.nsteps; i++ {
		dx.MulVec(l.Operator(), y)
		y.AddScaledVec(y, e.dt, dx)
	}
	return nil
}

func (e *Euler) UpdateMatrix(sol pint.Solution) (*mat.Dense, error) {
	l, err := linear("Euler.UpdateMatrix", sol)
	if err != nil {
		return nil, err
	}
	return power(solution.ShiftedIdentity(l.Operator(), -e.dt), e.nsteps), nil
}
