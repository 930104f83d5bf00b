package integrators

import (
	"github.com/san-kum/parareal/internal/pint"
	"gonum.org/v1/gonum/mat"
)

// RK4 is the classical four-stage Runge-Kutta method applied to y' = A y.
type RK4 struct {
	Interval
}

func NewRK4(tstart, tend float64, nsteps int) (*RK4, error) {
	iv, err := NewInterval(tstart, tend, nsteps)
	if err != nil {
		return nil, err
	}
	return &RK4{Interval: iv}, nil
}

func (r *RK4) Run(sol pint.Solution) error {
	l, err := linear("RK4.Run", sol)
	if err != nil {
		return err
	}
	a := l.Operator()
	x := l.Vec()
	n := x.Len()

	// Stages are local so one RK4 can be shared by concurrent slices.
	k1 := mat.NewVecDense(n, nil)
	k2 := mat.NewVecDense(n, nil)
	k3 := mat.NewVecDense(n, nil)
	k4 := mat.NewVecDense(n, nil)
	scratch := mat.NewVecDense(n, nil)

	dt := r.dt
	dt6 := dt / 6.0
	for i := 0; i < r.nsteps; i++ {
		k1.MulVec(a, x)

		scratch.AddScaledVec(x, dt*0.5, k1)
		k2.MulVec(a, scratch)

		scratch.AddScaledVec(x, dt*0.5, k2)
		k3.MulVec(a, scratch)

		scratch.AddScaledVec(x, dt, k3)
		k4.MulVec(a, scratch)

		for j := 0; j < n; j++ {
			x.SetVec(j, x.AtVec(j)+dt6*(k1.AtVec(j)+2*k2.AtVec(j)+2*k3.AtVec(j)+k4.AtVec(j)))
		}
	}
	return nil
}

// UpdateMatrix returns P(dt A)^nsteps with P(z) = 1 + z + z^2/2 + z^3/6 + z^4/24.
func (r *RK4) UpdateMatrix(sol pint.Solution) (*mat.Dense, error) {
	l, err := linear("RK4.UpdateMatrix", sol)
	if err != nil {
		return nil, err
	}
	n, _ := l.Operator().Dims()
	z := mat.NewDense(n, n, nil)
	z.Scale(r.dt, l.Operator())

	step := identity(n)
	term := identity(n)
	for k := 1; k <= 4; k++ {
		var next mat.Dense
		next.Mul(term, z)
		next.Scale(1/float64(k), &next)
		term = &next
		step.Add(step, term)
	}
	return power(step, r.nsteps), nil
}
