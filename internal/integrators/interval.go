package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/parareal/internal/pint"
	"gonum.org/v1/gonum/mat"
)

// Interval holds the time window shared by every propagator. It is
// immutable after construction.
type Interval struct {
	tstart float64
	tend   float64
	nsteps int
	dt     float64
}

func NewInterval(tstart, tend float64, nsteps int) (Interval, error) {
	if math.IsNaN(tstart) || math.IsNaN(tend) || !(tstart < tend) {
		return Interval{}, pint.NewConfigurationError("tstart", "must be smaller than tend (%g >= %g)", tstart, tend)
	}
	if nsteps <= 0 {
		return Interval{}, pint.NewConfigurationError("nsteps", "must be a positive integer, got %d", nsteps)
	}
	return Interval{
		tstart: tstart,
		tend:   tend,
		nsteps: nsteps,
		dt:     (tend - tstart) / float64(nsteps),
	}, nil
}

func (iv Interval) TStart() float64 { return iv.tstart }
func (iv Interval) TEnd() float64   { return iv.tend }
func (iv Interval) NSteps() int     { return iv.nsteps }
func (iv Interval) Dt() float64     { return iv.dt }

// Run on a bare interval has no scheme to apply.
func (iv Interval) Run(sol pint.Solution) error {
	return fmt.Errorf("integrators: run on generic interval [%g, %g] not implemented", iv.tstart, iv.tend)
}

func linear(op string, sol pint.Solution) (pint.Linear, error) {
	l, ok := sol.(pint.Linear)
	if !ok {
		return nil, fmt.Errorf("integrators: %s with %T: %w", op, sol, pint.ErrNotLinear)
	}
	return l, nil
}

// power returns step^n by repeated squaring.
func power(step *mat.Dense, n int) *mat.Dense {
	r, _ := step.Dims()
	result := identity(r)
	base := mat.DenseCopyOf(step)
	for n > 0 {
		if n&1 == 1 {
			var tmp mat.Dense
			tmp.Mul(result, base)
			result = &tmp
		}
		n >>= 1
		if n > 0 {
			var sq mat.Dense
			sq.Mul(base, base)
			base = &sq
		}
	}
	return result
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
