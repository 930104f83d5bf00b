package models

import "gonum.org/v1/gonum/mat"

// Oscillator is the damped harmonic oscillator x'' = -Omega^2 x - Damping x'.
type Oscillator struct {
	Omega   float64
	Damping float64
}

func NewOscillator() *Oscillator {
	return &Oscillator{Omega: 1.0, Damping: 0.0}
}

func (o *Oscillator) Name() string { return "oscillator" }
func (o *Oscillator) Dim() int     { return 2 }

func (o *Oscillator) Operator(ndof int) (*mat.Dense, error) {
	if err := checkDim(o, ndof); err != nil {
		return nil, err
	}
	return mat.NewDense(2, 2, []float64{
		0, 1,
		-o.Omega * o.Omega, -o.Damping,
	}), nil
}

func (o *Oscillator) Initial(ndof int) ([]float64, error) {
	if err := checkDim(o, ndof); err != nil {
		return nil, err
	}
	return []float64{1, 0}, nil
}

// Energy is the undamped oscillator energy of state x.
func (o *Oscillator) Energy(x []float64) float64 {
	return 0.5 * (o.Omega*o.Omega*x[0]*x[0] + x[1]*x[1])
}
