package models

import "gonum.org/v1/gonum/mat"

// Decay is y' = -Lambda y in every component.
type Decay struct {
	Lambda float64
}

func NewDecay() *Decay {
	return &Decay{Lambda: 1.0}
}

func (d *Decay) Name() string { return "decay" }
func (d *Decay) Dim() int     { return 0 }

func (d *Decay) Operator(ndof int) (*mat.Dense, error) {
	if err := checkDim(d, ndof); err != nil {
		return nil, err
	}
	a := mat.NewDense(ndof, ndof, nil)
	for i := 0; i < ndof; i++ {
		a.Set(i, i, -d.Lambda)
	}
	return a, nil
}

func (d *Decay) Initial(ndof int) ([]float64, error) {
	if err := checkDim(d, ndof); err != nil {
		return nil, err
	}
	y := make([]float64, ndof)
	for i := range y {
		y[i] = 1
	}
	return y, nil
}
