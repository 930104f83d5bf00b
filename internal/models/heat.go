package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Heat is the 1D heat equation u_t = Nu u_xx on [0, 1] with homogeneous
// Dirichlet data, discretised with second-order finite differences on the
// uniform mesh x_i = i/(n-1). The boundary nodes are part of the state and
// their rows are zero, so they stay at their initial value of 0.
type Heat struct {
	Nu float64
}

func NewHeat() *Heat {
	return &Heat{Nu: 0.1}
}

func (h *Heat) Name() string { return "heat" }
func (h *Heat) Dim() int     { return 0 }

func (h *Heat) Operator(ndof int) (*mat.Dense, error) {
	if err := checkDim(h, ndof); err != nil {
		return nil, err
	}
	if ndof < 3 {
		return nil, fmt.Errorf("heat: ndof must be at least 3, got %d", ndof)
	}
	dx := 1.0 / float64(ndof-1)
	c := h.Nu / (dx * dx)
	a := mat.NewDense(ndof, ndof, nil)
	for i := 1; i < ndof-1; i++ {
		a.Set(i, i-1, c)
		a.Set(i, i, -2*c)
		a.Set(i, i+1, c)
	}
	return a, nil
}

// Initial returns sin(pi x) sampled at the mesh nodes.
func (h *Heat) Initial(ndof int) ([]float64, error) {
	if err := checkDim(h, ndof); err != nil {
		return nil, err
	}
	u := make([]float64, ndof)
	if ndof == 1 {
		return u, nil
	}
	for i := range u {
		u[i] = math.Sin(math.Pi * float64(i) / float64(ndof-1))
	}
	return u, nil
}
