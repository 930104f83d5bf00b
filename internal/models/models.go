// Package models provides linear test problems y' = A y for the solver.
package models

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Problem builds the operator and initial condition for a given number of
// degrees of freedom.
type Problem interface {
	Name() string
	// Dim returns the fixed number of degrees of freedom, or 0 if any
	// positive size is allowed.
	Dim() int
	Operator(ndof int) (*mat.Dense, error)
	Initial(ndof int) ([]float64, error)
}

var registry = map[string]func() Problem{
	"heat":       func() Problem { return NewHeat() },
	"oscillator": func() Problem { return NewOscillator() },
	"decay":      func() Problem { return NewDecay() },
}

func Get(name string) (Problem, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown problem: %s", name)
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkDim(p Problem, ndof int) error {
	if ndof <= 0 {
		return fmt.Errorf("%s: ndof must be positive, got %d", p.Name(), ndof)
	}
	if d := p.Dim(); d > 0 && ndof != d {
		return fmt.Errorf("%s: ndof must be %d, got %d", p.Name(), d, ndof)
	}
	return nil
}
