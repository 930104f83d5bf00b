package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/parareal/internal/pint"
)

type factory func(tstart, tend float64, nsteps int) (pint.LinearPropagator, error)

var registry = map[string]factory{
	"impeuler": func(a, b float64, n int) (pint.LinearPropagator, error) { return NewImplicitEuler(a, b, n) },
	"euler":    func(a, b float64, n int) (pint.LinearPropagator, error) { return NewEuler(a, b, n) },
	"rk4":      func(a, b float64, n int) (pint.LinearPropagator, error) { return NewRK4(a, b, n) },
}

// New builds the named propagator over [tstart, tend].
func New(name string, tstart, tend float64, nsteps int) (pint.LinearPropagator, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(tstart, tend, nsteps)
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
