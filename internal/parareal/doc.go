// Package parareal drives a chain of time slices with the Parareal
// iteration.
//
// Each iteration runs the fine propagator on every slice concurrently and
// then sweeps the slices in order applying the correction
//
//	U[i+1] = G(U[i]) + F(U_old[i]) - G(U_old[i])
//
// where F and G are the fine and coarse propagators of slice i. After k
// iterations the first k slices carry the serial fine solution exactly, so
// the method terminates after at most len(slices) iterations when the
// tolerance is zero.
//
// # Example
//
//	slices, _ := parareal.BuildSlices(parareal.SliceConfig{...})
//	p, _ := parareal.New(slices, parareal.WithLogger(logger))
//	result, _ := p.Run(ctx, u0)
package parareal
