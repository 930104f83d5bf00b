// Package timeslice implements one time subdomain of a Parareal solver.
//
// A [TimeSlice] owns a fine and a coarse propagator over the same interval.
// The driver injects a start state with [TimeSlice.SetSolStart], runs
// [TimeSlice.UpdateFine] and [TimeSlice.UpdateCoarse], reads the propagated
// states back, and supplies a reference end state with [TimeSlice.SetSolEnd]
// for the convergence check.
//
// When a coarse-mesh state is supplied with [WithCoarseState], the coarse
// update restricts the start state onto the coarse mesh, propagates there
// and interpolates back:
//
//	sol_coarse = I * G * R * sol_start
//
// # Thread Safety
//
// A TimeSlice is not safe for concurrent use, with one exception:
// UpdateFine and UpdateCoarse write disjoint fields and may run at the same
// time on the same slice once SetSolStart has returned. States handed in by
// the driver are never mutated; every state the slice writes to is a private
// deep copy.
package timeslice
