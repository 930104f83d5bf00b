// Package pint defines the capability contracts shared by the
// parallel-in-time solver.
//
// The solver core only ever talks to collaborators through these interfaces:
//
//   - [Solution]: a mutable state vector with in-place affine update and a norm
//   - [Linear]: a solution that also exposes the operator A of y' = A y
//   - [Propagator]: advances a solution over a fixed interval in nsteps steps
//   - [LinearPropagator]: a propagator that can report its action as a matrix
//   - [MeshTransferer]: maps solutions between two degrees-of-freedom counts
//
// # Errors
//
// All failures are programming or configuration defects. They are reported
// through the sentinel errors [ErrConfiguration], [ErrPrecondition],
// [ErrDimensionMismatch] and [ErrNotLinear]; use errors.Is to classify them.
package pint
