package timeslice

import (
	"fmt"
	"math"

	"github.com/san-kum/parareal/internal/meshtransfer"
	"github.com/san-kum/parareal/internal/pint"
	"gonum.org/v1/gonum/mat"
)

// Fine and coarse propagators must agree on the interval within these.
const (
	IntervalRTol = 1e-10
	IntervalATol = 1e-12
)

// MeshTransferFactory builds the transfer between ndofFine and ndofCoarse.
type MeshTransferFactory func(ndofFine, ndofCoarse int) (pint.MeshTransferer, error)

func defaultMeshTransfer(ndofFine, ndofCoarse int) (pint.MeshTransferer, error) {
	return meshtransfer.New(ndofFine, ndofCoarse)
}

type Option func(*TimeSlice)

// WithCoarseState enables spatial coarsening. The state is deep-copied and
// serves as the template for the coarse-mesh scratch buffer.
func WithCoarseState(u0coarse pint.Solution) Option {
	return func(ts *TimeSlice) {
		if u0coarse != nil {
			ts.coarseTemp = u0coarse.Clone()
		}
	}
}

func WithMeshTransfer(f MeshTransferFactory) Option {
	return func(ts *TimeSlice) {
		if f != nil {
			ts.newMeshTransfer = f
		}
	}
}

type TimeSlice struct {
	fine       pint.Propagator
	coarse     pint.Propagator
	tolerance  float64
	iterMax    int
	coarseTemp pint.Solution

	iteration int

	// nil means the producing call has not happened yet
	solStart  pint.Solution
	solFine   pint.Solution
	solCoarse pint.Solution
	solEnd    pint.Solution

	residual    float64
	hasResidual bool

	meshtransfer    pint.MeshTransferer
	newMeshTransfer MeshTransferFactory
}

func New(fine, coarse pint.Propagator, tolerance float64, iterMax int, opts ...Option) (*TimeSlice, error) {
	if math.IsNaN(tolerance) || tolerance < 0 {
		return nil, pint.NewConfigurationError("tolerance", "must be positive or zero, got %g", tolerance)
	}
	if iterMax < 0 {
		return nil, pint.NewConfigurationError("iter_max", "must be a positive integer or zero, got %d", iterMax)
	}
	if fine == nil {
		return nil, pint.NewConfigurationError("int_fine", "must not be nil")
	}
	if coarse == nil {
		return nil, pint.NewConfigurationError("int_coarse", "must not be nil")
	}
	if !pint.Close(fine.TStart(), coarse.TStart(), IntervalRTol, IntervalATol) {
		return nil, pint.NewConfigurationError("int_coarse", "tstart %g differs from fine tstart %g", coarse.TStart(), fine.TStart())
	}
	if !pint.Close(fine.TEnd(), coarse.TEnd(), IntervalRTol, IntervalATol) {
		return nil, pint.NewConfigurationError("int_coarse", "tend %g differs from fine tend %g", coarse.TEnd(), fine.TEnd())
	}

	ts := &TimeSlice{
		fine:            fine,
		coarse:          coarse,
		tolerance:       tolerance,
		iterMax:         iterMax,
		newMeshTransfer: defaultMeshTransfer,
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts, nil
}

// SetSolStart stores sol by reference and reseeds sol_coarse with a copy of
// it. The first call also sizes the mesh transfer.
func (ts *TimeSlice) SetSolStart(sol pint.Solution) error {
	if sol == nil {
		return pint.NewConfigurationError("sol", "start solution must not be nil")
	}
	if err := ts.setupMeshTransfer(sol.NDOF()); err != nil {
		return err
	}
	ts.solStart = sol
	ts.solCoarse = sol.Clone()
	return nil
}

// setupMeshTransfer builds the transfer exactly once. Later calls with the
// same fine size are no-ops.
func (ts *TimeSlice) setupMeshTransfer(ndof int) error {
	if ts.meshtransfer != nil {
		return pint.CheckDim("SetSolStart", ts.meshtransfer.NDOFFine(), ndof)
	}
	ndofCoarse := ndof
	if ts.coarseTemp != nil {
		ndofCoarse = ts.coarseTemp.NDOF()
	}
	mt, err := ts.newMeshTransfer(ndof, ndofCoarse)
	if err != nil {
		return fmt.Errorf("timeslice: mesh transfer: %w", err)
	}
	ts.meshtransfer = mt
	return nil
}

// SetSolEnd stores the reference end state. It is treated as read-only.
func (ts *TimeSlice) SetSolEnd(sol pint.Solution) error {
	if sol == nil {
		return pint.NewConfigurationError("sol", "end solution must not be nil")
	}
	ts.solEnd = sol
	return nil
}

func (ts *TimeSlice) IncreaseIter() {
	ts.iteration++
}

func (ts *TimeSlice) UpdateFine() error {
	if ts.solStart == nil {
		return &pint.PreconditionError{Op: "UpdateFine", Missing: "SetSolStart"}
	}
	sol := ts.solStart.Clone()
	if err := ts.fine.Run(sol); err != nil {
		return fmt.Errorf("timeslice: fine propagation: %w", err)
	}
	ts.solFine = sol
	return nil
}

// UpdateCoarse computes sol_coarse = I * G * R * sol_start, or G * sol_start
// without coarsening. The result is written to a fresh state, so references
// previously returned by GetSolCoarse keep the old value.
func (ts *TimeSlice) UpdateCoarse() error {
	if ts.solStart == nil {
		return &pint.PreconditionError{Op: "UpdateCoarse", Missing: "SetSolStart"}
	}

	if ts.coarseTemp == nil {
		temp := ts.solStart.Clone()
		if err := ts.coarse.Run(temp); err != nil {
			return fmt.Errorf("timeslice: coarse propagation: %w", err)
		}
		ts.solCoarse = temp
		return nil
	}

	temp := ts.coarseTemp.Clone()
	if err := ts.meshtransfer.Restrict(ts.solStart, temp); err != nil {
		return fmt.Errorf("timeslice: restrict: %w", err)
	}
	if err := ts.coarse.Run(temp); err != nil {
		return fmt.Errorf("timeslice: coarse propagation: %w", err)
	}
	next := ts.solCoarse.Clone()
	if err := ts.meshtransfer.Interpolate(next, temp); err != nil {
		return fmt.Errorf("timeslice: interpolate: %w", err)
	}
	ts.solCoarse = next
	return nil
}

// SetResidual computes ||sol_fine - sol_end|| without touching either state.
func (ts *TimeSlice) SetResidual() (float64, error) {
	if ts.solFine == nil {
		return 0, &pint.PreconditionError{Op: "SetResidual", Missing: "UpdateFine"}
	}
	if ts.solEnd == nil {
		return 0, &pint.PreconditionError{Op: "SetResidual", Missing: "SetSolEnd"}
	}
	res := ts.solFine.Clone()
	if err := res.Axpy(-1.0, ts.solEnd); err != nil {
		return 0, fmt.Errorf("timeslice: residual: %w", err)
	}
	ts.residual = res.Norm()
	ts.hasResidual = true
	return ts.residual, nil
}

// GetResidual recomputes the residual on every call.
func (ts *TimeSlice) GetResidual() (float64, error) {
	return ts.SetResidual()
}

// Residual returns the last value computed by SetResidual.
func (ts *TimeSlice) Residual() (float64, error) {
	if !ts.hasResidual {
		return 0, &pint.PreconditionError{Op: "Residual", Missing: "SetResidual"}
	}
	return ts.residual, nil
}

// IsConverged reports whether iteration on this slice should stop: either
// the residual dropped below the tolerance or the iteration budget is used
// up. Use Converged and Exhausted to tell the two apart.
func (ts *TimeSlice) IsConverged() (bool, error) {
	converged, err := ts.Converged()
	if err != nil {
		return false, err
	}
	return converged || ts.Exhausted(), nil
}

// Converged recomputes the residual and compares it with the tolerance.
func (ts *TimeSlice) Converged() (bool, error) {
	res, err := ts.SetResidual()
	if err != nil {
		return false, err
	}
	return res < ts.tolerance, nil
}

func (ts *TimeSlice) Exhausted() bool {
	return ts.iteration >= ts.iterMax
}

func (ts *TimeSlice) FineUpdateMatrix(sol pint.Solution) (*mat.Dense, error) {
	lp, ok := ts.fine.(pint.LinearPropagator)
	if !ok {
		return nil, fmt.Errorf("timeslice: fine propagator %T has no matrix form: %w", ts.fine, pint.ErrNotLinear)
	}
	return lp.UpdateMatrix(sol)
}

// CoarseUpdateMatrix returns the coarse update as one operator. With
// spatial coarsening this is I * G * R, where G is the coarse propagator
// matrix on the coarse mesh.
func (ts *TimeSlice) CoarseUpdateMatrix(sol pint.Solution) (*mat.Dense, error) {
	lp, ok := ts.coarse.(pint.LinearPropagator)
	if !ok {
		return nil, fmt.Errorf("timeslice: coarse propagator %T has no matrix form: %w", ts.coarse, pint.ErrNotLinear)
	}
	if ts.coarseTemp == nil {
		return lp.UpdateMatrix(sol)
	}
	if sol == nil {
		return nil, pint.NewConfigurationError("sol", "template solution must not be nil")
	}
	if err := ts.setupMeshTransfer(sol.NDOF()); err != nil {
		return nil, err
	}
	g, err := lp.UpdateMatrix(ts.coarseTemp)
	if err != nil {
		return nil, err
	}
	var gr, igr mat.Dense
	gr.Mul(g, ts.meshtransfer.Restriction())
	igr.Mul(ts.meshtransfer.Interpolation(), &gr)
	return &igr, nil
}

func (ts *TimeSlice) TStart() float64 { return ts.fine.TStart() }
func (ts *TimeSlice) TEnd() float64   { return ts.fine.TEnd() }

func (ts *TimeSlice) Iteration() int          { return ts.iteration }
func (ts *TimeSlice) IterMax() int            { return ts.iterMax }
func (ts *TimeSlice) Tolerance() float64      { return ts.tolerance }
func (ts *TimeSlice) HasCoarsening() bool     { return ts.coarseTemp != nil }
func (ts *TimeSlice) Fine() pint.Propagator   { return ts.fine }
func (ts *TimeSlice) Coarse() pint.Propagator { return ts.coarse }

// MeshTransfer returns nil until a start state or a coarse matrix query has
// sized it.
func (ts *TimeSlice) MeshTransfer() pint.MeshTransferer { return ts.meshtransfer }

func (ts *TimeSlice) GetSolStart() (pint.Solution, error) {
	if ts.solStart == nil {
		return nil, &pint.PreconditionError{Op: "GetSolStart", Missing: "SetSolStart"}
	}
	return ts.solStart, nil
}

func (ts *TimeSlice) GetSolFine() (pint.Solution, error) {
	if ts.solFine == nil {
		return nil, &pint.PreconditionError{Op: "GetSolFine", Missing: "UpdateFine"}
	}
	return ts.solFine, nil
}

func (ts *TimeSlice) GetSolCoarse() (pint.Solution, error) {
	if ts.solCoarse == nil {
		return nil, &pint.PreconditionError{Op: "GetSolCoarse", Missing: "SetSolStart"}
	}
	return ts.solCoarse, nil
}

func (ts *TimeSlice) GetSolEnd() (pint.Solution, error) {
	if ts.solEnd == nil {
		return nil, &pint.PreconditionError{Op: "GetSolEnd", Missing: "SetSolEnd"}
	}
	return ts.solEnd, nil
}
