package parareal

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"github.com/san-kum/parareal/internal/pint"
	"github.com/san-kum/parareal/internal/timeslice"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

type Option func(*Parareal)

// WithLogger sets the logger. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parareal) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithWorkers bounds the number of slices propagated at once.
func WithWorkers(n int) Option {
	return func(p *Parareal) {
		if n > 0 {
			p.workers = n
		}
	}
}

type Parareal struct {
	slices  []*timeslice.TimeSlice
	logger  *slog.Logger
	workers int
}

// Result of a Parareal run.
type Result struct {
	// Ends holds the corrected end state of every slice.
	Ends       []pint.Solution
	Iterations int
	// History holds the largest slice residual after each iteration.
	History []float64
	// Converged is false when the run stopped on the iteration budget.
	Converged bool
}

// Final returns the state at the end of the last slice.
func (r *Result) Final() pint.Solution {
	return r.Ends[len(r.Ends)-1]
}

// New checks that slices form a contiguous chain.
func New(slices []*timeslice.TimeSlice, opts ...Option) (*Parareal, error) {
	if len(slices) == 0 {
		return nil, pint.NewConfigurationError("slices", "need at least one time slice")
	}
	for i := 1; i < len(slices); i++ {
		if !pint.Close(slices[i-1].TEnd(), slices[i].TStart(), timeslice.IntervalRTol, timeslice.IntervalATol) {
			return nil, pint.NewConfigurationError("slices",
				"slice %d ends at %g but slice %d starts at %g", i-1, slices[i-1].TEnd(), i, slices[i].TStart())
		}
	}

	p := &Parareal{
		slices:  slices,
		logger:  slog.Default(),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Parareal) Slices() []*timeslice.TimeSlice { return p.slices }

func (p *Parareal) Run(ctx context.Context, u0 pint.Solution) (*Result, error) {
	ends, err := p.coarseSweep(u0)
	if err != nil {
		return nil, err
	}

	result := &Result{History: make([]float64, 0)}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := p.fineSweep(ctx); err != nil {
			return nil, err
		}
		if err := p.correct(ends); err != nil {
			return nil, err
		}
		for _, ts := range p.slices {
			ts.IncreaseIter()
		}
		result.Iterations++

		done, converged, maxRes, err := p.check()
		if err != nil {
			return nil, err
		}
		result.History = append(result.History, maxRes)

		p.logger.Info("parareal iteration",
			slog.Int("iteration", result.Iterations),
			slog.Float64("max_residual", maxRes),
			slog.Int("converged_slices", converged),
			slog.Int("slices", len(p.slices)),
		)

		if done {
			result.Converged = converged == len(p.slices)
			break
		}
	}

	result.Ends = ends
	return result, nil
}

// coarseSweep seeds every slice with the serial coarse solution.
func (p *Parareal) coarseSweep(u0 pint.Solution) ([]pint.Solution, error) {
	ends := make([]pint.Solution, len(p.slices))
	start := u0
	for i, ts := range p.slices {
		if err := ts.SetSolStart(start); err != nil {
			return nil, fmt.Errorf("slice %d: %w", i, err)
		}
		if err := ts.UpdateCoarse(); err != nil {
			return nil, fmt.Errorf("slice %d: %w", i, err)
		}
		g, err := ts.GetSolCoarse()
		if err != nil {
			return nil, err
		}
		ends[i] = g.Clone()
		if err := ts.SetSolEnd(ends[i]); err != nil {
			return nil, err
		}
		start = ends[i]
	}
	return ends, nil
}

func (p *Parareal) fineSweep(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, ts := range p.slices {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := ts.UpdateFine(); err != nil {
				return fmt.Errorf("slice %d: %w", i, err)
			}
			p.logger.Debug("fine update done",
				slog.Int("slice", i),
				slog.Float64("tstart", ts.TStart()),
				slog.Float64("tend", ts.TEnd()),
			)
			return nil
		})
	}
	return g.Wait()
}

// correct applies U[i+1] = G(U[i]) + F(U_old[i]) - G(U_old[i]) in slice order.
func (p *Parareal) correct(ends []pint.Solution) error {
	for i, ts := range p.slices {
		gOld, err := ts.GetSolCoarse()
		if err != nil {
			return err
		}
		if i > 0 {
			if err := ts.SetSolStart(ends[i-1]); err != nil {
				return fmt.Errorf("slice %d: %w", i, err)
			}
		}
		if err := ts.UpdateCoarse(); err != nil {
			return fmt.Errorf("slice %d: %w", i, err)
		}
		gNew, err := ts.GetSolCoarse()
		if err != nil {
			return err
		}
		f, err := ts.GetSolFine()
		if err != nil {
			return err
		}

		end := gNew.Clone()
		if err := end.Axpy(1.0, f); err != nil {
			return fmt.Errorf("slice %d: %w", i, err)
		}
		if err := end.Axpy(-1.0, gOld); err != nil {
			return fmt.Errorf("slice %d: %w", i, err)
		}
		ends[i] = end
		if err := ts.SetSolEnd(end); err != nil {
			return err
		}
	}
	return nil
}

// check reports whether every slice wants to stop, how many of them are
// numerically converged and the largest residual.
func (p *Parareal) check() (bool, int, float64, error) {
	done := true
	converged := 0
	maxRes := 0.0
	for i, ts := range p.slices {
		stop, err := ts.IsConverged()
		if err != nil {
			return false, 0, 0, fmt.Errorf("slice %d: %w", i, err)
		}
		res, err := ts.Residual()
		if err != nil {
			return false, 0, 0, err
		}
		maxRes = math.Max(maxRes, res)
		if res < ts.Tolerance() {
			converged++
		}
		done = done && stop
	}
	return done, converged, maxRes, nil
}

// RunFine propagates u0 serially with the fine propagators of all slices.
func (p *Parareal) RunFine(ctx context.Context, u0 pint.Solution) (pint.Solution, error) {
	sol := u0.Clone()
	for i, ts := range p.slices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := ts.Fine().Run(sol); err != nil {
			return nil, fmt.Errorf("slice %d: %w", i, err)
		}
	}
	return sol, nil
}

// FineMatrix returns the serial fine propagator over the whole chain.
func (p *Parareal) FineMatrix(sol pint.Solution) (*mat.Dense, error) {
	return p.chain(sol, (*timeslice.TimeSlice).FineUpdateMatrix)
}

// CoarseMatrix returns the serial coarse propagator over the whole chain,
// including mesh transfer when the slices coarsen in space.
func (p *Parareal) CoarseMatrix(sol pint.Solution) (*mat.Dense, error) {
	return p.chain(sol, (*timeslice.TimeSlice).CoarseUpdateMatrix)
}

func (p *Parareal) chain(sol pint.Solution, m func(*timeslice.TimeSlice, pint.Solution) (*mat.Dense, error)) (*mat.Dense, error) {
	var out *mat.Dense
	for i, ts := range p.slices {
		step, err := m(ts, sol)
		if err != nil {
			return nil, fmt.Errorf("slice %d: %w", i, err)
		}
		if out == nil {
			out = step
			continue
		}
		var next mat.Dense
		next.Mul(step, out)
		out = &next
	}
	return out, nil
}
