// Package experiment turns a run configuration into a Parareal solve and
// compares it against the serial fine solution.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/parareal/internal/config"
	"github.com/san-kum/parareal/internal/models"
	"github.com/san-kum/parareal/internal/parareal"
	"github.com/san-kum/parareal/internal/pint"
	"github.com/san-kum/parareal/internal/solution"
	"github.com/san-kum/parareal/internal/storage"
)

type Outcome struct {
	Meta    storage.RunMetadata
	History []float64
	Final   []float64
}

type Experiment struct {
	cfg    *config.Config
	logger *slog.Logger
	solver *parareal.Parareal
	u0     *solution.Linear
}

func New(cfg *config.Config, logger *slog.Logger) *Experiment {
	if logger == nil {
		logger = slog.Default()
	}
	return &Experiment{cfg: cfg, logger: logger}
}

// Setup builds the problem, the initial state and the slice chain.
func (e *Experiment) Setup() error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	prob, err := problem(e.cfg)
	if err != nil {
		return err
	}

	u0, err := linearState(prob, e.cfg.NDOF, true)
	if err != nil {
		return fmt.Errorf("initial state: %w", err)
	}

	var coarse pint.Solution
	if e.cfg.Coarsened() {
		c, err := linearState(prob, e.cfg.NDOFCoarse, false)
		if err != nil {
			return fmt.Errorf("coarse state: %w", err)
		}
		coarse = c
	}

	slices, err := parareal.BuildSlices(parareal.SliceConfig{
		TStart:       0,
		TEnd:         e.cfg.TEnd,
		NSlices:      e.cfg.NSlices,
		Fine:         e.cfg.Fine,
		Coarse:       e.cfg.Coarse,
		NStepsFine:   e.cfg.NStepsFine,
		NStepsCoarse: e.cfg.NStepsCoarse,
		Tolerance:    e.cfg.Tolerance,
		IterMax:      e.cfg.IterMax,
		CoarseState:  coarse,
	})
	if err != nil {
		return err
	}

	solver, err := parareal.New(slices, parareal.WithLogger(e.logger), parareal.WithWorkers(e.cfg.Workers))
	if err != nil {
		return err
	}

	e.solver = solver
	e.u0 = u0
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*Outcome, error) {
	if e.solver == nil {
		return nil, fmt.Errorf("experiment not setup")
	}

	e.logger.Info("parareal run started",
		slog.String("problem", e.cfg.Problem),
		slog.Int("ndof", e.cfg.NDOF),
		slog.Int("ndof_coarse", e.cfg.NDOFCoarse),
		slog.Int("slices", e.cfg.NSlices),
	)

	start := time.Now()
	res, err := e.solver.Run(ctx, e.u0)
	if err != nil {
		return nil, err
	}
	wall := time.Since(start)

	serial, err := e.solver.RunFine(ctx, e.u0)
	if err != nil {
		return nil, fmt.Errorf("serial fine reference: %w", err)
	}
	d := res.Final().Clone()
	if err := d.Axpy(-1, serial); err != nil {
		return nil, err
	}

	final, ok := res.Final().(*solution.Linear)
	if !ok {
		return nil, fmt.Errorf("unexpected final state %T", res.Final())
	}

	meta := storage.RunMetadata{
		Problem:      e.cfg.Problem,
		Timestamp:    start,
		NDOF:         e.cfg.NDOF,
		NDOFCoarse:   e.cfg.NDOFCoarse,
		TEnd:         e.cfg.TEnd,
		NSlices:      e.cfg.NSlices,
		Fine:         e.cfg.Fine,
		Coarse:       e.cfg.Coarse,
		NStepsFine:   e.cfg.NStepsFine,
		NStepsCoarse: e.cfg.NStepsCoarse,
		Tolerance:    e.cfg.Tolerance,
		IterMax:      e.cfg.IterMax,
		Iterations:   res.Iterations,
		Converged:    res.Converged,
		SerialError:  d.Norm(),
		WallTime:     wall.Seconds(),
	}

	e.logger.Info("parareal run finished",
		slog.Int("iterations", res.Iterations),
		slog.Bool("converged", res.Converged),
		slog.Float64("serial_error", meta.SerialError),
		slog.Duration("wall", wall),
	)

	return &Outcome{Meta: meta, History: res.History, Final: final.Values()}, nil
}

func problem(cfg *config.Config) (models.Problem, error) {
	prob, err := models.Get(cfg.Problem)
	if err != nil {
		return nil, err
	}
	switch p := prob.(type) {
	case *models.Heat:
		p.Nu = cfg.Params.Nu
	case *models.Oscillator:
		p.Omega = cfg.Params.Omega
		p.Damping = cfg.Params.Damping
	case *models.Decay:
		p.Lambda = cfg.Params.Lambda
	}
	return prob, nil
}

// linearState builds a state on an ndof mesh. Coarse scratch states only
// need the operator, so their values are left at zero.
func linearState(prob models.Problem, ndof int, initial bool) (*solution.Linear, error) {
	a, err := prob.Operator(ndof)
	if err != nil {
		return nil, err
	}
	y := make([]float64, ndof)
	if initial {
		if y, err = prob.Initial(ndof); err != nil {
			return nil, err
		}
	}
	return solution.NewLinear(y, a)
}
