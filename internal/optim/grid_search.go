// Package optim searches Parareal settings for the cheapest run.
package optim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/san-kum/parareal/internal/config"
	"github.com/san-kum/parareal/internal/experiment"
	"github.com/san-kum/parareal/internal/storage"
)

var params = map[string]func(*config.Config, float64){
	"nslices":       func(c *config.Config, v float64) { c.NSlices = int(v) },
	"nsteps_fine":   func(c *config.Config, v float64) { c.NStepsFine = int(v) },
	"nsteps_coarse": func(c *config.Config, v float64) { c.NStepsCoarse = int(v) },
	"ndof_coarse":   func(c *config.Config, v float64) { c.NDOFCoarse = int(v) },
	"iter_max":      func(c *config.Config, v float64) { c.IterMax = int(v) },
	"tolerance":     func(c *config.Config, v float64) { c.Tolerance = v },
}

var objectives = map[string]func(storage.RunMetadata) float64{
	"iterations":   func(m storage.RunMetadata) float64 { return float64(m.Iterations) },
	"serial_error": func(m storage.RunMetadata) float64 { return m.SerialError },
	"wall_time":    func(m storage.RunMetadata) float64 { return m.WallTime },
}

func Params() []string     { return keys(params) }
func Objectives() []string { return keys(objectives) }

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Trial is one evaluated point of the grid.
type Trial struct {
	Params map[string]float64
	Meta   storage.RunMetadata
	Score  float64
	// Err is set when the point could not be run, e.g. an invalid config.
	Err error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	logger     *slog.Logger
}

func NewGridSearch(names []string, ranges [][]float64, logger *slog.Logger) (*GridSearch, error) {
	if len(names) != len(ranges) {
		return nil, fmt.Errorf("got %d parameters but %d ranges", len(names), len(ranges))
	}
	for i, name := range names {
		if _, ok := params[name]; !ok {
			return nil, fmt.Errorf("unknown parameter: %s (available: %v)", name, Params())
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("empty range for %s", name)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GridSearch{paramNames: names, ranges: ranges, logger: logger}, nil
}

// Search runs every grid point on top of base and returns the trial with the
// lowest objective. Unconverged runs only win when nothing converged.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, objective string) (*Trial, []Trial, error) {
	score, ok := objectives[objective]
	if !ok {
		return nil, nil, fmt.Errorf("unknown objective: %s (available: %v)", objective, Objectives())
	}

	var trials []Trial
	if err := g.searchRecursive(ctx, 0, map[string]float64{}, base, score, &trials); err != nil {
		return nil, trials, err
	}

	var best *Trial
	for i := range trials {
		t := &trials[i]
		if t.Err != nil {
			continue
		}
		if best == nil || better(t, best) {
			best = t
		}
	}
	if best == nil {
		return nil, trials, errors.New("no grid point could be run")
	}
	return best, trials, nil
}

func better(a, b *Trial) bool {
	if a.Meta.Converged != b.Meta.Converged {
		return a.Meta.Converged
	}
	return a.Score < b.Score
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	base *config.Config,
	score func(storage.RunMetadata) float64,
	trials *[]Trial,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		cfg := *base
		for name, v := range current {
			params[name](&cfg, v)
		}

		trial := Trial{Params: current, Score: math.Inf(1)}
		exp := experiment.New(&cfg, g.logger)
		if err := exp.Setup(); err != nil {
			trial.Err = err
			*trials = append(*trials, trial)
			g.logger.Debug("grid point skipped", slog.Any("params", current), slog.Any("error", err))
			return nil
		}
		out, err := exp.Run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			trial.Err = err
			*trials = append(*trials, trial)
			return nil
		}
		trial.Meta = out.Meta
		trial.Score = score(out.Meta)
		*trials = append(*trials, trial)
		return nil
	}

	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		next := make(map[string]float64, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[name] = val

		if err := g.searchRecursive(ctx, depth+1, next, base, score, trials); err != nil {
			return err
		}
	}
	return nil
}
