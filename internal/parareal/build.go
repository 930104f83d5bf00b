package parareal

import (
	"fmt"

	"github.com/san-kum/parareal/internal/integrators"
	"github.com/san-kum/parareal/internal/pint"
	"github.com/san-kum/parareal/internal/timeslice"
)

// SliceConfig describes a uniform decomposition of [TStart, TEnd].
type SliceConfig struct {
	TStart       float64
	TEnd         float64
	NSlices      int
	Fine         string
	Coarse       string
	NStepsFine   int
	NStepsCoarse int
	Tolerance    float64
	IterMax      int
	// CoarseState enables spatial coarsening when non-nil.
	CoarseState pint.Solution
}

// BuildSlices creates NSlices contiguous slices. Neighbouring slices share
// the exact same boundary value.
func BuildSlices(cfg SliceConfig) ([]*timeslice.TimeSlice, error) {
	if cfg.NSlices <= 0 {
		return nil, pint.NewConfigurationError("nslices", "must be positive, got %d", cfg.NSlices)
	}

	var opts []timeslice.Option
	if cfg.CoarseState != nil {
		opts = append(opts, timeslice.WithCoarseState(cfg.CoarseState))
	}

	width := cfg.TEnd - cfg.TStart
	slices := make([]*timeslice.TimeSlice, cfg.NSlices)
	t0 := cfg.TStart
	for i := 0; i < cfg.NSlices; i++ {
		t1 := cfg.TStart + width*float64(i+1)/float64(cfg.NSlices)
		if i == cfg.NSlices-1 {
			t1 = cfg.TEnd
		}

		fine, err := integrators.New(cfg.Fine, t0, t1, cfg.NStepsFine)
		if err != nil {
			return nil, fmt.Errorf("slice %d: fine: %w", i, err)
		}
		coarse, err := integrators.New(cfg.Coarse, t0, t1, cfg.NStepsCoarse)
		if err != nil {
			return nil, fmt.Errorf("slice %d: coarse: %w", i, err)
		}
		ts, err := timeslice.New(fine, coarse, cfg.Tolerance, cfg.IterMax, opts...)
		if err != nil {
			return nil, fmt.Errorf("slice %d: %w", i, err)
		}
		slices[i] = ts
		t0 = t1
	}
	return slices, nil
}
