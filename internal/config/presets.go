package config

import "sort"

var Presets = map[string]map[string]*Config{
	"heat": {
		"small": {
			Problem: "heat", NDOF: 17, TEnd: 1.0, NSlices: 4,
			Fine: "impeuler", Coarse: "impeuler", NStepsFine: 40, NStepsCoarse: 2,
			Tolerance: 1e-8, IterMax: 4, Params: ProblemConfig{Nu: 0.1},
		},
		"coarsened": {
			Problem: "heat", NDOF: 65, NDOFCoarse: 17, TEnd: 1.0, NSlices: 16,
			Fine: "impeuler", Coarse: "impeuler", NStepsFine: 100, NStepsCoarse: 2,
			Tolerance: 1e-8, IterMax: 16, Params: ProblemConfig{Nu: 0.1},
		},
		"stiff": {
			Problem: "heat", NDOF: 129, TEnd: 0.5, NSlices: 32,
			Fine: "impeuler", Coarse: "impeuler", NStepsFine: 200, NStepsCoarse: 1,
			Tolerance: 1e-10, IterMax: 32, Params: ProblemConfig{Nu: 1.0},
		},
	},
	"oscillator": {
		"long": {
			Problem: "oscillator", NDOF: 2, TEnd: 20.0, NSlices: 20,
			Fine: "rk4", Coarse: "impeuler", NStepsFine: 100, NStepsCoarse: 4,
			Tolerance: 1e-6, IterMax: 20, Params: ProblemConfig{Omega: 1.0},
		},
		"damped": {
			Problem: "oscillator", NDOF: 2, TEnd: 10.0, NSlices: 10,
			Fine: "rk4", Coarse: "rk4", NStepsFine: 100, NStepsCoarse: 5,
			Tolerance: 1e-8, IterMax: 10, Params: ProblemConfig{Omega: 2.0, Damping: 0.3},
		},
	},
	"decay": {
		"scalar": {
			Problem: "decay", NDOF: 1, TEnd: 5.0, NSlices: 5,
			Fine: "impeuler", Coarse: "euler", NStepsFine: 100, NStepsCoarse: 2,
			Tolerance: 1e-10, IterMax: 5, Params: ProblemConfig{Lambda: 1.0},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(problem, preset string) *Config {
	problemPresets, ok := Presets[problem]
	if !ok {
		return nil
	}
	cfg, ok := problemPresets[preset]
	if !ok {
		return nil
	}
	c := *cfg
	return &c
}

func ListPresets(problem string) []string {
	problemPresets, ok := Presets[problem]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(problemPresets))
	for name := range problemPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
