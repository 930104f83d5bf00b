package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultProblem      = "heat"
	DefaultNDOF         = 33
	DefaultTEnd         = 1.0
	DefaultNSlices      = 8
	DefaultIntegrator   = "impeuler"
	DefaultNStepsFine   = 50
	DefaultNStepsCoarse = 2
	DefaultTolerance    = 1e-8
	DefaultIterMax      = 8
)

type Config struct {
	Problem      string        `yaml:"problem" validate:"required,oneof=heat oscillator decay"`
	NDOF         int           `yaml:"ndof" validate:"gt=0"`
	NDOFCoarse   int           `yaml:"ndof_coarse" validate:"gte=0,ltefield=NDOF"`
	TEnd         float64       `yaml:"tend" validate:"gt=0"`
	NSlices      int           `yaml:"nslices" validate:"gt=0"`
	Fine         string        `yaml:"fine" validate:"required,oneof=impeuler euler rk4"`
	Coarse       string        `yaml:"coarse" validate:"required,oneof=impeuler euler rk4"`
	NStepsFine   int           `yaml:"nsteps_fine" validate:"gt=0"`
	NStepsCoarse int           `yaml:"nsteps_coarse" validate:"gt=0,ltefield=NStepsFine"`
	Tolerance    float64       `yaml:"tolerance" validate:"gte=0"`
	IterMax      int           `yaml:"iter_max" validate:"gte=0"`
	Workers      int           `yaml:"workers" validate:"gte=0"`
	Params       ProblemConfig `yaml:"params"`
}

type ProblemConfig struct {
	Nu      float64 `yaml:"nu" validate:"gte=0"`
	Omega   float64 `yaml:"omega"`
	Damping float64 `yaml:"damping" validate:"gte=0"`
	Lambda  float64 `yaml:"lambda"`
}

func DefaultConfig() *Config {
	return &Config{
		Problem:      DefaultProblem,
		NDOF:         DefaultNDOF,
		TEnd:         DefaultTEnd,
		NSlices:      DefaultNSlices,
		Fine:         DefaultIntegrator,
		Coarse:       DefaultIntegrator,
		NStepsFine:   DefaultNStepsFine,
		NStepsCoarse: DefaultNStepsCoarse,
		Tolerance:    DefaultTolerance,
		IterMax:      DefaultIterMax,
		Params: ProblemConfig{
			Nu:     0.1,
			Omega:  1.0,
			Lambda: 1.0,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field and reports the first offending one by its
// yaml name.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("config: %s fails %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Errorf("config: %w", err)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Coarsened reports whether spatial coarsening is requested.
func (c *Config) Coarsened() bool {
	return c.NDOFCoarse > 0 && c.NDOFCoarse != c.NDOF
}
