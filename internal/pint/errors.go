package pint

import (
	"errors"
	"fmt"
)

// Domain errors for the parallel-in-time core.
var (
	// ErrConfiguration indicates invalid construction parameters.
	ErrConfiguration = errors.New("pint: invalid configuration")

	// ErrPrecondition indicates an operation called before its required predecessor.
	ErrPrecondition = errors.New("pint: precondition not met")

	// ErrDimensionMismatch indicates solutions with incompatible degrees of freedom.
	ErrDimensionMismatch = errors.New("pint: dimension mismatch")

	// ErrNotLinear indicates a solution without a linear operator view.
	ErrNotLinear = errors.New("pint: solution does not expose a linear operator")

	// ErrNoVector indicates a solution without a vector view.
	ErrNoVector = errors.New("pint: solution does not expose a vector")
)

// ConfigurationError names the offending construction parameter.
type ConfigurationError struct {
	Param  string
	Reason string
}

func NewConfigurationError(param, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Param: param, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Param, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// PreconditionError reports which predecessor call is missing.
type PreconditionError struct {
	Op      string
	Missing string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s was never executed", e.Op, e.Missing)
}

func (e *PreconditionError) Unwrap() error {
	return ErrPrecondition
}

type DimensionMismatchError struct {
	Op   string
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d degrees of freedom, got %d", e.Op, e.Want, e.Got)
}

func (e *DimensionMismatchError) Unwrap() error {
	return ErrDimensionMismatch
}

// CheckDim returns a DimensionMismatchError when got differs from want.
func CheckDim(op string, want, got int) error {
	if want != got {
		return &DimensionMismatchError{Op: op, Want: want, Got: got}
	}
	return nil
}
