package types

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad or missing credentials or configuration. Work
	// guarded by a validation failure is never attempted.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownStrategy marks a kind tag with no registered strategy.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrExternalTool marks a VCS, compiler or host API call that failed or
	// reported errors.
	ErrExternalTool = errors.New("external tool failed")
)

type UnknownStrategyError struct {
	Kind string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("unknown strategy for kind %q", e.Kind)
}

func (e *UnknownStrategyError) Is(target error) bool {
	return target == ErrUnknownStrategy
}
