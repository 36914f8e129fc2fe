// Package hops holds the trajectory entry points for the hierarchy of pure
// states propagator. Propagation itself is not implemented yet.
package hops

import (
	"errors"
	"fmt"
	"strings"
)

// Version of the trajectory API.
const Version = "0.1.0"

// InvalidKindError is returned when a propagation kind cannot be used.
type InvalidKindError struct {
	Kind string
}

func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("invalid kind %q", e.Kind)
}

// IsInvalidKind reports whether err wraps an InvalidKindError.
func IsInvalidKind(err error) bool {
	var kindErr *InvalidKindError
	return errors.As(err, &kindErr)
}

// Propagate finds the wave function for the given kinds. Kinds are optional;
// a blank kind is rejected. The result is always 0.
func Propagate(kinds ...string) (int, error) {
	for _, kind := range kinds {
		if strings.TrimSpace(kind) == "" {
			return 0, &InvalidKindError{Kind: kind}
		}
	}
	return 0, nil
}

// HopsTrajectory is a single trajectory run. It carries no state.
type HopsTrajectory[S any] struct{}

// NewHopsTrajectory creates an empty trajectory.
func NewHopsTrajectory[S any]() *HopsTrajectory[S] {
	return &HopsTrajectory[S]{}
}

// Initialize returns psi0 unchanged.
func (t *HopsTrajectory[S]) Initialize(psi0 S) S {
	return psi0
}
