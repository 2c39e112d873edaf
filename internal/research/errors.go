package research

import (
	"fmt"
	"strings"
)

// CollaboratorTimeoutError indicates a search/fetch/oracle call exceeded its
// deadline.
type CollaboratorTimeoutError struct {
	Op  string
	Err error
}

func (e CollaboratorTimeoutError) Error() string {
	return fmt.Sprintf("collaborator timeout during %s: %v", e.Op, e.Err)
}
func (e CollaboratorTimeoutError) Unwrap() error { return e.Err }

// CollaboratorError indicates a search/fetch/oracle call failed outright.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator error during %s: %v", e.Op, e.Err)
}
func (e CollaboratorError) Unwrap() error { return e.Err }

// ValidationError indicates a structured-output candidate failed schema
// validation.
type ValidationError struct {
	Attempt int
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("structured output validation failed (attempt %d): %v", e.Attempt, e.Err)
}
func (e ValidationError) Unwrap() error { return e.Err }

// UnknownResearchTypeError is returned when the requested research type is
// not registered. It fails the run immediately.
type UnknownResearchTypeError struct {
	Name      string
	Available []string
}

func (e UnknownResearchTypeError) Error() string {
	return fmt.Sprintf("unknown research type %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// BudgetExhaustedError indicates an iteration, token, or retry cap was hit
// and the owning operation is terminally failed.
type BudgetExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e BudgetExhaustedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("budget exhausted for %s after %d attempts: %v", e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("budget exhausted for %s after %d attempts", e.Op, e.Attempts)
}
func (e BudgetExhaustedError) Unwrap() error { return e.Err }

// DispatcherAllFailedError indicates every domain sub-task in a batch failed.
type DispatcherAllFailedError struct {
	Domains []string
}

func (e DispatcherAllFailedError) Error() string {
	return fmt.Sprintf("all %d research domains failed: %s", len(e.Domains), strings.Join(e.Domains, ", "))
}

// RunFailure wraps a run-level error with the last known state so callers can
// diagnose or retry. No partial structured output is attached (fail closed).
type RunFailure struct {
	Err   error
	State *State
}

func (e RunFailure) Error() string { return e.Err.Error() }
func (e RunFailure) Unwrap() error { return e.Err }

// Gaps exposes the unresolved questions recorded before the failure.
func (e RunFailure) Gaps() []string {
	if e.State == nil {
		return nil
	}
	return e.State.Gaps
}
