package research

import (
	"context"
	"errors"
)

// retryableError marks an error as worth another attempt. Collaborator
// adapters wrap transient failures with Retryable; anything unwrapped is
// treated as fatal by the retry combinator.
type retryableError struct{ err error }

func (e retryableError) Error() string { return e.err.Error() }
func (e retryableError) Unwrap() error { return e.err }

// Retryable marks err as transient.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return retryableError{err: err}
}

// IsRetryable reports whether err was marked transient anywhere in its chain.
func IsRetryable(err error) bool {
	var r retryableError
	return errors.As(err, &r)
}

// RetryBudget is a per-operation attempt counter. Exhausting it transitions
// the owning operation to a terminal failure.
type RetryBudget struct {
	Op      string
	Retries int // additional attempts after the first
	used    int
}

// Spend consumes one retry, reporting false once the budget is gone.
func (b *RetryBudget) Spend() bool {
	if b.used >= b.Retries {
		return false
	}
	b.used++
	return true
}

// Attempts returns the number of attempts made so far (first try included).
func (b *RetryBudget) Attempts() int { return b.used + 1 }

// retryDo runs op until it succeeds, returns a fatal error, or the budget is
// exhausted. Context cancellation surfaces as a CollaboratorTimeoutError.
func retryDo[T any](ctx context.Context, b *RetryBudget, op func(context.Context) (T, error)) (T, error) {
	var zero T
	for {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, CollaboratorTimeoutError{Op: b.Op, Err: ctx.Err()}
		}
		if !IsRetryable(err) {
			return zero, err
		}
		if !b.Spend() {
			return zero, BudgetExhaustedError{Op: b.Op, Attempts: b.Attempts(), Err: unwrapRetryable(err)}
		}
	}
}

// unwrapRetryable strips the retryable marker for error reporting.
func unwrapRetryable(err error) error {
	var r retryableError
	if errors.As(err, &r) {
		return r.err
	}
	return err
}
