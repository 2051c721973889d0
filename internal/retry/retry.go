// Package retry centralizes the retry policy shared by the search step and
// the page-fetch step: max attempts, a growing backoff schedule, and the
// retryable-vs-fatal split.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/CaixiangyangCD/ksx/internal/domain"
)

// Policy describes a bounded retry loop with linear-growth backoff.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	// Step is added to the delay after every failed attempt.
	Step time.Duration
}

// Default matches the portal's observed flakiness: a handful of attempts
// with sub-second growth.
func Default() Policy {
	return Policy{MaxAttempts: 5, InitialBackoff: 500 * time.Millisecond, Step: 500 * time.Millisecond}
}

// Retryable reports whether err is worth another attempt. Timeouts are
// retryable; automation failures and the no-data outcome are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrNoData) {
		return false
	}
	var autoErr *domain.AutomationError
	if errors.As(err, &autoErr) {
		return false
	}
	return errors.Is(err, domain.ErrExtractionTimeout)
}

// Do runs fn until it succeeds, fails fatally, or attempts are exhausted.
// The last error is returned unwrapped so callers keep its classification.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := p.InitialBackoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay += p.Step
	}
	return err
}
