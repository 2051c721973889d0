package domain

import (
	"errors"
	"fmt"
)

// AutomationKind sub-classifies fatal browser failures for operator triage.
type AutomationKind string

const (
	KindBrowser        AutomationKind = "browser"
	KindLogin          AutomationKind = "login"
	KindMissingControl AutomationKind = "missing-control"
)

// AutomationError is a fatal failure of the browser-driven session.
type AutomationError struct {
	Kind AutomationKind
	Op   string
	Err  error
}

func (e *AutomationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("automation %s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("automation %s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *AutomationError) Unwrap() error { return e.Err }

// NewAutomationError wraps a browser failure with its triage kind.
func NewAutomationError(kind AutomationKind, op string, err error) *AutomationError {
	return &AutomationError{Kind: kind, Op: op, Err: err}
}

var (
	// ErrExtractionTimeout means no usable page arrived within the wait
	// budget. Retryable until the policy is exhausted, then fatal.
	ErrExtractionTimeout = errors.New("timed out waiting for portal response")

	// ErrNoData is the first-class "portal reported zero rows for this
	// query" outcome. It is signalled by an explicit total==0 page and is
	// never conflated with a timeout.
	ErrNoData = errors.New("no data for query")
)
