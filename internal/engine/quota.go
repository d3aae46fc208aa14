package engine

import (
	"errors"
	"fmt"
)

// DefaultCascadeSteps bounds a cascade when WithCascade is given a non-positive limit.
const DefaultCascadeSteps = 32

// QuotaEnforcer counts consecutive merges in one cascade chain and enforces a
// maximum.
//
// A chain starts with an externally triggered scan and continues while each
// commit finds another run. Without a bound a progression table with an
// explicit successor loop could merge forever.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a quota enforcer with the given limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check counts one step and returns StepsExceededError past the limit.
func (q *QuotaEnforcer) Check(chain string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			Chain: chain,
			Steps: q.current,
			Limit: q.maxSteps,
		}
	}
	return nil
}

// Reset starts a new chain.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError reports a cascade chain that hit its limit.
// The pipeline stops re-scanning and returns to idle; the queue keeps its state.
type StepsExceededError struct {
	Chain string
	Steps int
	Limit int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("cascade %s exceeded max steps: %d steps > %d limit",
		e.Chain, e.Steps, e.Limit)
}

// IsStepsExceededError reports whether err is a StepsExceededError.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
