package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/mergeq/internal/ir"
)

// Error is returned by engine operations that are refused.
//
// Refusals never mutate the queue. RuleResolutionMiss (no successor for a run)
// is not an error: the scanner skips it and logs at debug.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// RecipeID identifies the recipe, for activation and unlock errors.
	RecipeID string

	// TokenID identifies the token, for consume errors.
	TokenID ir.TokenID

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// CodeConfiguration indicates invalid configuration or an allocator setup fault.
	CodeConfiguration ErrorCode = "CONFIGURATION"

	// CodeQueueFull indicates an insert into a full queue.
	CodeQueueFull ErrorCode = "QUEUE_FULL"

	// CodeStaleIndex indicates a captured recipe index no longer matches the queue.
	CodeStaleIndex ErrorCode = "STALE_INDEX"

	// CodeAllocatorExhausted indicates the allocator yielded no visual node.
	CodeAllocatorExhausted ErrorCode = "ALLOCATOR_EXHAUSTED"

	// CodeLocked indicates activation of a recipe that is not unlocked.
	CodeLocked ErrorCode = "LOCKED"

	// CodeBusy indicates a command issued while a merge is in flight.
	CodeBusy ErrorCode = "BUSY"

	// CodeUnknownRecipe indicates a recipe id not in the registry.
	CodeUnknownRecipe ErrorCode = "UNKNOWN_RECIPE"

	// CodeUnknownToken indicates a token id not in the queue.
	CodeUnknownToken ErrorCode = "UNKNOWN_TOKEN"

	// CodeUnknownType indicates a type id not in the catalog.
	CodeUnknownType ErrorCode = "UNKNOWN_TYPE"

	// CodeClosed indicates a command issued after Close.
	CodeClosed ErrorCode = "CLOSED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RecipeID != "" {
		msg += fmt.Sprintf(" (recipe=%s)", e.RecipeID)
	}
	if e.TokenID != 0 {
		msg += fmt.Sprintf(" (token=%d)", e.TokenID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// IsQueueFull reports whether err is a queue-full refusal.
func IsQueueFull(err error) bool { return CodeOf(err) == CodeQueueFull }

// IsStaleIndex reports whether err is a stale recipe index refusal.
func IsStaleIndex(err error) bool { return CodeOf(err) == CodeStaleIndex }

// IsLocked reports whether err is a locked recipe refusal.
func IsLocked(err error) bool { return CodeOf(err) == CodeLocked }

// IsBusy reports whether err was refused because a merge is in flight.
func IsBusy(err error) bool { return CodeOf(err) == CodeBusy }

// IsAllocatorExhausted reports whether err came from an empty allocator.
func IsAllocatorExhausted(err error) bool { return CodeOf(err) == CodeAllocatorExhausted }

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
