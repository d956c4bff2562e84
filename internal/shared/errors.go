package shared

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that a requested record was not found
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates that a pattern, timezone or configuration value was rejected
	ErrValidation = errors.New("validation failed")

	// ErrDependencyFailure indicates that an external dependency (storage) failed
	ErrDependencyFailure = errors.New("dependency failure")
)

// Kind represents a category of error.
type Kind int

const (
	// KindUnknown represents an unclassified error
	KindUnknown Kind = iota
	// KindNotFound represents missing records
	KindNotFound
	// KindValidation represents rejected input
	KindValidation
	// KindDependencyFailure represents storage failures
	KindDependencyFailure
	// KindCanceled represents context cancellation
	KindCanceled
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindValidation:
		return "Validation"
	case KindDependencyFailure:
		return "DependencyFailure"
	case KindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

var kindToSentinel = map[Kind]error{
	KindNotFound:          ErrNotFound,
	KindValidation:        ErrValidation,
	KindDependencyFailure: ErrDependencyFailure,
}

// kindPriorities defines the deterministic order for error classification.
var kindPriorities = []struct {
	kind Kind
	err  error
}{
	{KindCanceled, nil},
	{KindValidation, ErrValidation},
	{KindNotFound, ErrNotFound},
	{KindDependencyFailure, ErrDependencyFailure},
}

// KindOf returns the Kind of err by walking its chain in priority order.
// Returns KindUnknown for nil and unrecognized errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	for _, priority := range kindPriorities {
		if priority.kind == KindCanceled {
			if IsCanceled(err) {
				return KindCanceled
			}
			continue
		}
		if errors.Is(err, priority.err) {
			return priority.kind
		}
	}

	return KindUnknown
}

// MarkKind wraps err with the sentinel of kind, keeping err in the chain.
// Marking an error with a kind it already has returns it unchanged.
// If err is nil, the bare sentinel is returned.
func MarkKind(err error, kind Kind) error {
	sentinel := kindToSentinel[kind]
	if err == nil {
		return sentinel
	}
	if sentinel == nil {
		return err
	}
	if KindOf(err) == kind {
		return err
	}

	return fmt.Errorf("%w: %w", sentinel, err)
}

// Wrap wraps an error with additional context ("context: err").
// If err is nil, Wrap returns nil.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	if context == "" {
		return err
	}
	return fmt.Errorf("%s: %w", context, err)
}

// IsCanceled reports whether the error indicates a canceled context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsValidation reports whether the error indicates rejected input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDependencyFailure reports whether the error indicates a storage failure.
func IsDependencyFailure(err error) bool {
	return errors.Is(err, ErrDependencyFailure)
}
