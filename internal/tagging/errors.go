// Package tagging defines the error kinds shared across the zero-shot
// tagging engine's components, per spec.md §7.
package tagging

import "fmt"

// ConfigError reports a configuration value out of range (zero workers,
// out-of-[0,1] confidence thresholds, zero batch sizes, and so on).
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Reason)
}

// ModelError reports a missing ONNX/tokenizer file, session-creation
// failure, inference failure, or cache I/O failure.
type ModelError struct {
	Reason string
	Cause  error
}

func (e *ModelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("model error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("model error: %s", e.Reason)
}

func (e *ModelError) Unwrap() error { return e.Cause }

// TaggingErrorKind distinguishes the two failure modes a Scorer can report.
type TaggingErrorKind int

const (
	// DimensionMismatch: the image embedding length differs from the
	// label bank's embedding dimension.
	DimensionMismatch TaggingErrorKind = iota
	// BackendFailure: a lower-level BLAS/inference failure propagated out
	// of scoring.
	BackendFailure
)

func (k TaggingErrorKind) String() string {
	switch k {
	case DimensionMismatch:
		return "DimensionMismatch"
	case BackendFailure:
		return "BackendFailure"
	default:
		return "Unknown"
	}
}

// TaggingError reports a scoring-time failure. Dimension mismatches are
// programmer errors (spec.md §7) and are never retried by the core.
type TaggingError struct {
	Kind   TaggingErrorKind
	Reason string
	Cause  error
}

func (e *TaggingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("tagging error (%s): %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("tagging error (%s): %s", e.Kind, e.Reason)
}

func (e *TaggingError) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, &TaggingError{Kind: DimensionMismatch}) to match
// on kind alone, ignoring the Reason/Cause payload.
func (e *TaggingError) Is(target error) bool {
	t, ok := target.(*TaggingError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
