package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies analysis failures so callers know whether to retry.
type ErrorKind string

const (
	// KindInsufficientData - fewer than the minimum history years. Recoverable:
	// the affected extractor degrades to unavailable instead of failing the job.
	KindInsufficientData ErrorKind = "insufficient_data"
	// KindNotFound - the symbol does not exist upstream. Do not retry.
	KindNotFound ErrorKind = "not_found"
	// KindSourceUnavailable - an upstream fetch failed. Retry after a cooldown.
	KindSourceUnavailable ErrorKind = "source_unavailable"
	// KindMalformedData - upstream data failed validation.
	KindMalformedData ErrorKind = "malformed_data"
	// KindTimeout - the job exceeded its wall-clock budget. Retry after a cooldown.
	KindTimeout ErrorKind = "timeout"
	// KindConfiguration - invalid startup configuration. Fatal, never retried.
	KindConfiguration ErrorKind = "configuration"
)

// AnalysisError is the structured error returned by a failed analysis.
type AnalysisError struct {
	Kind   ErrorKind `json:"kind"`
	Symbol string    `json:"symbol,omitempty"`
	Err    error     `json:"-"`
}

func (e *AnalysisError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Kind, e.Symbol, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// NewError wraps err with a taxonomy kind and the affected symbol.
func NewError(kind ErrorKind, symbol string, err error) *AnalysisError {
	return &AnalysisError{Kind: kind, Symbol: symbol, Err: err}
}

// Errorf is the formatted-message convenience form of NewError.
func Errorf(kind ErrorKind, symbol, format string, args ...any) *AnalysisError {
	return &AnalysisError{Kind: kind, Symbol: symbol, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the taxonomy kind from any error in the chain, defaulting
// to source-unavailable for untyped failures.
func KindOf(err error) ErrorKind {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindSourceUnavailable
}

// IsKind reports whether err carries the given taxonomy kind.
func IsKind(err error, kind ErrorKind) bool {
	var ae *AnalysisError
	return errors.As(err, &ae) && ae.Kind == kind
}
