// Package errors defines the error kinds of spec §7 as a single tagged
// struct error, following the teacher's IndexingError/ParseError shape:
// a typed Kind, contextual fields, an Unwrap, and Kind.Fatal, which the
// propagation policy uses to decide fatal-vs-accumulated.
package errors

import (
	"fmt"
	"time"
)

// Kind enumerates the error kinds named in spec §7.
type Kind string

const (
	KindInputUnreadable     Kind = "input_unreadable"
	KindExtractorUnavailable Kind = "extractor_unavailable"
	KindExtractorSkipped    Kind = "extractor_skipped"
	KindIndexNotBuilt       Kind = "index_not_built"
	KindStoreUnavailable    Kind = "store_unavailable"
	KindStoreConflict       Kind = "store_conflict"
	KindSketchEmpty         Kind = "sketch_empty"
	KindCancelled           Kind = "cancelled"
)

// Fatal reports whether errors of this kind abort the current verb
// rather than being accumulated into a per-document skip summary
// (spec §7 propagation policy).
func (k Kind) Fatal() bool {
	switch k {
	case KindExtractorUnavailable, KindIndexNotBuilt, KindStoreUnavailable, KindStoreConflict, KindCancelled:
		return true
	default:
		return false
	}
}

// Error is the engine's single error type: a kind, an operation, an
// optional document key, a reason string, and the wrapped cause.
type Error struct {
	Kind      Kind
	Op        string
	DocKey    string
	Reason    string
	Cause     error
	Timestamp time.Time
}

// New creates an Error of the given kind for the given operation.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause, Timestamp: time.Now()}
}

// WithDoc attaches the document key this error occurred on.
func (e *Error) WithDoc(key string) *Error {
	e.DocKey = key
	return e
}

// WithReason attaches a short human-readable reason, used as the
// grouping key in a SkipSummary.
func (e *Error) WithReason(reason string) *Error {
	e.Reason = reason
	return e
}

func (e *Error) Error() string {
	if e.DocKey != "" {
		return fmt.Sprintf("%s: %s failed for %s: %v", e.Kind, e.Op, e.DocKey, e.Cause)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Kind, e.Op, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// SkipSummary accumulates per-document errors keyed by reason, per
// spec §7 ("accumulated into a counted map keyed by reason and reported
// as a summary").
type SkipSummary struct {
	counts map[string]int
}

// NewSkipSummary returns an empty summary.
func NewSkipSummary() *SkipSummary {
	return &SkipSummary{counts: make(map[string]int)}
}

// Add records one occurrence of err in the summary. Fatal errors are not
// meant to be added here; callers should propagate them instead.
func (s *SkipSummary) Add(err *Error) {
	key := string(err.Kind)
	if err.Reason != "" {
		key = key + ": " + err.Reason
	}
	s.counts[key]++
}

// Total returns the number of documents skipped across all reasons.
func (s *SkipSummary) Total() int {
	total := 0
	for _, n := range s.counts {
		total += n
	}
	return total
}

// Counts returns a copy of the reason -> count map.
func (s *SkipSummary) Counts() map[string]int {
	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}
