package apperr

import (
	"errors"
	"fmt"
)

// ErrNoTranscriptAvailable means the captions provider had nothing for the video.
// Callers treat it as an expected condition and fall back to visual-only analysis.
var ErrNoTranscriptAvailable = errors.New("no transcript available")

type BackendErrorKind string

const (
	BackendTimeout         BackendErrorKind = "timeout"
	BackendQuotaExceeded   BackendErrorKind = "quota_exceeded"
	BackendUnavailable     BackendErrorKind = "unavailable"
	BackendMalformedOutput BackendErrorKind = "malformed_output"
)

// BackendError classifies a generative-backend failure. Timeout/quota/unavailable
// are retried once; malformed output marks the unit of work failed.
type BackendError struct {
	Kind BackendErrorKind
	Op   string
	Err  error
}

func (e *BackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("backend %s: %s", e.Op, e.Kind)
}

func (e *BackendError) Unwrap() error { return e.Err }

func NewBackendError(kind BackendErrorKind, op string, err error) *BackendError {
	return &BackendError{Kind: kind, Op: op, Err: err}
}

func BackendKind(err error) (BackendErrorKind, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind, true
	}
	return "", false
}

func IsRetryableBackend(err error) bool {
	kind, ok := BackendKind(err)
	if !ok {
		return false
	}
	switch kind {
	case BackendTimeout, BackendQuotaExceeded, BackendUnavailable:
		return true
	default:
		return false
	}
}

// ConceptGraphIntegrityError reports a relationship referencing an unknown concept
// or a prerequisite cycle. These are auto-corrected with a warning, never fatal.
type ConceptGraphIntegrityError struct {
	Reason string
	From   string
	To     string
}

func (e *ConceptGraphIntegrityError) Error() string {
	if e.From != "" || e.To != "" {
		return fmt.Sprintf("concept graph integrity: %s (%s -> %s)", e.Reason, e.From, e.To)
	}
	return fmt.Sprintf("concept graph integrity: %s", e.Reason)
}

// CitationGroundingViolation is an internal invariant breach: the Q&A engine
// produced a citation that does not reference real data in the supplied context.
// It must be caught before a response leaves the engine.
type CitationGroundingViolation struct {
	CitationType string
	Value        string
	Reason       string
}

func (e *CitationGroundingViolation) Error() string {
	return fmt.Sprintf("citation grounding violation: %s citation %q: %s", e.CitationType, e.Value, e.Reason)
}
