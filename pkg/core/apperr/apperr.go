// Package apperr defines the error kinds surfaced by the allocation workflow.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for callers and transports
type Kind string

const (
	KindNotFound            Kind = "NOT_FOUND"
	KindInvalidState        Kind = "INVALID_STATE"
	KindConfig              Kind = "CONFIG_ERROR"
	KindCapacityExceeded    Kind = "CAPACITY_EXCEEDED"
	KindConcurrencyConflict Kind = "CONCURRENCY_CONFLICT"
	KindInternal            Kind = "INTERNAL"
)

// Error is a classified workflow error.
// OfferID and ResponseID are carried so an operator can re-run safely.
type Error struct {
	Kind       Kind
	Message    string
	OfferID    string
	ResponseID string
	Retryable  bool
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)

	var ids []string
	if e.OfferID != "" {
		ids = append(ids, "offer_id="+e.OfferID)
	}
	if e.ResponseID != "" {
		ids = append(ids, "response_id="+e.ResponseID)
	}
	if len(ids) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ids, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrNotFound) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrInvalidState        = &Error{Kind: KindInvalidState}
	ErrConfig              = &Error{Kind: KindConfig}
	ErrCapacityExceeded    = &Error{Kind: KindCapacityExceeded}
	ErrConcurrencyConflict = &Error{Kind: KindConcurrencyConflict}
)

// NotFound reports an unknown offer or response
func NotFound(offerID, responseID, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...), OfferID: offerID, ResponseID: responseID}
}

// InvalidState reports an operation that is not allowed in the current state
func InvalidState(offerID, responseID, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...), OfferID: offerID, ResponseID: responseID}
}

// Config reports a rejected workflow configuration
func Config(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

// CapacityExceeded reports an admission with no remaining positions
func CapacityExceeded(offerID, responseID string, available, filled int) *Error {
	return &Error{
		Kind:       KindCapacityExceeded,
		Message:    fmt.Sprintf("capacity exceeded: %d of %d positions filled", filled, available),
		OfferID:    offerID,
		ResponseID: responseID,
	}
}

// ConcurrencyConflict reports a lock or write conflict; callers should retry
func ConcurrencyConflict(offerID string, err error) *Error {
	return &Error{
		Kind:      KindConcurrencyConflict,
		Message:   "offer is being modified concurrently",
		OfferID:   offerID,
		Retryable: true,
		Err:       err,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether err is safe to retry as-is
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
