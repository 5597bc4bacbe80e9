// Package flowerr defines the structured error type returned across the
// engine. Every fatal or validation path returns an *Error so callers can
// branch on Kind with errors.As instead of string matching.
package flowerr

import (
	"errors"
	"fmt"
)

// Kind is a stable error classification used for policy decisions (retry,
// abort, log-and-continue) at call sites.
type Kind string

const (
	Validation      Kind = "validation"
	NotFound        Kind = "not_found"
	TypeMismatch    Kind = "type_mismatch"
	QualityDegraded Kind = "quality_degraded"
	Transient       Kind = "transient"
	Fatal           Kind = "fatal"
	Cancelled       Kind = "cancelled"
)

// Error is the structured error shape surfaced to callers: a short message,
// the originating node (when applicable) and a stable kind.
type Error struct {
	Kind    Kind
	Message string
	NodeID  string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Kind, e.Message, e.NodeID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no node scope.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error carrying an underlying cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithNode returns a copy of e scoped to the given node id.
func (e *Error) WithNode(nodeID string) *Error {
	cp := *e
	cp.NodeID = nodeID
	return &cp
}

// WithDetail returns a copy of e with an added detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, returning ok
// = false otherwise. Call sites that must branch on kind use this instead of
// string matching.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}
