// ABOUTME: Error taxonomy shared by the resolver, decoder and player
// ABOUTME: Classifies failures by kind so callers can retry or map them to responses
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure
type Kind int

const (
	Unknown Kind = iota
	PolicyRejection
	ResolutionFailure
	SourceUnavailable
	DecodeOpenFailure
	DecodeStreamFailure
	ToolFailure
)

func (k Kind) String() string {
	switch k {
	case PolicyRejection:
		return "policy rejection"
	case ResolutionFailure:
		return "resolution failure"
	case SourceUnavailable:
		return "source unavailable"
	case DecodeOpenFailure:
		return "decode open failure"
	case DecodeStreamFailure:
		return "decode stream failure"
	case ToolFailure:
		return "tool failure"
	default:
		return "unknown failure"
	}
}

// Sentinels for errors.Is checks. Matching is by kind, not identity.
var (
	ErrPolicyRejection     = &Error{Kind: PolicyRejection}
	ErrResolutionFailure   = &Error{Kind: ResolutionFailure}
	ErrSourceUnavailable   = &Error{Kind: SourceUnavailable}
	ErrDecodeOpenFailure   = &Error{Kind: DecodeOpenFailure}
	ErrDecodeStreamFailure = &Error{Kind: DecodeStreamFailure}
	ErrToolFailure         = &Error{Kind: ToolFailure}
)

// Error is a classified failure
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New wraps err with a kind and the operation that failed
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a classified failure from a format string
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a failure of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the outermost failure kind in the chain
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Transient reports whether a retry might succeed. Policy and missing-source
// failures anywhere in the chain are never transient.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPolicyRejection) || errors.Is(err, ErrSourceUnavailable) {
		return false
	}
	return errors.Is(err, ErrToolFailure) || errors.Is(err, ErrDecodeOpenFailure)
}
