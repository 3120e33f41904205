// Package xerr defines the error taxonomy shared by every component of
// the game state machine: kinds, not concrete types, so that every
// layer wraps the same small vocabulary and callers can branch on kind
// with errors.Is/errors.As instead of parsing messages.
package xerr

/*
 * Licensed under LGPL-3.0.
 *
 * You can get a copy of the LGPL-3.0 License at
 *
 * https://www.gnu.org/licenses/lgpl-3.0.en.html
 *
 * @wcgcyx - https://github.com/wcgcyx
 */

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the caller is expected to react to
// it, per the error handling design.
type Kind int

const (
	// KindConfig: configuration missing or contradictory; fatal before start.
	KindConfig Kind = iota
	// KindTransport: node RPC or event channel I/O; recovered by reconnect/backoff.
	KindTransport
	// KindMalformedEvent: event JSON missing required fields; event is discarded.
	KindMalformedEvent
	// KindRuleFailure: user rule raised during forward/backward step.
	KindRuleFailure
	// KindStorageCorruption: checksums or invariants violated in the backend; fatal.
	KindStorageCorruption
	// KindFatalInvariant: undo data missing, chain id mismatch, impossible transition; fatal.
	KindFatalInvariant
	// KindMisuse: a storage mutator was called outside an open transaction.
	KindMisuse
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindTransport:
		return "TransportError"
	case KindMalformedEvent:
		return "MalformedEvent"
	case KindRuleFailure:
		return "RuleFailure"
	case KindStorageCorruption:
		return "StorageCorruption"
	case KindFatalInvariant:
		return "FatalInvariant"
	case KindMisuse:
		return "Misuse"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Fatal reports whether an error of this kind must terminate the
// process rather than be locally recovered.
func (k Kind) Fatal() bool {
	switch k {
	case KindTransport, KindRuleFailure, KindMalformedEvent:
		return false
	default:
		return true
	}
}

// Error is the concrete error type carrying a Kind, a message and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is(err, xerr.ErrRuleFailure) style matching against
// a sentinel *Error by comparing kinds rather than identity.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New creates a new Error of the given kind.
func New(k Kind, message string) *Error {
	return &Error{Kind: k, Message: message}
}

// Wrap creates a new Error of the given kind, wrapping cause.
func Wrap(k Kind, message string, cause error) *Error {
	return &Error{Kind: k, Message: message, Cause: cause}
}

// sentinel constructs a zero-cause Error of the given kind, used only
// for errors.Is comparisons (see Error.Is).
func sentinel(k Kind) *Error { return &Error{Kind: k} }

// Sentinels for errors.Is comparisons, e.g. errors.Is(err, xerr.ErrRuleFailure).
var (
	ErrConfig            = sentinel(KindConfig)
	ErrTransport         = sentinel(KindTransport)
	ErrMalformedEvent    = sentinel(KindMalformedEvent)
	ErrRuleFailure       = sentinel(KindRuleFailure)
	ErrStorageCorruption = sentinel(KindStorageCorruption)
	ErrFatalInvariant    = sentinel(KindFatalInvariant)
	ErrMisuse            = sentinel(KindMisuse)
)

// KindOf extracts the Kind of err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
