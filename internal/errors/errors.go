// Package errors provides structured error types for SVCS.
// It implements error classification and wrapping so that the hook
// layer can decide what is loggable noise and what is a real fault.
package errors

import (
	"errors"
	"fmt"
)

// Kind represents the category of an error.
type Kind uint8

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown Kind = iota
	// KindConfig indicates a configuration error.
	KindConfig
	// KindParse indicates a source parsing error.
	KindParse
	// KindGit indicates a git operation error.
	KindGit
	// KindStore indicates a semantic store error.
	KindStore
	// KindNotes indicates a git-notes transport error.
	KindNotes
	// KindAI indicates an AI provider error.
	KindAI
	// KindValidation indicates a validation error.
	KindValidation
	// KindNotFound indicates a resource was not found.
	KindNotFound
	// KindTimeout indicates a timeout.
	KindTimeout
	// KindCanceled indicates the operation was canceled.
	KindCanceled
	// KindInternal indicates an internal error.
	KindInternal
)

// String returns a human-readable string for the error kind.
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "configuration"
	case KindParse:
		return "parse"
	case KindGit:
		return "git"
	case KindStore:
		return "store"
	case KindNotes:
		return "notes"
	case KindAI:
		return "ai"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the standard error type for SVCS.
type Error struct {
	// Kind is the category of the error.
	Kind Kind
	// Op is the operation being performed when the error occurred.
	Op string
	// Message is a human-readable error message.
	Message string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches this error.
// For *Error targets without an Op, only the Kind is compared,
// which supports the sentinel error pattern.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Op == t.Op
}

// New creates a new Error with the given kind and message.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Newf creates a new Error with the given kind and formatted message.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// GetKind returns the Kind of an error.
// If the error is not an *Error, it returns KindUnknown.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind checks if an error is of a specific kind.
func IsKind(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// Common error constructors for frequently used error types.

// Config creates a configuration error.
func Config(op, message string) *Error {
	return New(KindConfig, op, message)
}

// ConfigWrap wraps an error as a configuration error.
func ConfigWrap(err error, op, message string) *Error {
	return Wrap(err, KindConfig, op, message)
}

// Parse creates a parse error.
func Parse(op, message string) *Error {
	return New(KindParse, op, message)
}

// ParseWrap wraps an error as a parse error.
func ParseWrap(err error, op, message string) *Error {
	return Wrap(err, KindParse, op, message)
}

// Git creates a git error.
func Git(op, message string) *Error {
	return New(KindGit, op, message)
}

// GitWrap wraps an error as a git error.
func GitWrap(err error, op, message string) *Error {
	return Wrap(err, KindGit, op, message)
}

// Store creates a store error.
func Store(op, message string) *Error {
	return New(KindStore, op, message)
}

// StoreWrap wraps an error as a store error.
func StoreWrap(err error, op, message string) *Error {
	return Wrap(err, KindStore, op, message)
}

// Notes creates a notes transport error.
func Notes(op, message string) *Error {
	return New(KindNotes, op, message)
}

// NotesWrap wraps an error as a notes transport error.
func NotesWrap(err error, op, message string) *Error {
	return Wrap(err, KindNotes, op, message)
}

// AI creates an AI provider error.
func AI(op, message string) *Error {
	return New(KindAI, op, message)
}

// AIWrap wraps an error as an AI provider error.
func AIWrap(err error, op, message string) *Error {
	return Wrap(err, KindAI, op, message)
}

// Validation creates a validation error.
func Validation(op, message string) *Error {
	return New(KindValidation, op, message)
}

// NotFound creates a not-found error.
func NotFound(op, message string) *Error {
	return New(KindNotFound, op, message)
}

// Timeout creates a timeout error.
func Timeout(op, message string) *Error {
	return New(KindTimeout, op, message)
}
