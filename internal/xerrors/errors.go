// Package xerrors provides the hierarchical, stably-coded error system used
// throughout txed. Every user-visible failure carries one of a small set of
// stable taxonomy codes alongside a short human message.
package xerrors

import "fmt"

// Code classifies an error for callers that need to branch on error kind
// (JSON consumers, exit-code mapping, FileResult.Error.Code).
type Code string

const (
	NotFound             Code = "E_NOT_FOUND"
	IO                   Code = "E_IO"
	UTF8                 Code = "E_UTF8"
	Regex                Code = "E_REGEX"
	Validation           Code = "E_VALIDATION"
	AmbiguousReplacement Code = "E_AMBIGUOUS_REPLACEMENT"
	Transaction          Code = "E_TRANSACTION"
	Unknown              Code = "E_UNKNOWN"
)

// Error is the base error type. It implements error, Unwrap, and Is so that
// callers can use the standard errors package to inspect error chains while
// still getting a stable Code and optional Path for reporting.
type Error struct {
	Code    Code
	Path    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is enables errors.Is(err, &Error{Code: xerrors.IO}) style checks by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New constructs an Error with the given code.
func New(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// NewWithPath constructs an Error with a code and a path for context.
func NewWithPath(code Code, path, message string, cause error) *Error {
	return &Error{Code: code, Path: path, Message: message, Cause: cause}
}

// NotFoundError reports a missing file.
func NotFoundError(path string, cause error) *Error {
	return NewWithPath(NotFound, path, "file not found", cause)
}

// IOError reports a read/write/stat failure not otherwise classified.
func IOError(path, message string, cause error) *Error {
	return NewWithPath(IO, path, message, cause)
}

// UTF8Error reports a failed UTF-8 reconstruction after replacement.
func UTF8Error(path, message string, cause error) *Error {
	return NewWithPath(UTF8, path, message, cause)
}

// RegexError reports a pattern compilation failure.
func RegexError(message string, cause error) *Error {
	return New(Regex, message, cause)
}

// ValidationError reports a configuration or input validation failure.
func ValidationError(message string, cause error) *Error {
	return New(Validation, message, cause)
}

// ValidationErrorWithPath is ValidationError with file context.
func ValidationErrorWithPath(path, message string, cause error) *Error {
	return NewWithPath(Validation, path, message, cause)
}

// AmbiguousReplacementError reports an unresolved capture-group reference.
func AmbiguousReplacementError(message string) *Error {
	return New(AmbiguousReplacement, message, nil)
}

// TransactionError reports a commit-time failure under transaction=All.
func TransactionError(message string, cause error) *Error {
	return New(Transaction, message, cause)
}

// WrapIO classifies a standard library I/O error into a typed Error.
func WrapIO(path string, err error) *Error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return NotFoundError(path, err)
	}
	return IOError(path, "file operation failed", err)
}
