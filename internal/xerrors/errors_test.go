package xerrors

import (
	"errors"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name        string
		code        Code
		path        string
		message     string
		cause       error
		expectedMsg string
	}{
		{
			name:        "error with path",
			code:        NotFound,
			path:        "/path/to/file.txt",
			message:     "file not found",
			expectedMsg: "E_NOT_FOUND: /path/to/file.txt: file not found",
		},
		{
			name:        "error without path",
			code:        Validation,
			message:     "invalid configuration",
			expectedMsg: "E_VALIDATION: invalid configuration",
		},
		{
			name:        "error with cause",
			code:        IO,
			path:        "/test.txt",
			message:     "access denied",
			cause:       errors.New("permission denied"),
			expectedMsg: "E_IO: /test.txt: access denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &Error{Code: tt.code, Path: tt.path, Message: tt.message, Cause: tt.cause}

			if err.Error() != tt.expectedMsg {
				t.Errorf("expected %q, got %q", tt.expectedMsg, err.Error())
			}
			if err.Unwrap() != tt.cause {
				t.Errorf("expected cause %v, got %v", tt.cause, err.Unwrap())
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	tests := []struct {
		name   string
		err1   *Error
		err2   error
		expect bool
	}{
		{
			name:   "same code",
			err1:   &Error{Code: IO},
			err2:   &Error{Code: IO},
			expect: true,
		},
		{
			name:   "different code",
			err1:   &Error{Code: IO},
			err2:   &Error{Code: Validation},
			expect: false,
		},
		{
			name:   "not an Error",
			err1:   &Error{Code: IO},
			err2:   errors.New("plain"),
			expect: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err1.Is(tt.err2); got != tt.expect {
				t.Errorf("Is() = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestWrapIO(t *testing.T) {
	if WrapIO("x", nil) != nil {
		t.Fatal("expected nil for nil cause")
	}

	wrapped := WrapIO("/missing", errors.New("open /missing: no such file or directory"))
	if wrapped.Code != IO {
		t.Errorf("expected E_IO for an unclassified error, got %s", wrapped.Code)
	}
}

func TestConstructors(t *testing.T) {
	if AmbiguousReplacementError("bad").Code != AmbiguousReplacement {
		t.Fatal("expected AmbiguousReplacement code")
	}
	if RegexError("bad pattern", nil).Code != Regex {
		t.Fatal("expected Regex code")
	}
	if TransactionError("partial", nil).Code != Transaction {
		t.Fatal("expected Transaction code")
	}
}
