package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Error is a coded error carrying an optional cause and string context.
type Error struct {
	Code    Code
	Message string
	Cause   error
	Context map[string]string
}

// New creates an error with a compulsory code. cause may be nil.
func New(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code Code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// AddContext attaches a key/value pair and returns the receiver for chaining.
func (e *Error) AddContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code, so sentinel-style comparisons work with
// errors.Is regardless of message or context.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code.Equals(t.Code)
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code Code) bool {
	var coded *Error
	for err != nil {
		if stderrors.As(err, &coded) {
			if coded.Code.Equals(code) {
				return true
			}
			err = coded.Cause
			continue
		}
		return false
	}
	return false
}

// GetCode returns the code of the outermost coded error, or "".
func GetCode(err error) string {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code.String()
	}
	return ""
}

// FormatError renders a coded error for logs, context keys sorted.
func FormatError(err error) string {
	var coded *Error
	if !stderrors.As(err, &coded) {
		return err.Error()
	}

	parts := []string{
		fmt.Sprintf("Code: %s", coded.Code),
		fmt.Sprintf("Message: %s", coded.Message),
	}
	if len(coded.Context) > 0 {
		keys := make([]string, 0, len(coded.Context))
		for k := range coded.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts = append(parts, "Context:")
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("  %s: %s", k, coded.Context[k]))
		}
	}
	if coded.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause: %v", coded.Cause))
	}
	return strings.Join(parts, "\n")
}
