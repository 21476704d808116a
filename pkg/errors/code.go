package errors

import (
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
)

// Code is a validated error code in "package.name" form.
type Code struct {
	value string
}

var codeRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*\.[a-z][a-z0-9_]*$`)

// NewCode creates a new validated Code
func NewCode(s string) (Code, error) {
	if !codeRegex.MatchString(s) {
		return Code{}, fmt.Errorf("invalid code format '%s': must be 'package.name' (lowercase, underscores, dots only)", s)
	}

	// The code already names a failure; "error" inside it is noise.
	if strings.Contains(s, "error") || strings.Contains(s, "err") {
		return Code{}, fmt.Errorf("invalid code '%s': should not contain 'error' or 'err'", s)
	}

	return Code{value: s}, nil
}

// MustNewCode creates a new Code or panics if invalid
func MustNewCode(s string) Code {
	code, err := NewCode(s)
	if err != nil {
		panic(err)
	}
	return code
}

func (c Code) String() string {
	return c.value
}

// Package returns the package prefix from the code
func (c Code) Package() string {
	if idx := strings.Index(c.value, "."); idx != -1 {
		return c.value[:idx]
	}
	return ""
}

// Name returns the name part from the code
func (c Code) Name() string {
	if idx := strings.Index(c.value, "."); idx != -1 {
		return c.value[idx+1:]
	}
	return c.value
}

// Equals checks if two codes are equal
func (c Code) Equals(other Code) bool {
	return c.value == other.value
}

// Scope says how far a failure reaches in the bridge.
type Scope int

const (
	// ScopeRequest fails one register operation; the connection lives on.
	ScopeRequest Scope = iota
	// ScopeConnection ends one SigmaStudio connection and nothing else.
	ScopeConnection
	// ScopeUsage is a bad command-line invocation.
	ScopeUsage
	// ScopeProcess stops the bridge from starting at all.
	ScopeProcess
)

func (s Scope) String() string {
	switch s {
	case ScopeConnection:
		return "connection"
	case ScopeUsage:
		return "usage"
	case ScopeProcess:
		return "process"
	default:
		return "request"
	}
}

// scopes maps a code's package prefix to its scope. Unlisted packages fail
// single requests.
var scopes = map[string]Scope{
	"sigma":    ScopeConnection,
	"protocol": ScopeConnection,
	"cli":      ScopeUsage,
	"config":   ScopeProcess,
	"hardware": ScopeProcess,
	"server":   ScopeProcess,
}

// Scope reports how far a failure with this code reaches.
func (c Code) Scope() Scope {
	return scopes[c.Package()]
}

// ScopeOf returns the widest scope of any code in err's chain, so a config
// failure wrapped by server.start_failed still counts as process-wide.
// Uncoded errors are ScopeRequest.
func ScopeOf(err error) Scope {
	widest := ScopeRequest
	var coded *Error
	for err != nil && stderrors.As(err, &coded) {
		if s := coded.Code.Scope(); s > widest {
			widest = s
		}
		err = coded.Cause
	}
	return widest
}
