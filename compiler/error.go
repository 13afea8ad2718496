package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes compile and render failures.
type Kind string

const (
	// KindSyntax is a malformed directive expression or document; always
	// fatal.
	KindSyntax Kind = "syntax"
	// KindStructural is a directive used in an impossible position or
	// combination; fatal in Strict mode, degraded in Permissive mode.
	KindStructural Kind = "structural"
	// KindResolution is a render-time miss (unknown fragment, missing csrf
	// source); it degrades to empty output and never fails a render.
	KindResolution Kind = "resolution"
)

// Error is a structured compile error carrying enough context to point at
// the failing directive in the failing template.
type Error struct {
	Kind       Kind
	Template   string
	Directive  string
	Expression string
	Line       int
	Col        int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	var parts []string

	location := e.Template
	if location == "" {
		location = "template"
	}
	if e.Line > 0 {
		location += fmt.Sprintf(":%d", e.Line)
		if e.Col > 0 {
			location += fmt.Sprintf(":%d", e.Col)
		}
	}
	parts = append(parts, location+":")

	parts = append(parts, fmt.Sprintf("[%s]", e.Kind))

	if e.Directive != "" {
		parts = append(parts, fmt.Sprintf("directive=%q", e.Directive))
	}
	if e.Expression != "" {
		parts = append(parts, fmt.Sprintf("expression=%q", e.Expression))
	}

	parts = append(parts, e.Message)
	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}
	return result
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by kind, so callers can test for a category with a
// bare &Error{Kind: ...} target.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// IsSyntax reports whether err is (or wraps) a syntax-kind compile error.
func IsSyntax(err error) bool {
	return errors.Is(err, &Error{Kind: KindSyntax})
}

// IsStructural reports whether err is (or wraps) a structural-kind compile
// error.
func IsStructural(err error) bool {
	return errors.Is(err, &Error{Kind: KindStructural})
}
