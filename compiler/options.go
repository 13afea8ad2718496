package compiler

import "fmt"

// Mode controls how the compiler treats structurally broken directives.
type Mode int

const (
	// Strict fails compilation on every structural problem. It is the
	// default.
	Strict Mode = iota
	// Permissive degrades known-recoverable problems instead: a malformed
	// repeat skips iteration, a switch without clauses renders empty, a
	// malformed with or attr list is dropped, a non-parsing interpolation
	// stays literal. Syntax errors are fatal in both modes.
	Permissive
)

func (m Mode) String() string {
	if m == Permissive {
		return "permissive"
	}
	return "strict"
}

// ParseMode reads a mode name. Empty selects Strict.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "strict":
		return Strict, nil
	case "permissive":
		return Permissive, nil
	}
	return Strict, fmt.Errorf("unknown compile mode %q", s)
}

// Options configures one compilation.
type Options struct {
	Mode Mode
}
