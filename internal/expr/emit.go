// Package expr compiles directive expressions into template pipeline
// fragments. An expression is a small dot-path language (user.name,
// items.0.title) with literals, boolean operators, comparisons, and, in
// calculation position, arithmetic. The emitted fragment calls the engine's
// runtime funcs (path, truthy, seq, add, esc, ...) so lookups stay null
// safe at render time.
package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode selects which operators an expression may use and how the emitted
// fragment is wrapped.
type Mode int

const (
	// Value produces the expression's value as-is.
	Value Mode = iota
	// Conditional produces a boolean, wrapping non-boolean results in a
	// truthiness test.
	Conditional
	// Calculation is Value plus the arithmetic operators.
	Calculation
	// Text is Calculation with the result escaped for markup output.
	Text
)

// Compile turns a directive expression into a text/template pipeline
// fragment: a parenthesized call or a bare literal, expecting the render
// context as dot, so callers can splice it into actions directly:
//
//	{{if (truthy (path . "user.active"))}}
func Compile(src string, mode Mode) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", errAt(1, "empty expression")
	}
	n, err := parse(src, mode)
	if err != nil {
		return "", err
	}
	code := emit(n)
	switch mode {
	case Conditional:
		if !boolish(n) {
			code = "(truthy " + code + ")"
		}
	case Text:
		code = "(esc " + code + ")"
	}
	return code, nil
}

// CompileCaseValue compiles the value side of a case clause. A bare
// identifier is taken as a string literal (case="active" matches the string
// "active"), except for the keywords true, false, and null which keep their
// literal meaning. Anything else compiles as a normal value expression.
func CompileCaseValue(src string) (string, error) {
	s := strings.TrimSpace(src)
	if IsIdent(s) {
		switch s {
		case "true", "false":
			return s, nil
		case "null":
			return "(null)", nil
		}
		return strconv.Quote(s), nil
	}
	return Compile(src, Value)
}

// IsIdent reports whether s is a bare identifier: a letter or underscore
// followed by letters, digits, or underscores. Directive processors use it
// to validate binding names and parameters.
func IsIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if i == 0 && !isIdentStart(c) {
			return false
		}
		if !isIdentPart(c) {
			return false
		}
	}
	return true
}

// IsPath reports whether s is a plain dot-path lookup with no operators or
// literals, e.g. user.name or items.0.title.
func IsPath(s string) bool {
	n, err := parse(s, Value)
	if err != nil {
		return false
	}
	_, ok := n.(pathNode)
	return ok
}

// boolish reports whether a node already evaluates to a boolean, so
// Conditional mode can skip the truthy wrapper.
func boolish(n node) bool {
	switch v := n.(type) {
	case litNode:
		return v.kind == litBool
	case unaryNode:
		return v.op == tokNot
	case binaryNode:
		switch v.op {
		case tokAnd, tokOr, tokEq, tokNeq, tokLt, tokLte, tokGt, tokGte:
			return true
		}
	}
	return false
}

func emit(n node) string {
	switch v := n.(type) {
	case pathNode:
		return fmt.Sprintf("(path . %s)", strconv.Quote(strings.Join(v.segs, ".")))
	case litNode:
		switch v.kind {
		case litString:
			return strconv.Quote(v.text)
		case litNumber:
			return v.text
		case litBool:
			return v.text
		default:
			return "(null)"
		}
	case unaryNode:
		if v.op == tokMinus {
			return "(sub 0 " + emit(v.x) + ")"
		}
		return "(not " + emitBool(v.x) + ")"
	case binaryNode:
		switch v.op {
		case tokAnd:
			return "(and " + emitBool(v.x) + " " + emitBool(v.y) + ")"
		case tokOr:
			return "(or " + emitBool(v.x) + " " + emitBool(v.y) + ")"
		case tokEq:
			return "(seq " + emit(v.x) + " " + emit(v.y) + ")"
		case tokNeq:
			return "(sne " + emit(v.x) + " " + emit(v.y) + ")"
		case tokLt:
			return "(slt " + emit(v.x) + " " + emit(v.y) + ")"
		case tokLte:
			return "(sle " + emit(v.x) + " " + emit(v.y) + ")"
		case tokGt:
			return "(sgt " + emit(v.x) + " " + emit(v.y) + ")"
		case tokGte:
			return "(sge " + emit(v.x) + " " + emit(v.y) + ")"
		case tokPlus:
			return "(add " + emit(v.x) + " " + emit(v.y) + ")"
		case tokMinus:
			return "(sub " + emit(v.x) + " " + emit(v.y) + ")"
		case tokStar:
			return "(mul " + emit(v.x) + " " + emit(v.y) + ")"
		case tokSlash:
			return "(div " + emit(v.x) + " " + emit(v.y) + ")"
		default:
			return "(mod " + emit(v.x) + " " + emit(v.y) + ")"
		}
	}
	return ""
}

func emitBool(n node) string {
	if boolish(n) {
		return emit(n)
	}
	return "(truthy " + emit(n) + ")"
}

// SplitTop splits s on sep at nesting depth zero, honoring parentheses and
// quoted strings. Directive attribute lists like i,item or name=a, flag=b
// are split this way before each piece is compiled.
func SplitTop(s string, sep rune) []string {
	var parts []string
	depth := 0
	var quote rune
	start := 0
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, string(runes[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, string(runes[start:]))
	return parts
}

// CutBinding splits a name=expression binding at the first top-level '='
// that is not part of a comparison operator. ok is false when no binding
// equals sign is present.
func CutBinding(s string) (name, value string, ok bool) {
	var quote rune
	runes := []rune(s)
	depth := 0
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case '=':
			if depth != 0 {
				continue
			}
			if i+1 < len(runes) && runes[i+1] == '=' {
				i++
				continue
			}
			if i > 0 && (runes[i-1] == '!' || runes[i-1] == '<' || runes[i-1] == '>') {
				continue
			}
			return strings.TrimSpace(string(runes[:i])), strings.TrimSpace(string(runes[i+1:])), true
		}
	}
	return "", "", false
}
