package expr

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokDot
	tokComma
	tokLParen
	tokRParen
	tokNot     // !
	tokAnd     // &&
	tokOr      // ||
	tokEq      // ==
	tokNeq     // !=
	tokLt      // <
	tokLte     // <=
	tokGt      // >
	tokGte     // >=
	tokPlus    // +
	tokMinus   // -
	tokStar    // *
	tokSlash   // /
	tokPercent // %
)

type token struct {
	kind tokenKind
	text string
	col  int // 1-based column in the expression
}

// SyntaxError reports a malformed expression with its column.
type SyntaxError struct {
	Msg string
	Col int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("col %d: %s", e.Col, e.Msg)
}

func errAt(col int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Msg: fmt.Sprintf(format, args...), Col: col}
}

// lex splits an expression into tokens. Strings accept single or double
// quotes with backslash escapes; numbers take a fractional part only when
// a digit follows the dot, so path segments like items.0.name keep their
// dots.
func lex(src string) ([]token, error) {
	var toks []token
	runes := []rune(src)
	i := 0
	for i < len(runes) {
		c := runes[i]
		col := i + 1
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '\'' || c == '"':
			quote := c
			var b strings.Builder
			j := i + 1
			closed := false
			for j < len(runes) {
				if runes[j] == '\\' && j+1 < len(runes) {
					switch runes[j+1] {
					case 'n':
						b.WriteRune('\n')
					case 't':
						b.WriteRune('\t')
					default:
						b.WriteRune(runes[j+1])
					}
					j += 2
					continue
				}
				if runes[j] == quote {
					closed = true
					break
				}
				b.WriteRune(runes[j])
				j++
			}
			if !closed {
				return nil, errAt(col, "unterminated string")
			}
			toks = append(toks, token{tokString, b.String(), col})
			i = j + 1
		case unicode.IsDigit(c):
			j := i
			for j < len(runes) && unicode.IsDigit(runes[j]) {
				j++
			}
			if j+1 < len(runes) && runes[j] == '.' && unicode.IsDigit(runes[j+1]) {
				j++
				for j < len(runes) && unicode.IsDigit(runes[j]) {
					j++
				}
			}
			toks = append(toks, token{tokNumber, string(runes[i:j]), col})
			i = j
		case isIdentStart(c):
			j := i
			for j < len(runes) && isIdentPart(runes[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, string(runes[i:j]), col})
			i = j
		default:
			two := ""
			if i+1 < len(runes) {
				two = string(runes[i : i+2])
			}
			switch two {
			case "&&":
				toks = append(toks, token{tokAnd, two, col})
				i += 2
				continue
			case "||":
				toks = append(toks, token{tokOr, two, col})
				i += 2
				continue
			case "==":
				toks = append(toks, token{tokEq, two, col})
				i += 2
				continue
			case "!=":
				toks = append(toks, token{tokNeq, two, col})
				i += 2
				continue
			case "<=":
				toks = append(toks, token{tokLte, two, col})
				i += 2
				continue
			case ">=":
				toks = append(toks, token{tokGte, two, col})
				i += 2
				continue
			}
			var kind tokenKind
			switch c {
			case '.':
				kind = tokDot
			case ',':
				kind = tokComma
			case '(':
				kind = tokLParen
			case ')':
				kind = tokRParen
			case '!':
				kind = tokNot
			case '<':
				kind = tokLt
			case '>':
				kind = tokGt
			case '+':
				kind = tokPlus
			case '-':
				kind = tokMinus
			case '*':
				kind = tokStar
			case '/':
				kind = tokSlash
			case '%':
				kind = tokPercent
			default:
				return nil, errAt(col, "unexpected character %q", string(c))
			}
			toks = append(toks, token{kind, string(c), col})
			i++
		}
	}
	toks = append(toks, token{tokEOF, "", len(runes) + 1})
	return toks, nil
}

func isIdentStart(c rune) bool {
	return c == '_' || unicode.IsLetter(c)
}

func isIdentPart(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
}
