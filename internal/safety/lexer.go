package safety

import (
	"errors"
	"fmt"
)

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenQuotedIdent
	tokenString
	tokenNumber
	tokenSemicolon
	tokenOpenParen
	tokenCloseParen
	tokenOperator
)

type token struct {
	kind  tokenKind
	text  string
	depth int
}

var errUnbalancedParens = errors.New("unbalanced parentheses")

// lex splits SQL text into tokens, skipping comments and keeping string and
// identifier literals opaque. It returns the tokens it produced together
// with the first lexical error, so rule checks that only need the token
// stream can still run on malformed input.
func lex(input string) ([]token, error) {
	var tokens []token
	var firstErr error
	depth := 0
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '-' && i+1 < len(input) && input[i+1] == '-':
			for i < len(input) && input[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(input) && input[i+1] == '*':
			end := i + 2
			for end+1 < len(input) && !(input[end] == '*' && input[end+1] == '/') {
				end++
			}
			if end+1 >= len(input) {
				fail(fmt.Errorf("unterminated block comment"))
				i = len(input)
			} else {
				i = end + 2
			}
		case c == '\'':
			text, next, ok := scanQuoted(input, i, '\'')
			if !ok {
				fail(fmt.Errorf("unterminated string literal"))
				i = len(input)
				break
			}
			tokens = append(tokens, token{kind: tokenString, text: text, depth: depth})
			i = next
		case c == '"':
			text, next, ok := scanQuoted(input, i, '"')
			if !ok {
				fail(fmt.Errorf("unterminated quoted identifier"))
				i = len(input)
				break
			}
			tokens = append(tokens, token{kind: tokenQuotedIdent, text: text, depth: depth})
			i = next
		case c == '(':
			tokens = append(tokens, token{kind: tokenOpenParen, text: "(", depth: depth})
			depth++
			i++
		case c == ')':
			depth--
			if depth < 0 {
				fail(errUnbalancedParens)
				depth = 0
			}
			tokens = append(tokens, token{kind: tokenCloseParen, text: ")", depth: depth})
			i++
		case c == ';':
			tokens = append(tokens, token{kind: tokenSemicolon, text: ";", depth: depth})
			i++
		case isWordStart(c):
			start := i
			for i < len(input) && isWordPart(input[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokenWord, text: input[start:i], depth: depth})
		case c >= '0' && c <= '9':
			start := i
			for i < len(input) && (isWordPart(input[i]) || input[i] == '.') {
				i++
			}
			tokens = append(tokens, token{kind: tokenNumber, text: input[start:i], depth: depth})
		default:
			tokens = append(tokens, token{kind: tokenOperator, text: string(c), depth: depth})
			i++
		}
	}

	if depth != 0 && firstErr == nil {
		firstErr = errUnbalancedParens
	}
	return tokens, firstErr
}

// scanQuoted consumes a quoted literal starting at input[start], honoring
// doubled-quote escapes. It returns the inner text and the index just past
// the closing quote.
func scanQuoted(input string, start int, quote byte) (string, int, bool) {
	i := start + 1
	var text []byte
	for i < len(input) {
		if input[i] == quote {
			if i+1 < len(input) && input[i+1] == quote {
				text = append(text, quote)
				i += 2
				continue
			}
			return string(text), i + 1, true
		}
		text = append(text, input[i])
		i++
	}
	return "", len(input), false
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordPart(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9') || c == '$'
}
