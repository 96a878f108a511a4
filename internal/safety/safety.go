// Package safety statically screens candidate queries before execution.
// It is the primary safety boundary: checks are purely lexical, never
// execute anything, and reject ambiguous input.
package safety

import (
	"fmt"
	"strings"
)

type Violation string

const (
	ViolationNotSelect          Violation = "not_select"
	ViolationMultipleStatements Violation = "multiple_statements"
	ViolationForbiddenKeyword   Violation = "forbidden_keyword"
	ViolationUnparseable        Violation = "unparseable"
	ViolationUnknownTable       Violation = "references_unknown_table"
)

// Verdict is the tagged outcome of validation. Rejection is an expected,
// common result, so it is modeled as data rather than an error.
type Verdict struct {
	OK        bool
	Violation Violation
	Detail    string
}

func accepted() Verdict {
	return Verdict{OK: true}
}

func rejected(violation Violation, detail string) Verdict {
	return Verdict{Violation: violation, Detail: detail}
}

// Reason renders the verdict for repair prompts and log records.
func (v Verdict) Reason() string {
	if v.OK {
		return "accepted"
	}
	switch v.Violation {
	case ViolationMultipleStatements:
		return "the text contains more than one SQL statement; return exactly one"
	case ViolationNotSelect:
		return "the statement is not a SELECT (or WITH ... SELECT) query"
	case ViolationForbiddenKeyword:
		return fmt.Sprintf("the statement uses the forbidden keyword %s", v.Detail)
	case ViolationUnparseable:
		return fmt.Sprintf("the statement is not parseable: %s", v.Detail)
	case ViolationUnknownTable:
		return fmt.Sprintf("the statement references unknown table %s", v.Detail)
	default:
		return string(v.Violation)
	}
}

// Statement-level keywords that can never appear in a read-only query.
// GRANT and REVOKE are carried in addition to the core set.
var forbiddenKeywords = map[string]struct{}{
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "DROP": {}, "ALTER": {},
	"CREATE": {}, "ATTACH": {}, "COPY": {}, "PRAGMA": {}, "CALL": {},
	"GRANT": {}, "REVOKE": {},
}

// Validate applies the screening rules in order; the first match wins.
// Rules operate on the token stream so keywords inside string literals or
// comments never trigger.
func Validate(candidate, table string) Verdict {
	tokens, lexErr := lex(candidate)

	// Rule 1: exactly one statement.
	for i, tok := range tokens {
		if tok.kind == tokenSemicolon && i < len(tokens)-1 {
			return rejected(ViolationMultipleStatements, "")
		}
	}

	// Rule 2: must lead with SELECT, or WITH wrapping a final SELECT.
	if len(tokens) == 0 {
		return rejected(ViolationNotSelect, "")
	}
	head := strings.ToUpper(tokens[0].text)
	switch {
	case tokens[0].kind == tokenWord && head == "SELECT":
	case tokens[0].kind == tokenWord && head == "WITH":
		if !hasTopLevelSelect(tokens[1:]) {
			return rejected(ViolationNotSelect, "")
		}
	default:
		return rejected(ViolationNotSelect, "")
	}

	// Rule 3: forbidden statement-level keywords, at any depth.
	for _, tok := range tokens {
		if tok.kind != tokenWord {
			continue
		}
		upper := strings.ToUpper(tok.text)
		if _, banned := forbiddenKeywords[upper]; banned {
			return rejected(ViolationForbiddenKeyword, upper)
		}
	}

	// Rule 4: the text must lex cleanly with balanced parentheses.
	if lexErr != nil {
		return rejected(ViolationUnparseable, lexErr.Error())
	}

	// Rule 5: best-effort table reference check.
	if unknown, ok := findUnknownTable(tokens, table); !ok {
		return rejected(ViolationUnknownTable, unknown)
	}

	return accepted()
}

func hasTopLevelSelect(tokens []token) bool {
	for _, tok := range tokens {
		if tok.kind == tokenWord && tok.depth == 0 && strings.EqualFold(tok.text, "SELECT") {
			return true
		}
	}
	return false
}

// findUnknownTable scans identifiers following FROM and JOIN. Derived
// tables, the expected table, and names declared by the statement's own
// WITH clause are allowed; anything else, including engine table
// functions, is reported.
func findUnknownTable(tokens []token, table string) (string, bool) {
	allowed := map[string]struct{}{strings.ToLower(table): {}}
	for name := range cteNames(tokens) {
		allowed[name] = struct{}{}
	}

	// Track whether the current paren group is a SELECT context, so that
	// FROM inside expressions like extract(month FROM d) is left alone.
	selectContext := []bool{false}
	for i, tok := range tokens {
		switch tok.kind {
		case tokenOpenParen:
			selectContext = append(selectContext, false)
			continue
		case tokenCloseParen:
			if len(selectContext) > 1 {
				selectContext = selectContext[:len(selectContext)-1]
			}
			continue
		case tokenWord:
		default:
			continue
		}

		upper := strings.ToUpper(tok.text)
		if upper == "SELECT" {
			selectContext[len(selectContext)-1] = true
			continue
		}
		if upper != "FROM" && upper != "JOIN" {
			continue
		}
		if !selectContext[len(selectContext)-1] {
			continue
		}
		if i+1 >= len(tokens) {
			continue
		}
		next := tokens[i+1]
		if next.kind == tokenOpenParen {
			continue // derived table
		}
		if next.kind != tokenWord && next.kind != tokenQuotedIdent {
			continue
		}
		name := strings.ToLower(next.text)
		if _, ok := allowed[name]; !ok {
			return next.text, false
		}
	}
	return "", true
}

// cteNames collects `name AS (` declarations at paren depth zero after a
// leading WITH.
func cteNames(tokens []token) map[string]struct{} {
	names := map[string]struct{}{}
	if len(tokens) == 0 || !strings.EqualFold(tokens[0].text, "WITH") {
		return names
	}
	for i := 1; i+2 < len(tokens); i++ {
		if tokens[i].depth != 0 {
			continue
		}
		if tokens[i].kind != tokenWord && tokens[i].kind != tokenQuotedIdent {
			continue
		}
		if strings.EqualFold(tokens[i+1].text, "AS") && tokens[i+2].kind == tokenOpenParen {
			names[strings.ToLower(tokens[i].text)] = struct{}{}
		}
	}
	return names
}
