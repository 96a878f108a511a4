// Package extract isolates a single candidate SQL statement from raw model
// output. It performs no semantic validation; rejection of unsafe statements
// is the safety package's job.
package extract

import (
	"errors"
	"regexp"
	"strings"
)

var ErrNoStatement = errors.New("extract: no SQL statement found")

var (
	fencedBlockPattern = regexp.MustCompile("(?s)```(?:[Ss][Qq][Ll])?\\s*(.*?)```")
	selectPattern      = regexp.MustCompile(`(?is)\bselect\b.*$`)
	// A bare "with" in prose ("I can help with that") is not a statement
	// head; only WITH followed by a CTE declaration counts.
	withPattern     = regexp.MustCompile(`(?is)\bwith\b\s+(?:recursive\s+)?[a-z_][a-z0-9_]*\s+as\s*\(.*$`)
	sqlLabelPattern = regexp.MustCompile(`(?i)^sql\s*[:\n]`)

	placeholderTables = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\byour_table\b`),
		regexp.MustCompile(`(?i)\bmy_table\b`),
	}
	quotedIntervalPattern = regexp.MustCompile(`(?i)INTERVAL\s*'\s*(\d+)\s*(day|week|month|year)s?\s*'`)
	dateNowPattern        = regexp.MustCompile(`(?i)DATE\s*'\s*now\s*'`)
)

// Extract locates the most plausible statement in raw model text: the first
// fenced code block when one exists, then everything from the first SELECT
// or CTE-shaped WITH onward. Trailing semicolons at the very end are dropped;
// interior semicolons are preserved so stacked statements still reach the
// validator. Applying Extract to already-clean SQL returns it unchanged.
func Extract(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", ErrNoStatement
	}

	if match := fencedBlockPattern.FindStringSubmatch(text); match != nil {
		text = strings.TrimSpace(match[1])
	} else {
		// Unterminated fence: strip the opening marker and keep the rest.
		text = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(text, "```sql"), "```"))
	}
	text = strings.TrimSpace(sqlLabelPattern.ReplaceAllString(text, ""))

	statement := locateStatement(text)
	if statement == "" {
		return "", ErrNoStatement
	}

	statement = strings.TrimSpace(statement)
	for strings.HasSuffix(statement, ";") {
		statement = strings.TrimSpace(strings.TrimSuffix(statement, ";"))
	}
	if statement == "" {
		return "", ErrNoStatement
	}
	return statement, nil
}

// locateStatement returns the statement starting at the earlier of the
// first CTE-shaped WITH and the first SELECT.
func locateStatement(text string) string {
	withLoc := withPattern.FindStringIndex(text)
	selectLoc := selectPattern.FindStringIndex(text)
	switch {
	case withLoc != nil && (selectLoc == nil || withLoc[0] < selectLoc[0]):
		return text[withLoc[0]:]
	case selectLoc != nil:
		return text[selectLoc[0]:]
	}
	return ""
}

// Normalize applies dialect fixes that local models get wrong often enough
// to be worth rewriting instead of burning a repair attempt: placeholder
// table names, quoted INTERVAL literals, and DATE 'now'.
func Normalize(sqlText, table string) string {
	for _, pattern := range placeholderTables {
		sqlText = pattern.ReplaceAllString(sqlText, table)
	}
	sqlText = quotedIntervalPattern.ReplaceAllStringFunc(sqlText, func(match string) string {
		parts := quotedIntervalPattern.FindStringSubmatch(match)
		return "INTERVAL " + parts[1] + " " + strings.ToUpper(parts[2])
	})
	sqlText = dateNowPattern.ReplaceAllString(sqlText, "current_date")
	return strings.TrimSpace(sqlText)
}
