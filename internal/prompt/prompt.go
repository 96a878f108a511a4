// Package prompt builds the text sent to the inference backend. Composition
// is a pure function of its inputs; nothing here performs I/O.
package prompt

import (
	"fmt"
	"strings"
)

// Context carries the per-question inputs shared by the initial and repair
// prompts.
type Context struct {
	Question string
	Table    string
	Schema   string
	Stats    string
	Sample   string
}

const dialectRules = `- Use current_date (NOT DATE 'now')
- If dates come from CSV, use: CAST(date AS DATE) AS d in a CTE, then group by date_trunc('week', d)
- When grouping, GROUP BY the derived fields (e.g., d, product) rather than re-calling date_trunc with extra arguments
- For "last N weeks", filter with date >= current_date - INTERVAL N WEEK
- For week-over-week, first aggregate in a subquery/CTE, THEN use LAG on the aggregated results
- If unsure, LIMIT 20`

// Initial composes the first-generation prompt: schema, sample rows,
// numeric preview, safety rules, and the question.
func Initial(ctx Context) string {
	stats := ctx.Stats
	if strings.TrimSpace(stats) == "" {
		stats = "(no numeric preview available)"
	}
	sample := ctx.Sample
	if strings.TrimSpace(sample) == "" {
		sample = "(no sample available)"
	}
	return fmt.Sprintf(`You are a data analyst writing ONE safe DuckDB SQL query.

Rules:
- Use ONLY table name: %s
- Output ONLY the SQL (no prose, no code fences, no explanations, no comments, no trailing semicolon)
- SELECT-only (no DDL/DML), exactly one statement
%s

Return ONLY the SQL.

Table schema:
%s

Sample rows:
%s

Sample numeric stats (for reference):
%s

User question:
%s
`, ctx.Table, dialectRules, ctx.Schema, sample, stats, ctx.Question)
}

// Repair composes the follow-up prompt after a rejected or failing attempt,
// embedding the prior query and the problem verbatim.
func Repair(ctx Context, previousSQL, problem string) string {
	return fmt.Sprintf(`You must return one safe DuckDB SELECT query only.

Rules:
- SELECT-only (no DDL/DML), exactly one statement, no semicolons
- No table names except: %s
- Banned keywords: insert, update, delete, drop, alter, create, attach, copy, pragma, call, grant, revoke
%s

Schema:
%s

Original question:
%s

Previous SQL:
%s

Problem to fix (safety or execution error):
%s

Return corrected SQL only, no prose, no fences.
`, ctx.Table, dialectRules, ctx.Schema, ctx.Question, previousSQL, problem)
}

// Explain composes the result-summarization prompt from the question, the
// executed SQL, and a bounded preview of the result rows.
func Explain(question, sqlText, preview string) string {
	if strings.TrimSpace(preview) == "" {
		preview = "(no rows)"
	}
	return fmt.Sprintf(`You are a data analyst. Explain the SQL result in 5 concise bullet points.
- Highlight key trends, outliers, and comparisons.
- Keep it factual; avoid speculation.
- If the sample is small (LIMIT), mention that as a caveat.

Question:
%s

SQL:
%s

Result preview (first rows):
%s
`, question, sqlText, preview)
}
