package security

import (
	"regexp"
	"strings"
)

// FailureKind identifies which validation check rejected a statement.
type FailureKind string

const (
	FailureNone                  FailureKind = ""
	FailureEmptyStatement        FailureKind = "empty_statement"
	FailureWrongLeadingKeyword   FailureKind = "wrong_leading_keyword"
	FailureBlockedKeyword        FailureKind = "blocked_keyword"
	FailureCatalogProbe          FailureKind = "catalog_probe"
	FailureCommentInjection      FailureKind = "comment_injection"
	FailureUnbalancedParentheses FailureKind = "unbalanced_parentheses"
	FailureMultipleStatements    FailureKind = "multiple_statements"
)

// Verdict is the outcome of validating one candidate statement.
type Verdict struct {
	Accepted bool
	Kind     FailureKind
	Message  string
}

// Leading-keyword allowlist: everything that does not start with SELECT or
// WITH is rejected by construction.
var allowedStart = regexp.MustCompile(`(?i)^\s*(SELECT|WITH)\b`)

// blockedVerbs are whole-word, case-insensitive mutating/DDL tokens. Each
// carries its own user-facing message.
var blockedVerbs = []struct {
	re      *regexp.Regexp
	message string
}{
	{regexp.MustCompile(`(?i)\bDROP\b`), "DROP statements are not allowed"},
	{regexp.MustCompile(`(?i)\bALTER\b`), "ALTER statements are not allowed"},
	{regexp.MustCompile(`(?i)\bTRUNCATE\b`), "TRUNCATE statements are not allowed"},
	{regexp.MustCompile(`(?i)\bDELETE\b`), "DELETE statements are not allowed"},
	{regexp.MustCompile(`(?i)\bINSERT\b`), "INSERT statements are not allowed"},
	{regexp.MustCompile(`(?i)\bUPDATE\b`), "UPDATE statements are not allowed"},
	{regexp.MustCompile(`(?i)\bCREATE\b`), "CREATE statements are not allowed"},
	{regexp.MustCompile(`(?i)\bGRANT\b`), "GRANT statements are not allowed"},
	{regexp.MustCompile(`(?i)\bREVOKE\b`), "REVOKE statements are not allowed"},
	{regexp.MustCompile(`(?i)\bEXECUTE\b`), "EXECUTE statements are not allowed"},
	{regexp.MustCompile(`(?i)\bCALL\b`), "CALL statements are not allowed"},
}

// Catalog-probing tokens: system catalogs and metadata views.
var catalogProbes = []struct {
	re      *regexp.Regexp
	message string
}{
	{regexp.MustCompile(`(?i)\bpg_`), "access to pg_ system catalogs is not allowed"},
	{regexp.MustCompile(`(?i)\binformation_schema\b`), "access to information_schema is not allowed"},
}

// SQLValidator enforces the read-only, single-statement, schema-scoped
// safety envelope on generated SQL. Pure and reentrant: no I/O, no state.
//
// Checks run in a fixed order and short-circuit on the first failure, so
// the reported FailureKind is deterministic for a given input.
type SQLValidator struct{}

func NewSQLValidator() *SQLValidator {
	return &SQLValidator{}
}

// Validate runs the ordered safety checks against a candidate statement.
func (v *SQLValidator) Validate(sql string) Verdict {
	trimmed := strings.TrimSpace(sql)

	// 1. Non-empty
	if trimmed == "" {
		return reject(FailureEmptyStatement, "empty SQL statement")
	}

	// 2. Leading keyword allowlist
	if !allowedStart.MatchString(trimmed) {
		return reject(FailureWrongLeadingKeyword,
			"only SELECT queries are allowed; the query must start with SELECT or WITH")
	}

	// 3. Blocked keyword scan (whole word, anywhere in the text)
	for _, b := range blockedVerbs {
		if b.re.MatchString(trimmed) {
			return reject(FailureBlockedKeyword, b.message)
		}
	}
	for _, p := range catalogProbes {
		if p.re.MatchString(trimmed) {
			return reject(FailureCatalogProbe, p.message)
		}
	}

	// 4. Comment injection
	if strings.Contains(trimmed, "--") {
		return reject(FailureCommentInjection, "SQL comments (--) are not allowed")
	}
	if strings.Contains(trimmed, "/*") {
		return reject(FailureCommentInjection, "block comments (/*) are not allowed")
	}

	// 5. Balanced parentheses
	depth := 0
	for _, ch := range trimmed {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth < 0 {
			return reject(FailureUnbalancedParentheses, "unbalanced parentheses in SQL")
		}
	}
	if depth != 0 {
		return reject(FailureUnbalancedParentheses, "unbalanced parentheses in SQL")
	}

	// 6. Single statement: strip one trailing terminator, then reject if
	// any terminator remains in the body.
	body := strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	if strings.Contains(body, ";") {
		return reject(FailureMultipleStatements,
			"multiple SQL statements are not allowed; only single queries are permitted")
	}

	return Verdict{Accepted: true}
}

func reject(kind FailureKind, message string) Verdict {
	return Verdict{Accepted: false, Kind: kind, Message: message}
}
