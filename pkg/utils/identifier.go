package utils

import "strings"

// QuoteIdentifier double quotes a single identifier part.
//
// Unquoted parts are upper-cased, matching how Snowflake resolves them.
// Parts that are already quoted are returned unchanged.
//
// Examples:
//   - "table" -> "\"TABLE\""
//   - "\"Mixed\"" -> "\"Mixed\""
//   - "a\"b" -> "\"A\"\"B\""
//   - "" -> ""
func QuoteIdentifier(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	if IsQuoted(name) {
		return name
	}

	return `"` + strings.ReplaceAll(strings.ToUpper(name), `"`, `""`) + `"`
}

// QuoteName quotes each part and joins them into a qualified name. Empty
// parts are skipped.
//
// Examples:
//   - ("db", "schema", "t") -> "\"DB\".\"SCHEMA\".\"T\""
//   - ("", "schema", "t") -> "\"SCHEMA\".\"T\""
func QuoteName(parts ...string) string {
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		if q := QuoteIdentifier(p); q != "" {
			quoted = append(quoted, q)
		}
	}

	return strings.Join(quoted, ".")
}

// IsQuoted reports whether s is wrapped in double quotes.
func IsQuoted(s string) bool {
	return len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`)
}

// Unquote removes surrounding double quotes and unescapes doubled quotes.
// Unquoted input is returned unchanged.
func Unquote(s string) string {
	if !IsQuoted(s) {
		return s
	}

	return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
}

// QuoteLiteral single quotes s for use as a string literal, escaping
// backslashes and single quotes.
//
// Examples:
//   - "ELT" -> "'ELT'"
//   - "O'Brien" -> "'O''Brien'"
func QuoteLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
