package repo

import (
	"fmt"
	"regexp"
	"strings"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdent rejects table/column names that are not plain SQL identifiers.
// Names originate from configuration, so they are allow-listed rather than
// interpolated as-is.
func ValidateIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid SQL identifier: %q", name)
	}
	return nil
}

// QuoteIdent double-quotes an identifier, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral single-quotes a string literal, doubling embedded quotes.
func QuoteLiteral(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}
