package filter

import "strings"

// Encoder converts compiled predicates to SQL strings.
// Implementations handle dialect-specific syntax.
type Encoder interface {
	// Encode converts a single expression to a SQL condition.
	Encode(expr Expression) string

	// EncodeFilters joins several expressions into a WHERE clause body,
	// without the "WHERE" keyword. Returns an empty string for no filters.
	EncodeFilters(exprs []Expression) string
}

// EncoderOptions configures encoding behavior.
type EncoderOptions struct {
	// ColumnMapping maps top-level column names to target names.
	// Columns not in the map use their original names.
	ColumnMapping map[string]string

	// ColumnExpressions maps dotted field paths to SQL expressions.
	// Takes precedence over ColumnMapping.
	ColumnExpressions map[string]string
}

// quoteLiteral renders s as a single-quoted SQL string.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteIdentifier double-quotes name unless it is a plain, non-reserved
// identifier.
func quoteIdentifier(name string) string {
	if isPlainIdentifier(name) && !reservedWords[strings.ToUpper(name)] {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// isPlainIdentifier reports whether name matches [A-Za-z_][A-Za-z0-9_]*.
func isPlainIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// reservedWords lists keywords that cannot appear unquoted as column names
// in a WHERE clause.
var reservedWords = func() map[string]bool {
	words := strings.Fields(`
		ALL ALTER AND AS ASC BETWEEN BY CASE CAST CHECK CONSTRAINT CREATE DATE
		DEFAULT DELETE DESC DISTINCT DROP ELSE END EXCEPT EXISTS FALSE FIRST
		FOREIGN FROM GROUP HAVING IN INDEX INNER INSERT INTERSECT INTERVAL INTO
		IS JOIN KEY LAST LEFT LIKE LIMIT NOT NULL NULLS OFFSET ON OR ORDER OUTER
		PRIMARY REFERENCES RIGHT SELECT SET STRUCT TABLE THEN TIME TIMESTAMP TRUE
		UNION UNIQUE UPDATE VALUES WHEN WHERE`)
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}()
