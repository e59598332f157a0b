package dataset

import (
	"regexp"
	"strings"
)

// AnyColumn is the pseudo-attribute meaning "match any string column".
// The parser assigns it to terms that carry no explicit attribute.
const AnyColumn = "any"

// Operator is a comparison in a parsed search condition. Only substring
// matching is supported.
type Operator string

const OpContains Operator = "contains"

// Condition is one parsed (operator, attribute, value) triple. Derived
// from the search string and never persisted.
type Condition struct {
	Operator  Operator
	Attribute string
	Value     string
}

// A token is an unquoted run (no whitespace, quotes or colon), a
// double-quoted run with doubled-quote escaping, or a single-quoted run
// with no escaping. A token followed by a colon and a second token
// forms an attribute:value pair; a lone token searches all string
// columns. Fragments that match neither shape are skipped.
const tokenPattern = `"(?:[^"]|"")*"|'[^']*'|[^\s"':]+`

var conditionPattern = regexp.MustCompile(`(?:(` + tokenPattern + `):)?(` + tokenPattern + `)`)

// ParseQuery scans a search string into its ordered condition triples.
func ParseQuery(query string) []Condition {
	matches := conditionPattern.FindAllStringSubmatch(query, -1)
	conditions := make([]Condition, 0, len(matches))
	for _, m := range matches {
		attribute := AnyColumn
		if m[1] != "" {
			attribute = unquoteToken(m[1])
		}
		conditions = append(conditions, Condition{
			Operator:  OpContains,
			Attribute: attribute,
			Value:     unquoteToken(m[2]),
		})
	}
	return conditions
}

func unquoteToken(token string) string {
	if len(token) >= 2 {
		switch {
		case token[0] == '"' && token[len(token)-1] == '"':
			inner := token[1 : len(token)-1]
			return strings.ReplaceAll(inner, `""`, `"`)
		case token[0] == '\'' && token[len(token)-1] == '\'':
			return token[1 : len(token)-1]
		}
	}
	return token
}
