package retrieval

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Query classes. Relational queries shift fusion weight toward the graph
// channel.
const (
	QueryStandard   = "standard"
	QueryRelational = "relational"
)

// ClassifyQuery scans the case-folded query for the configured relational
// keywords (any locale). Matching is token-wise, so "uses" does not fire
// on "houses".
func ClassifyQuery(query string, keywords map[string][]string) string {
	if len(keywords) == 0 {
		return QueryStandard
	}

	fold := cases.Fold()
	tokens := map[string]bool{}
	for _, tok := range strings.FieldsFunc(fold.String(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tokens[tok] = true
	}

	for _, list := range keywords {
		for _, kw := range list {
			if kw == "" {
				continue
			}
			if tokens[fold.String(kw)] {
				return QueryRelational
			}
		}
	}
	return QueryStandard
}
