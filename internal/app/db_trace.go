package app

import (
	"regexp"
	"strconv"
	"strings"
)

const maxTracedQueryLength = 512

var (
	queryWhitespaceRegex = regexp.MustCompile(`\s+`)
	// a run of placeholder tuples from a batched snapshot or pick insert
	valuesTupleRunRegex = regexp.MustCompile(`\(\$\d+[^()]*\)(?:, \(\$\d+[^()]*\))+`)
	valuesTupleRegex    = regexp.MustCompile(`\(\$\d+[^()]*\)`)
)

// formatDBQueryForTrace collapses whitespace and batched VALUES tuples so a
// 100-row snapshot insert stays readable in a span.
func formatDBQueryForTrace(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	normalized := queryWhitespaceRegex.ReplaceAllString(query, " ")
	normalized = valuesTupleRunRegex.ReplaceAllStringFunc(normalized, func(run string) string {
		tuples := valuesTupleRegex.FindAllString(run, -1)
		return tuples[0] + " /* +" + strconv.Itoa(len(tuples)-1) + " rows */"
	})
	if len(normalized) <= maxTracedQueryLength {
		return normalized
	}
	return normalized[:maxTracedQueryLength] + "..."
}
