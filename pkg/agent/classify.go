package agent

import (
	"strings"
	"unicode/utf8"
)

// Classification is the semantic category of the latest conversation message.
// It drives the routing decision at the query_gen point.
type Classification int

const (
	// RawQuery is a message carrying a SQL statement, possibly disguised
	// as an answer. It must be routed through query correction.
	RawQuery Classification = iota
	// CheckedAnswer is a terminal Answer:-prefixed message with no SQL.
	CheckedAnswer
	// Success is the execution-succeeded sentinel.
	Success
	// ErrorSignal is an Error:-prefixed message; generation is retried.
	ErrorSignal
	// NaturalAnswer is free text long enough to be a final answer.
	NaturalAnswer
	// Unclassified is everything else; it defaults toward correction.
	Unclassified
)

// successSentinel signals that a query has already been executed and the
// run should proceed to answer synthesis.
const successSentinel = "QUERY_EXECUTED_SUCCESSFULLY"

const (
	answerPrefix = "Answer:"
	errorPrefix  = "Error:"
	sqlFence     = "```sql"
)

// Classify categorizes message content. Rule order is load-bearing: the
// categories overlap, and the first match wins.
func Classify(content string) Classification {
	switch {
	// An answer-shaped message that actually carries SQL is not terminal.
	case strings.HasPrefix(content, answerPrefix) &&
		(strings.Contains(content, sqlFence) || strings.Contains(content, "SELECT ")):
		return RawQuery
	case strings.HasPrefix(content, answerPrefix) &&
		!strings.Contains(strings.ToLower(content), "sql"):
		return CheckedAnswer
	case content == successSentinel:
		return Success
	case strings.HasPrefix(content, errorPrefix):
		return ErrorSignal
	// Long free text that is not a statement is a model answer that
	// skipped the Answer: prefix. The threshold counts characters, not
	// bytes; Korean text is three bytes per character.
	case utf8.RuneCountInString(content) > 20 && !strings.HasPrefix(content, "SELECT"):
		return NaturalAnswer
	default:
		return Unclassified
	}
}

// ExtractQuery pulls a SQL candidate out of message text: a sql-tagged fence
// first, otherwise everything from the first "SELECT " to the end.
func ExtractQuery(content string) string {
	if start := strings.Index(content, sqlFence); start != -1 {
		start += len(sqlFence)
		if end := strings.Index(content[start:], "```"); end != -1 {
			return strings.TrimSpace(content[start : start+end])
		}
	}
	if start := strings.Index(content, "SELECT "); start != -1 {
		return strings.TrimSpace(content[start:])
	}
	return ""
}

// stripAnswerPrefix removes the Answer: sentinel from user-facing text.
func stripAnswerPrefix(content string) string {
	return strings.TrimSpace(strings.TrimPrefix(content, answerPrefix))
}
