package agent

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/meokten/meokten/internal/metrics"
)

// generateQuery runs the query-generation stage. If a prior execution
// already succeeded, the stage short-circuits to the success sentinel so
// the graph can move on to answer synthesis instead of re-querying.
func (a *Agent) generateQuery(ctx context.Context, conv []Message) Message {
	for i := len(conv) - 2; i >= 0; i-- {
		m := conv[i]
		if m.Kind == KindToolResult && m.ToolName == toolQuery && !m.IsError &&
			!strings.HasPrefix(m.Content, errorPrefix) {
			return Message{Kind: KindUtterance, Content: successSentinel}
		}
	}

	metrics.LLMCallsTotal.WithLabelValues("query_gen").Inc()
	text, err := a.cfg.LLM.Complete(ctx, queryGenSystem, renderHistory(conv), WithCacheControl())
	if err != nil {
		if a.log != nil {
			a.log.Error("agent: query generation failed", "error", err)
		}
		return Message{Kind: KindUtterance, Content: errorPrefix + " query generation failed: " + err.Error()}
	}
	text = strings.TrimSpace(text)

	// Long output without an explicit marker gets the answer prefix. Prose
	// then terminates the run; a fenced query still classifies as raw SQL.
	// Character count, not byte count, so Korean prose measures correctly.
	if utf8.RuneCountInString(text) > 50 &&
		!strings.HasPrefix(text, "SELECT") &&
		!strings.HasPrefix(text, errorPrefix) &&
		!strings.HasPrefix(text, answerPrefix) {
		text = answerPrefix + " " + text
	}
	return Message{Kind: KindUtterance, Content: text}
}
