package agent

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/meokten/meokten/internal/metrics"
	"github.com/meokten/meokten/pkg/sqltool"
)

// correctQuery runs the candidate statement through the query-check prompt
// and emits the corrected statement as an execution tool call. On LLM
// failure it returns an error utterance instead, which loops the graph
// back into generation.
func (a *Agent) correctQuery(ctx context.Context, conv []Message) Message {
	last := conv[len(conv)-1]
	candidate := ExtractQuery(last.Content)
	if candidate == "" {
		candidate = strings.TrimSpace(stripAnswerPrefix(last.Content))
	}

	user := renderHistory(conv) + "\nQuery to check:\n" + candidate
	metrics.LLMCallsTotal.WithLabelValues("correct_query").Inc()
	text, err := a.cfg.LLM.Complete(ctx, queryCheckSystem, user, WithCacheControl())
	if err != nil {
		if a.log != nil {
			a.log.Error("agent: query correction failed", "error", err)
		}
		return Message{Kind: KindUtterance, Content: errorPrefix + " query correction failed: " + err.Error()}
	}

	sql := ExtractQuery(text)
	if sql == "" {
		sql = strings.TrimSpace(text)
	}
	sql = sqltool.CleanStatement(sql)
	if sql == "" {
		return Message{Kind: KindUtterance, Content: errorPrefix + " query correction produced an empty statement"}
	}

	if a.log != nil {
		a.log.Debug("agent: corrected query", "sql", sql)
	}
	return Message{Kind: KindToolCall, ToolName: toolQuery, ToolID: uuid.NewString(), Content: sql}
}
