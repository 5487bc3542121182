package agent

import (
	"context"
	"encoding/json"

	"github.com/meokten/meokten/pkg/sqltool"
)

// executeQuery runs the pending tool call through the execution gateway and
// converts the outcome into a tool result message. An empty result set is a
// successful result with zero rows, not an error.
func (a *Agent) executeQuery(ctx context.Context, conv []Message) Message {
	call := conv[len(conv)-1]
	out := a.cfg.Executor.Execute(ctx, call.Content)

	if a.log != nil {
		a.log.Debug("agent: executed query", "status", out.Status.String(), "rows", len(out.Rows))
	}

	switch out.Status {
	case sqltool.StatusFailure:
		return Message{
			Kind: KindToolResult, ToolName: toolQuery, ToolID: call.ToolID,
			Content: errorPrefix + " " + out.Reason,
			IsError: true,
		}
	case sqltool.StatusEmpty:
		return Message{
			Kind: KindToolResult, ToolName: toolQuery, ToolID: call.ToolID,
			Content: `{"results": []}`,
		}
	}

	payload, err := json.Marshal(map[string]any{"results": out.Rows})
	if err != nil {
		payload = []byte(`{"results": []}`)
	}
	return Message{Kind: KindToolResult, ToolName: toolQuery, ToolID: call.ToolID, Content: string(payload)}
}
