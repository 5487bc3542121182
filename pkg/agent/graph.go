package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// stage identifies a node in the agent's control-flow graph.
type stage int

const (
	stageFirstCall stage = iota
	stageListTables
	stageGetSchema
	stageQueryGen
	stageCorrectQuery
	stageExecuteQuery
	stageProcessResult
	stageGenerateAnswer
	stageEnd
)

func (s stage) String() string {
	switch s {
	case stageFirstCall:
		return "first_call"
	case stageListTables:
		return "list_tables"
	case stageGetSchema:
		return "get_schema"
	case stageQueryGen:
		return "query_gen"
	case stageCorrectQuery:
		return "correct_query"
	case stageExecuteQuery:
		return "execute_query"
	case stageProcessResult:
		return "process_result"
	case stageGenerateAnswer:
		return "generate_answer"
	case stageEnd:
		return "end"
	}
	return "unknown"
}

// Run executes the full stage graph for one question. It always returns a
// result with a populated answer; the error return covers only failures
// before any stage could run.
func (a *Agent) Run(ctx context.Context, question string) (*RunResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question is required")
	}

	conv := []Message{{Kind: KindQuestion, Content: question}}
	st := stageFirstCall
	var final *RunResult

	for st != stageEnd {
		if ctx.Err() != nil {
			break
		}
		if a.log != nil {
			a.log.Debug("agent: entering stage", "stage", st.String(), "messages", len(conv))
		}
		conv, st, final = a.step(ctx, conv, st, final)
	}

	if final == nil {
		final = finalizeFromConversation(conv)
	}
	final.Messages = conv
	return final, nil
}

// step executes one stage and returns the grown conversation, the next
// stage, and the final result once answer synthesis has run.
func (a *Agent) step(ctx context.Context, conv []Message, st stage, final *RunResult) ([]Message, stage, *RunResult) {
	switch st {
	case stageFirstCall:
		conv = append(conv,
			Message{Kind: KindUtterance, Content: "먼저 데이터베이스의 테이블 목록을 조회하겠습니다."},
			Message{Kind: KindToolCall, ToolName: toolListTables, ToolID: uuid.NewString()},
		)
		return conv, stageListTables, final

	case stageListTables:
		conv = append(conv, a.listTables(ctx, lastToolID(conv)))
		return conv, stageGetSchema, final

	case stageGetSchema:
		conv = a.fetchSchemas(ctx, conv)
		return conv, stageQueryGen, final

	case stageQueryGen:
		msg := a.generateQuery(ctx, conv)
		conv = append(conv, msg)
		return conv, a.route(conv), final

	case stageCorrectQuery:
		msg := a.correctQuery(ctx, conv)
		conv = append(conv, msg)
		if msg.Kind == KindToolCall {
			return conv, stageExecuteQuery, final
		}
		// Correction failed; the error message loops back into generation.
		return conv, stageQueryGen, final

	case stageExecuteQuery:
		conv = append(conv, a.executeQuery(ctx, conv))
		return conv, stageProcessResult, final

	case stageProcessResult:
		conv = append(conv, processResult(conv))
		return conv, stageQueryGen, final

	case stageGenerateAnswer:
		final = a.synthesize(ctx, conv)
		conv = append(conv, Message{Kind: KindUtterance, Content: answerPrefix + " " + final.Answer})
		return conv, stageEnd, final
	}

	return conv, stageEnd, final
}

// route is the conditional edge out of query_gen. The budget check comes
// first: an over-long conversation terminates regardless of content.
func (a *Agent) route(conv []Message) stage {
	if len(conv) > a.cfg.MaxTurns {
		if a.log != nil {
			a.log.Warn("agent: turn budget exceeded, forcing termination", "messages", len(conv))
		}
		return stageEnd
	}

	switch Classify(conv[len(conv)-1].Content) {
	case RawQuery:
		return stageCorrectQuery
	case CheckedAnswer, NaturalAnswer:
		return stageEnd
	case Success:
		return stageGenerateAnswer
	case ErrorSignal:
		return stageQueryGen
	default:
		return stageCorrectQuery
	}
}

// listTables runs the table-listing tool. The table set is fixed, so a
// store failure falls back to the known literal instead of derailing the run.
func (a *Agent) listTables(ctx context.Context, toolID string) Message {
	text, err := a.cfg.Store.ListTables(ctx)
	if err != nil || strings.TrimSpace(text) == "" {
		if a.log != nil {
			a.log.Warn("agent: list tables failed, using fallback", "error", err)
		}
		text = "['restaurants', 'menus']"
	}
	return Message{Kind: KindToolResult, ToolName: toolListTables, ToolID: toolID, Content: text}
}

// fetchSchemas appends a tool call/result pair for each known table.
func (a *Agent) fetchSchemas(ctx context.Context, conv []Message) []Message {
	for _, table := range []string{"restaurants", "menus"} {
		id := uuid.NewString()
		conv = append(conv, Message{Kind: KindToolCall, ToolName: toolSchema, ToolID: id, Content: table})

		info, err := a.cfg.Store.TableInfo(ctx, table)
		if err != nil {
			conv = append(conv, Message{
				Kind: KindToolResult, ToolName: toolSchema, ToolID: id,
				Content: fmt.Sprintf("Error: failed to describe table %s: %v", table, err),
				IsError: true,
			})
			continue
		}
		conv = append(conv, Message{Kind: KindToolResult, ToolName: toolSchema, ToolID: id, Content: info})
	}
	return conv
}

// processResult converts the latest execution tool result into either the
// success sentinel or an error message that re-enters generation.
func processResult(conv []Message) Message {
	last := conv[len(conv)-1]
	if last.Kind == KindToolResult && last.ToolName == toolQuery && !last.IsError {
		return Message{Kind: KindUtterance, Content: successSentinel}
	}
	content := last.Content
	if !strings.HasPrefix(content, errorPrefix) {
		content = errorPrefix + " " + content
	}
	return Message{Kind: KindUtterance, Content: content}
}

// lastToolID returns the ToolID of the most recent tool call.
func lastToolID(conv []Message) string {
	for i := len(conv) - 1; i >= 0; i-- {
		if conv[i].Kind == KindToolCall {
			return conv[i].ToolID
		}
	}
	return ""
}

// finalizeFromConversation derives a result when the run terminated on a
// classifier decision or the turn budget rather than on answer synthesis.
// Only a terminal-looking last message counts as an answer; a budget-forced
// stop mid-error yields the apology.
func finalizeFromConversation(conv []Message) *RunResult {
	last := conv[len(conv)-1]
	if last.Kind == KindUtterance {
		switch Classify(last.Content) {
		case CheckedAnswer, NaturalAnswer:
			return &RunResult{Answer: stripAnswerPrefix(last.Content), Infos: []Restaurant{}}
		}
	}
	return &RunResult{Answer: apologyAnswer, Infos: []Restaurant{}}
}

// renderHistory flattens the conversation into a transcript for the LLM.
func renderHistory(conv []Message) string {
	var sb strings.Builder
	for _, m := range conv {
		switch m.Kind {
		case KindQuestion:
			fmt.Fprintf(&sb, "User: %s\n", m.Content)
		case KindUtterance:
			fmt.Fprintf(&sb, "Assistant: %s\n", m.Content)
		case KindToolCall:
			fmt.Fprintf(&sb, "Tool call %s: %s\n", m.ToolName, m.Content)
		case KindToolResult:
			fmt.Fprintf(&sb, "Tool %s: %s\n", m.ToolName, truncate(m.Content, 2000))
		}
	}
	return sb.String()
}

// truncate cuts s to at most max bytes, backing up to a rune boundary so a
// multibyte character is never split.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
