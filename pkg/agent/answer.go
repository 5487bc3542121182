package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/meokten/meokten/internal/metrics"
	"github.com/meokten/meokten/pkg/sqltool"
)

// Canned answers for the paths where synthesis has nothing to work with.
const (
	noMatchAnswer = "조건에 맞는 식당을 찾을 수 없습니다. 다른 검색어로 시도해보세요."
	apologyAnswer = "죄송합니다. 답변을 생성하는 중 오류가 발생했습니다."
)

// Outcome labels a completed run for metrics.
func (r *RunResult) Outcome() string {
	switch r.Answer {
	case noMatchAnswer:
		return "no_match"
	case apologyAnswer:
		return "error"
	}
	return "answered"
}

// synthesize turns the last successful query result into the final answer.
// It never fails: every path returns a result with a populated answer.
func (a *Agent) synthesize(ctx context.Context, conv []Message) *RunResult {
	resultText := lastSuccessResult(conv)
	if resultText == "" {
		return &RunResult{Answer: apologyAnswer, Infos: []Restaurant{}}
	}

	rows := sqltool.Normalize(resultText)
	if len(rows) == 0 {
		return &RunResult{Answer: noMatchAnswer, Infos: []Restaurant{}}
	}

	menus := a.attachMenus(ctx, rows)

	prompt := fmt.Sprintf("질문: %s\n\nSQL 결과:\n%s", firstQuestion(conv), resultText)
	if len(menus) > 0 {
		if extra, err := json.Marshal(menus); err == nil {
			prompt += "\n\n메뉴 정보:\n" + string(extra)
		}
	}

	metrics.LLMCallsTotal.WithLabelValues("generate_answer").Inc()
	text, err := a.cfg.LLM.Complete(ctx, answerGenSystem, prompt)
	if err != nil {
		if a.log != nil {
			a.log.Error("agent: answer synthesis failed", "error", err)
		}
		return &RunResult{Answer: apologyAnswer, Infos: []Restaurant{}}
	}

	if res, ok := parseAnswerJSON(text); ok {
		return res
	}

	// The model answered in prose; fall back to infos built from the rows.
	return &RunResult{
		Answer: strings.TrimSpace(stripAnswerPrefix(text)),
		Infos:  buildInfos(rows, menus),
	}
}

// lastSuccessResult returns the content of the most recent non-error
// execution tool result, or "" when no execution ever succeeded.
func lastSuccessResult(conv []Message) string {
	for i := len(conv) - 1; i >= 0; i-- {
		m := conv[i]
		if m.Kind == KindToolResult && m.ToolName == toolQuery && !m.IsError &&
			!strings.HasPrefix(m.Content, errorPrefix) {
			return m.Content
		}
	}
	return ""
}

func firstQuestion(conv []Message) string {
	for _, m := range conv {
		if m.Kind == KindQuestion {
			return m.Content
		}
	}
	return ""
}

// attachMenus fetches menu rows for the restaurants in the result set when
// the query did not already join them in. The lookup is batched; a store
// failure degrades to an answer without menu detail.
func (a *Agent) attachMenus(ctx context.Context, rows []sqltool.Row) map[int64][]sqltool.Row {
	if len(rows) == 0 {
		return nil
	}
	if _, ok := rows[0]["menu_name"]; ok {
		return nil
	}

	var ids []int64
	seen := map[int64]bool{}
	for _, row := range rows {
		id, ok := rowID(row)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}

	menus, err := a.cfg.Store.MenusByRestaurants(ctx, ids)
	if err != nil {
		if a.log != nil {
			a.log.Warn("agent: menu lookup failed", "error", err)
		}
		return nil
	}
	return menus
}

// rowID extracts the restaurant identifier from a result row.
func rowID(row sqltool.Row) (int64, bool) {
	for _, key := range []string{"restaurant_id", "id"} {
		v, ok := row[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int64:
			return n, true
		case float64:
			return int64(n), true
		case string:
			if id, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
				return id, true
			}
		}
	}
	return 0, false
}

// buildInfos groups result rows by restaurant, preserving first-seen order,
// and renders one Restaurant per group.
func buildInfos(rows []sqltool.Row, menus map[int64][]sqltool.Row) []Restaurant {
	type group struct {
		first sqltool.Row
		rows  []sqltool.Row
		id    int64
	}

	var order []string
	groups := map[string]*group{}
	for _, row := range rows {
		key := rowField(row, "restaurant_id", "id")
		if key == "" {
			key = rowField(row, "restaurant_name", "name")
		}
		g, ok := groups[key]
		if !ok {
			id, _ := rowID(row)
			g = &group{first: row, id: id}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, row)
	}

	infos := make([]Restaurant, 0, len(order))
	for _, key := range order {
		g := groups[key]
		menuRows := g.rows
		if _, ok := g.first["menu_name"]; !ok {
			menuRows = menus[g.id]
		}
		infos = append(infos, Restaurant{
			Name:    rowField(g.first, "restaurant_name", "name"),
			Address: rowField(g.first, "address"),
			Subway:  rowField(g.first, "station_name", "subway"),
			Lat:     rowField(g.first, "latitude", "lat"),
			Lng:     rowField(g.first, "longitude", "lng"),
			Menu:    renderMenus(menuRows),
			Review:  renderReviews(menuRows),
		})
	}
	return infos
}

// renderMenus joins "name: price" pairs for every row carrying a menu name.
func renderMenus(rows []sqltool.Row) string {
	var parts []string
	for _, row := range rows {
		name := rowField(row, "menu_name")
		if name == "" {
			continue
		}
		if price := rowField(row, "price"); price != "" {
			parts = append(parts, name+": "+price)
		} else {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, ", ")
}

func renderReviews(rows []sqltool.Row) string {
	var parts []string
	seen := map[string]bool{}
	for _, row := range rows {
		review := rowField(row, "review")
		if review == "" || seen[review] {
			continue
		}
		seen[review] = true
		parts = append(parts, review)
	}
	return strings.Join(parts, " / ")
}

// rowField returns the first present key rendered as a string.
func rowField(row sqltool.Row, keys ...string) string {
	for _, key := range keys {
		v, ok := row[key]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			return s
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		case int64:
			return strconv.FormatInt(s, 10)
		case bool:
			return strconv.FormatBool(s)
		default:
			return fmt.Sprintf("%v", s)
		}
	}
	return ""
}

// parseAnswerJSON extracts the structured answer payload from LLM output.
// The model is told to emit bare JSON but sometimes wraps it in fences or
// leading prose, so the parser scans for the outermost object.
func parseAnswerJSON(text string) (*RunResult, bool) {
	text = strings.TrimSpace(stripAnswerPrefix(text))
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var payload struct {
		Answer string           `json:"answer"`
		Infos  []map[string]any `json:"infos"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, false
	}
	if strings.TrimSpace(payload.Answer) == "" {
		return nil, false
	}

	infos := make([]Restaurant, 0, len(payload.Infos))
	for _, info := range payload.Infos {
		infos = append(infos, Restaurant{
			Name:    rowField(info, "name"),
			Address: rowField(info, "address"),
			Subway:  rowField(info, "subway"),
			Lat:     rowField(info, "lat"),
			Lng:     rowField(info, "lng"),
			Menu:    rowField(info, "menu"),
			Review:  rowField(info, "review"),
		})
	}
	return &RunResult{Answer: payload.Answer, Infos: infos}, true
}
