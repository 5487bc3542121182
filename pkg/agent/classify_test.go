package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_PriorityOrder(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Classification
	}{
		{
			name:    "answer prefix hiding a fenced query is a raw query",
			content: "Answer: ```sql\nSELECT * FROM restaurants\n```",
			want:    RawQuery,
		},
		{
			name:    "answer prefix hiding a bare SELECT is a raw query",
			content: "Answer: SELECT r.name FROM restaurants r LEFT JOIN menus m ON r.id = m.restaurant_id",
			want:    RawQuery,
		},
		{
			name:    "answer prefix without sql is terminal",
			content: "Answer: 강남역 근처에는 성수껍데기를 추천합니다.",
			want:    CheckedAnswer,
		},
		{
			name:    "answer prefix mentioning sql stays non-terminal",
			content: "Answer: the sql result was inconclusive",
			want:    NaturalAnswer,
		},
		{
			name:    "exact success sentinel",
			content: "QUERY_EXECUTED_SUCCESSFULLY",
			want:    Success,
		},
		{
			name:    "error prefix requests regeneration",
			content: "Error: no such column: r.menu",
			want:    ErrorSignal,
		},
		{
			name:    "long prose without markers is a natural answer",
			content: "서울에는 다양한 맛집이 있습니다. 어떤 지역을 찾으시나요?",
			want:    NaturalAnswer,
		},
		{
			name:    "bare SELECT is not a natural answer",
			content: "SELECT r.name, m.menu_name FROM restaurants r LEFT JOIN menus m ON r.id = m.restaurant_id",
			want:    Unclassified,
		},
		{
			name:    "short fragment is unclassified",
			content: "ok",
			want:    Unclassified,
		},
		{
			// 8 characters, 22 bytes. The length rule counts characters,
			// so a short Korean fragment must not become a terminal answer.
			name:    "short korean fragment is unclassified",
			content: "결과가 없습니다",
			want:    Unclassified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.content))
		})
	}
}

func TestExtractQuery(t *testing.T) {
	t.Run("fenced block wins over surrounding text", func(t *testing.T) {
		content := "Here is the query:\n```sql\nSELECT * FROM menus;\n```\nLet me know."
		assert.Equal(t, "SELECT * FROM menus;", ExtractQuery(content))
	})

	t.Run("falls back to first SELECT", func(t *testing.T) {
		content := "Answer: SELECT name FROM restaurants WHERE station_name LIKE '%성수역%'"
		assert.Equal(t, "SELECT name FROM restaurants WHERE station_name LIKE '%성수역%'", ExtractQuery(content))
	})

	t.Run("no query present", func(t *testing.T) {
		assert.Equal(t, "", ExtractQuery("맛집을 추천해드릴게요."))
	})
}

func TestStripAnswerPrefix(t *testing.T) {
	assert.Equal(t, "성수껍데기를 추천합니다.", stripAnswerPrefix("Answer: 성수껍데기를 추천합니다."))
	assert.Equal(t, "no prefix here", stripAnswerPrefix("no prefix here"))
}
