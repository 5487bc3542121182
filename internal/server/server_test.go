package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meokten/meokten/internal/store"
	"github.com/meokten/meokten/pkg/agent"
	"github.com/meokten/meokten/pkg/sqltool"
)

type stubRunner struct {
	result   *agent.RunResult
	err      error
	gotQuery string
}

func (s *stubRunner) Run(ctx context.Context, question string) (*agent.RunResult, error) {
	s.gotQuery = question
	return s.result, s.err
}

type stubCatalog struct {
	restaurants []sqltool.Row
	menus       map[int64][]store.MenuItem
	pingErr     error
}

func (s *stubCatalog) Restaurants(ctx context.Context) ([]sqltool.Row, error) {
	return s.restaurants, nil
}

func (s *stubCatalog) MenuItems(ctx context.Context, id int64) ([]store.MenuItem, error) {
	return s.menus[id], nil
}

func (s *stubCatalog) Ping(ctx context.Context) error {
	return s.pingErr
}

func newTestServer(runner Runner, catalog Catalog) http.Handler {
	return New(Config{Addr: ":0", AllowedOrigins: []string{"*"}}, runner, catalog).Router()
}

func TestHandleChat(t *testing.T) {
	runner := &stubRunner{result: &agent.RunResult{
		Answer: "성수껍데기를 추천합니다.",
		Infos:  []agent.Restaurant{{Name: "성수껍데기", Subway: "성수역"}},
	}}
	h := newTestServer(runner, &stubCatalog{})

	body := `{"message": "성수역 맛집 알려줘"}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "성수껍데기를 추천합니다.", resp.Answer)
	require.Len(t, resp.Infos, 1)
	assert.Equal(t, "성수역", resp.Infos[0].Subway)
	assert.NotEmpty(t, resp.ThreadID)
	assert.Equal(t, "성수역 맛집 알려줘", runner.gotQuery)
}

func TestHandleChat_ReusesClientThreadID(t *testing.T) {
	h := newTestServer(&stubRunner{result: &agent.RunResult{Answer: "ok"}}, &stubCatalog{})

	body := `{"threadId": "thread-123", "message": "성수역 맛집"}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "thread-123", resp.ThreadID)
}

func TestHandleChat_HistoryBecomesContext(t *testing.T) {
	runner := &stubRunner{result: &agent.RunResult{Answer: "ok"}}
	h := newTestServer(runner, &stubCatalog{})

	body := `{"message": "거기 메뉴는?", "history": [{"role": "user", "content": "성수역 맛집"}, {"role": "assistant", "content": "성수껍데기요"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, runner.gotQuery, "이전 대화:")
	assert.Contains(t, runner.gotQuery, "성수껍데기요")
	assert.Contains(t, runner.gotQuery, "현재 질문: 거기 메뉴는?")
}

func TestHandleChat_RejectsEmptyMessage(t *testing.T) {
	h := newTestServer(&stubRunner{}, &stubCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message": "  "}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChat_RunnerError(t *testing.T) {
	h := newTestServer(&stubRunner{err: errors.New("boom")}, &stubCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message": "질문"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "boom")
}

func TestHandleRestaurants(t *testing.T) {
	catalog := &stubCatalog{restaurants: []sqltool.Row{
		{"id": int64(1), "name": "성수껍데기"},
	}}
	h := newTestServer(&stubRunner{}, catalog)

	req := httptest.NewRequest(http.MethodGet, "/api/restaurants", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Restaurants []map[string]any `json:"restaurants"`
		Count       int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "성수껍데기", resp.Restaurants[0]["name"])
}

func TestHandleMenus(t *testing.T) {
	catalog := &stubCatalog{menus: map[int64][]store.MenuItem{
		3: {{ID: 1, RestaurantID: 3, Name: "골뱅이무침", Price: "25000"}},
	}}
	h := newTestServer(&stubRunner{}, catalog)

	req := httptest.NewRequest(http.MethodGet, "/api/restaurants/3/menus", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Menus []map[string]any `json:"menus"`
		Count int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "골뱅이무침", resp.Menus[0]["name"])
}

func TestHandleMenus_InvalidID(t *testing.T) {
	h := newTestServer(&stubRunner{}, &stubCatalog{})

	req := httptest.NewRequest(http.MethodGet, "/api/restaurants/abc/menus", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealthz(t *testing.T) {
	h := newTestServer(&stubRunner{}, &stubCatalog{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	h = newTestServer(&stubRunner{}, &stubCatalog{pingErr: errors.New("down")})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
