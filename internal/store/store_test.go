package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meokten/meokten/pkg/sqltool"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(&Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	stmts := []string{
		`CREATE TABLE restaurants (
			id INTEGER PRIMARY KEY,
			name TEXT,
			address TEXT,
			latitude TEXT,
			longitude TEXT,
			station_name TEXT,
			video_id TEXT,
			video_url TEXT
		)`,
		`CREATE TABLE menus (
			id INTEGER PRIMARY KEY,
			restaurant_id INTEGER,
			menu_name TEXT,
			menu_type TEXT,
			price TEXT,
			review TEXT
		)`,
		`INSERT INTO restaurants VALUES
			(1, '성수껍데기', '서울 성동구', '37.544', '127.056', '성수역', 'v1', 'https://youtu.be/v1'),
			(2, '을지로골뱅이', '서울 중구', '37.566', '126.991', '을지로3가역', 'v2', 'https://youtu.be/v2')`,
		`INSERT INTO menus VALUES
			(1, 1, '돼지껍데기', 'main', '12000', '쫄깃하고 고소하다'),
			(2, 1, '껍데기볶음밥', 'side', '3000', '마무리로 최고'),
			(3, 2, '골뱅이무침', 'main', '25000', '매콤하다')`,
	}
	for _, stmt := range stmts {
		_, err := s.DB().ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	return s
}

func TestExecute_PipeTableRoundTrips(t *testing.T) {
	s := newTestStore(t)

	text, isError, err := s.Execute(context.Background(),
		"SELECT id, name, station_name FROM restaurants ORDER BY id")
	require.NoError(t, err)
	require.False(t, isError)

	rows := sqltool.Normalize(text)
	require.Len(t, rows, 2)
	assert.Equal(t, "성수껍데기", rows[0]["name"])
	assert.Equal(t, "을지로3가역", rows[1]["station_name"])
}

func TestExecute_EmptyResultIsBlank(t *testing.T) {
	s := newTestStore(t)

	text, isError, err := s.Execute(context.Background(),
		"SELECT * FROM restaurants WHERE station_name LIKE '%없는역%'")
	require.NoError(t, err)
	assert.False(t, isError)
	assert.Empty(t, text)
}

func TestExecute_SQLErrorIsResultText(t *testing.T) {
	s := newTestStore(t)

	text, isError, err := s.Execute(context.Background(), "SELECT nope FROM restaurants")
	require.NoError(t, err)
	assert.True(t, isError)
	assert.Contains(t, text, "nope")
}

func TestListTables(t *testing.T) {
	s := newTestStore(t)

	text, err := s.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "['menus', 'restaurants']", text)
}

func TestTableInfo(t *testing.T) {
	s := newTestStore(t)

	info, err := s.TableInfo(context.Background(), "menus")
	require.NoError(t, err)
	assert.Contains(t, info, "CREATE TABLE menus")
	assert.Contains(t, info, "menu_name")
	assert.Contains(t, info, "3 rows from menus table")

	// Second lookup is served from cache.
	cached, err := s.TableInfo(context.Background(), "menus")
	require.NoError(t, err)
	assert.Equal(t, info, cached)

	_, err = s.TableInfo(context.Background(), "users; DROP TABLE menus")
	assert.Error(t, err)
}

func TestWithSampleRows(t *testing.T) {
	ddl := "CREATE TABLE menus (id INTEGER PRIMARY KEY)"

	got := withSampleRows(ddl, "menus", "| id |\n| --- |\n| 1 |\n", false)
	assert.Contains(t, got, "3 rows from menus table")

	// A failed sample carries the SQL error text; it must not end up in
	// the schema description.
	got = withSampleRows(ddl, "menus", "no such column: m.price", true)
	assert.Equal(t, ddl, got)

	got = withSampleRows(ddl, "menus", "", false)
	assert.Equal(t, ddl, got)
}

func TestMenusByRestaurants_GroupsBatchedLookup(t *testing.T) {
	s := newTestStore(t)

	grouped, err := s.MenusByRestaurants(context.Background(), []int64{1, 2, 99})
	require.NoError(t, err)

	require.Len(t, grouped, 2)
	require.Len(t, grouped[1], 2)
	assert.Equal(t, "돼지껍데기", grouped[1][0]["menu_name"])
	assert.Equal(t, "골뱅이무침", grouped[2][0]["menu_name"])
	assert.NotContains(t, grouped, int64(99))
}

func TestMenusByRestaurant_Single(t *testing.T) {
	s := newTestStore(t)

	menus, err := s.MenusByRestaurant(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, menus, 1)
	assert.Equal(t, "25000", menus[0]["price"])
}

func TestMenuItems_Typed(t *testing.T) {
	s := newTestStore(t)

	items, err := s.MenuItems(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[0].RestaurantID)
	assert.Equal(t, "돼지껍데기", items[0].Name)
	assert.Equal(t, "main", items[0].Type)
	assert.Equal(t, "12000", items[0].Price)
}

func TestRestaurants(t *testing.T) {
	s := newTestStore(t)

	rows, err := s.Restaurants(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, "성수껍데기", rows[0]["name"])
}
