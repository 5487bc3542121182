// Package store provides the SQLite-backed restaurant database: raw
// statement execution for the agent's query tool plus the typed lookups the
// answer and HTTP layers need.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	_ "modernc.org/sqlite"

	"github.com/meokten/meokten/pkg/sqltool"
)

const defaultSchemaCacheTTL = 10 * time.Minute

// knownTables is the full table set of the dataset. Schema lookups are
// restricted to it because the table name is interpolated into PRAGMA
// statements, which cannot take placeholders.
var knownTables = []string{"restaurants", "menus"}

// Config holds the configuration for the store.
type Config struct {
	Logger *slog.Logger
	// Path is the SQLite database file path.
	Path string
	// SchemaCacheTTL bounds how long table descriptions are cached.
	SchemaCacheTTL time.Duration
}

func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.New("database path is required")
	}
	if c.SchemaCacheTTL == 0 {
		c.SchemaCacheTTL = defaultSchemaCacheTTL
	}
	return nil
}

// Store wraps a read-mostly SQLite database.
type Store struct {
	log   *slog.Logger
	db    *sql.DB
	cache *ttlcache.Cache[string, string]
}

// New opens the database and verifies the connection. The modernc driver is
// pure Go but serializes writers, so the pool is capped at one connection.
func New(cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, string](cfg.SchemaCacheTTL),
	)
	go cache.Start()

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Store{log: log, db: db, cache: cache}, nil
}

// Close releases the connection pool and stops the cache janitor.
func (s *Store) Close() error {
	s.cache.Stop()
	return s.db.Close()
}

// DB exposes the underlying pool, mainly for fixture loading.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Execute runs one statement and renders the rows as a pipe table. SQL
// errors come back as result text with isError set; the error return is
// reserved for infrastructure faults.
func (s *Store) Execute(ctx context.Context, query string) (string, bool, error) {
	s.log.Debug("store: executing query", "sql", query)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return err.Error(), true, nil
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err.Error(), true, nil
	}

	var sb strings.Builder
	count := 0
	for rows.Next() {
		record, err := scanRow(rows, cols)
		if err != nil {
			return err.Error(), true, nil
		}
		if count == 0 {
			writePipeRow(&sb, cols)
			sep := make([]string, len(cols))
			for i := range sep {
				sep[i] = "---"
			}
			writePipeRow(&sb, sep)
		}
		cells := make([]string, len(cols))
		for i, col := range cols {
			cells[i] = renderCell(record[col])
		}
		writePipeRow(&sb, cells)
		count++
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return err.Error(), true, nil
	}

	if count == 0 {
		return "", false, nil
	}
	return sb.String(), false, nil
}

// ListTables returns the table names in the bracketed list format the
// generation prompt expects.
func (s *Store) ListTables(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return "", fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, "'"+name+"'")
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return "[" + strings.Join(names, ", ") + "]", nil
}

// TableInfo returns the CREATE TABLE statement plus a few sample rows for
// one table. Results are cached; the schema never changes at runtime.
func (s *Store) TableInfo(ctx context.Context, table string) (string, error) {
	if !isKnownTable(table) {
		return "", fmt.Errorf("unknown table: %s", table)
	}
	if item := s.cache.Get(table); item != nil {
		return item.Value(), nil
	}

	var ddl string
	err := s.db.QueryRowContext(ctx,
		"SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&ddl)
	if err != nil {
		return "", fmt.Errorf("describe table %s: %w", table, err)
	}

	sample, sampleFailed, execErr := s.Execute(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 3", table))
	if execErr != nil {
		return "", execErr
	}
	if sampleFailed {
		s.log.Warn("store: sample query failed, describing schema without rows", "table", table, "error", sample)
	}

	info := withSampleRows(ddl, table, sample, sampleFailed)
	s.cache.Set(table, info, ttlcache.DefaultTTL)
	return info, nil
}

// withSampleRows appends the sample-row block to a table description. A
// failed sample query must not leak its error text into the schema, which
// gets cached and fed to the model.
func withSampleRows(ddl, table, sample string, failed bool) string {
	if failed || sample == "" {
		return ddl
	}
	return ddl + "\n\n3 rows from " + table + " table:\n" + sample
}

// MenuItem is one typed menu row, shaped for the HTTP API.
type MenuItem struct {
	ID           int64  `json:"id"`
	RestaurantID int64  `json:"restaurantId"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Price        string `json:"price"`
	Review       string `json:"review"`
}

// MenuItems returns the menus of one restaurant as typed records.
func (s *Store) MenuItems(ctx context.Context, restaurantID int64) ([]MenuItem, error) {
	rows, err := s.MenusByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	items := make([]MenuItem, 0, len(rows))
	for _, row := range rows {
		item := MenuItem{
			Name:   stringField(row, "menu_name"),
			Type:   stringField(row, "menu_type"),
			Price:  stringField(row, "price"),
			Review: stringField(row, "review"),
		}
		if id, ok := row["id"].(int64); ok {
			item.ID = id
		}
		if rid, ok := row["restaurant_id"].(int64); ok {
			item.RestaurantID = rid
		}
		items = append(items, item)
	}
	return items, nil
}

func stringField(row sqltool.Row, key string) string {
	switch v := row[key].(type) {
	case string:
		return v
	case int64:
		return fmt.Sprintf("%d", v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// MenusByRestaurant returns the menu rows of one restaurant.
func (s *Store) MenusByRestaurant(ctx context.Context, restaurantID int64) ([]sqltool.Row, error) {
	grouped, err := s.MenusByRestaurants(ctx, []int64{restaurantID})
	if err != nil {
		return nil, err
	}
	return grouped[restaurantID], nil
}

// MenusByRestaurants batches the menu lookup for several restaurants into a
// single IN query and groups the rows by restaurant.
func (s *Store) MenusByRestaurants(ctx context.Context, restaurantIDs []int64) (map[int64][]sqltool.Row, error) {
	if len(restaurantIDs) == 0 {
		return map[int64][]sqltool.Row{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(restaurantIDs)), ", ")
	args := make([]any, len(restaurantIDs))
	for i, id := range restaurantIDs {
		args[i] = id
	}

	query := fmt.Sprintf(
		"SELECT id, restaurant_id, menu_name, menu_type, price, review FROM menus WHERE restaurant_id IN (%s) ORDER BY restaurant_id, id",
		placeholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query menus: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	grouped := map[int64][]sqltool.Row{}
	for rows.Next() {
		record, err := scanRow(rows, cols)
		if err != nil {
			return nil, err
		}
		id, ok := record["restaurant_id"].(int64)
		if !ok {
			continue
		}
		grouped[id] = append(grouped[id], record)
	}
	return grouped, rows.Err()
}

// Restaurants returns all restaurant rows, for the browse endpoint.
func (s *Store) Restaurants(ctx context.Context) ([]sqltool.Row, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, address, latitude, longitude, station_name, video_id, video_url FROM restaurants ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query restaurants: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []sqltool.Row
	for rows.Next() {
		record, err := scanRow(rows, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func isKnownTable(table string) bool {
	for _, t := range knownTables {
		if t == table {
			return true
		}
	}
	return false
}

// scanRow scans the current row into a column-keyed map. Byte slices become
// strings; everything else keeps the driver's type.
func scanRow(rows *sql.Rows, cols []string) (sqltool.Row, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	record := make(sqltool.Row, len(cols))
	for i, col := range cols {
		switch v := values[i].(type) {
		case []byte:
			record[col] = string(v)
		default:
			record[col] = v
		}
	}
	return record, nil
}

// writePipeRow writes one pipe-delimited table line. Cell text is flattened
// so embedded pipes and newlines cannot break the table shape.
func writePipeRow(sb *strings.Builder, cells []string) {
	sb.WriteString("|")
	for _, cell := range cells {
		sb.WriteString(" ")
		sb.WriteString(flattenCell(cell))
		sb.WriteString(" |")
	}
	sb.WriteString("\n")
}

func flattenCell(cell string) string {
	cell = strings.ReplaceAll(cell, "|", "/")
	cell = strings.ReplaceAll(cell, "\n", " ")
	cell = strings.TrimSpace(cell)
	if cell == "" {
		// An empty cell would change the line's token count and get the
		// whole row dropped by downstream table parsing.
		return "None"
	}
	return cell
}

func renderCell(v any) string {
	if v == nil {
		return "None"
	}
	return fmt.Sprintf("%v", v)
}
