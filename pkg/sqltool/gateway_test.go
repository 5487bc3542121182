package sqltool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	gotSQL  string
	text    string
	isError bool
	err     error
}

func (f *fakeExecutor) Execute(ctx context.Context, sql string) (string, bool, error) {
	f.gotSQL = sql
	return f.text, f.isError, f.err
}

func TestGateway_StripsTrailingSemicolon(t *testing.T) {
	exec := &fakeExecutor{text: "id | name\n---|---\n1 | A\n"}
	g := NewGateway(exec)

	out := g.Execute(context.Background(), "  SELECT * FROM restaurants;  ")
	assert.Equal(t, "SELECT * FROM restaurants", exec.gotSQL)
	require.Equal(t, StatusSuccess, out.Status)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, "A", out.Rows[0]["name"])
}

func TestGateway_RejectsMutations(t *testing.T) {
	g := NewGateway(&fakeExecutor{})

	for _, sql := range []string{
		"DELETE FROM restaurants",
		"DROP TABLE menus",
		"INSERT INTO restaurants VALUES (1)",
		"SELECT 1; UPDATE restaurants SET name = 'x'",
	} {
		out := g.Execute(context.Background(), sql)
		assert.Equal(t, StatusFailure, out.Status, "expected rejection for %q", sql)
		assert.Contains(t, out.Reason, "not allowed")
	}
}

func TestGateway_EmptyResult(t *testing.T) {
	g := NewGateway(&fakeExecutor{text: "   "})
	out := g.Execute(context.Background(), "SELECT * FROM restaurants WHERE id = 999")
	assert.Equal(t, StatusEmpty, out.Status)
	assert.Empty(t, out.Rows)
}

func TestGateway_SQLError(t *testing.T) {
	g := NewGateway(&fakeExecutor{text: "no such table: vegetables", isError: true})
	out := g.Execute(context.Background(), "SELECT * FROM vegetables")
	assert.Equal(t, StatusFailure, out.Status)
	assert.Equal(t, "no such table: vegetables", out.Reason)
}

func TestGateway_InfrastructureError(t *testing.T) {
	g := NewGateway(&fakeExecutor{err: errors.New("database is locked")})
	out := g.Execute(context.Background(), "SELECT 1")
	assert.Equal(t, StatusFailure, out.Status)
	assert.Equal(t, "database is locked", out.Reason)
}

func TestGateway_EmptyStatement(t *testing.T) {
	g := NewGateway(&fakeExecutor{})
	out := g.Execute(context.Background(), " ; ")
	assert.Equal(t, StatusFailure, out.Status)
}
