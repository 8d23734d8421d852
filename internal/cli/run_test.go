package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relir/internal/store"
	"github.com/roach88/relir/internal/value"
)

// createDB writes the r and s fixture tables named in tables to a fresh
// database and returns its path.
func createDB(t *testing.T, tables ...string) string {
	t.Helper()
	fixtures := map[string]struct {
		table store.Table
		rows  []map[string]value.Value
	}{
		"r": {
			table: store.Table{Name: "r", Columns: []string{"a", "b"}, UniqueKeys: [][]string{{"a"}}},
			rows: []map[string]value.Value{
				{"a": value.Int(1), "b": value.String("x")},
				{"a": value.Int(2), "b": value.String("y")},
				{"a": value.Int(3), "b": value.String("z")},
			},
		},
		"s": {
			table: store.Table{Name: "s", Columns: []string{"b", "c"}, UniqueKeys: [][]string{{"b"}}},
			rows: []map[string]value.Value{
				{"b": value.String("x"), "c": value.Int(10)},
				{"b": value.String("y"), "c": value.Int(20)},
				{"b": value.String("w"), "c": value.Int(30)},
			},
		},
	}

	path := filepath.Join(t.TempDir(), "relir.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	for _, name := range tables {
		f, ok := fixtures[name]
		require.True(t, ok, "no fixture %s", name)
		require.NoError(t, st.CreateTable(ctx, f.table))
		require.NoError(t, st.InsertRows(ctx, name, f.rows))
	}
	return path
}

var joinRows = []map[string]any{{"a": float64(2), "b": "y", "c": float64(20)}}

func TestRunIterationText(t *testing.T) {
	out, err := execute(t, "run", "testdata/join.yaml")
	require.NoError(t, err)
	assert.Regexp(t, `\|\s*a\s*\|\s*b\s*\|\s*c\s*\|`, out)
	assert.Regexp(t, `\|\s*2\s*\|\s*y\s*\|\s*20\s*\|`, out)
	assert.Contains(t, out, "1 rows")
	assert.NotContains(t, out, `"y"`)
}

func TestRunIterationJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "run", "--sort", "testdata/join.yaml")
	require.NoError(t, err)

	var result RunResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "iteration", result.Engine)
	assert.Equal(t, []string{"a", "b", "c"}, result.Columns)
	assert.Equal(t, joinRows, result.Rows)
}

func TestRunSQL(t *testing.T) {
	db := createDB(t, "r", "s")

	out, err := execute(t, "--format", "json", "run", "--db", db, "testdata/sql_join.yaml")
	require.NoError(t, err)

	var result RunResult
	decodeResponse(t, out, &result)
	assert.Equal(t, "sql", result.Engine)
	assert.Equal(t, joinRows, result.Rows)
}

func TestRunSQLMissingTable(t *testing.T) {
	db := createDB(t, "r")

	out, err := execute(t, "run", "--db", db, "testdata/sql_join.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "invalid relation")
}

func TestRunMixed(t *testing.T) {
	db := createDB(t, "s")

	out, err := execute(t, "--format", "json", "run", "--mixed", "--engine", "iteration", "--db", db, "testdata/mixed.yaml")
	require.NoError(t, err)

	var result RunResult
	decodeResponse(t, out, &result)
	assert.Equal(t, "iteration", result.Engine)
	assert.Equal(t, joinRows, result.Rows)
}

func TestRunMixedWithoutDB(t *testing.T) {
	out, err := execute(t, "run", "--mixed", "testdata/mixed.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeConfig+"]")
	assert.Contains(t, out, "pass --db")
}

func TestRunDoomed(t *testing.T) {
	out, err := execute(t, "run", "testdata/doomed.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "0 rows")
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode string
		wantExit int
	}{
		{
			name:     "missing database",
			args:     []string{"run", "--db", filepath.Join(t.TempDir(), "nope.db"), "testdata/join.yaml"},
			wantCode: ErrCodeNotFound,
			wantExit: ExitCommandError,
		},
		{
			name:     "unknown engine",
			args:     []string{"run", "--engine", "spark", "testdata/join.yaml"},
			wantCode: ErrCodeConfig,
			wantExit: ExitCommandError,
		},
		{
			name:     "leaf without rows",
			args:     []string{"run", "testdata/no_rows.yaml"},
			wantCode: ErrCodeExecution,
			wantExit: ExitFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.wantCode+"]")
		})
	}
}
