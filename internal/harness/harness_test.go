package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	scenarios, err := LoadScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestScenariosGolden(t *testing.T) {
	for _, name := range []string{"join_selection", "sliced_union"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRunRecordsBothEngines(t *testing.T) {
	s := mustParse(t, `
name: both
description: "rows come from both engines"
leaves:
  - name: r
    columns: [a]
    rows: [{a: 2}, {a: 1}]
relation: {type: leaf, name: r, engine: main, columns: [a]}
expect:
  rows: [{a: 1}, {a: 2}]
`)
	result, err := New().Run(context.Background(), s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	want := []map[string]any{{"a": int64(1)}, {"a": int64(2)}}
	assert.Equal(t, want, result.Rows[KindIteration])
	assert.Equal(t, want, result.Rows[KindSQL])
	assert.Equal(t, `SELECT (t0."a") AS "a" FROM "r" AS t0`, result.SQL)
}

func TestRunReportsFailures(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		contains string
	}{
		{
			name: "wrong rows",
			yaml: `
name: wrong_rows
description: "expects a row that is not there"
leaves:
  - {name: r, columns: [a], rows: [{a: 1}]}
relation: {type: leaf, name: r, engine: main, columns: [a]}
expect:
  rows: [{a: 5}]
`,
			contains: "Assertion failed: rows (iteration)",
		},
		{
			name: "wrong columns",
			yaml: `
name: wrong_columns
description: "expects other columns"
leaves:
  - {name: r, columns: [a]}
relation: {type: leaf, name: r, engine: main, columns: [a]}
expect:
  columns: [b]
`,
			contains: "Assertion failed: columns",
		},
		{
			name: "unexpected read error",
			yaml: `
name: bad_read
description: "reads a leaf without a fixture"
relation: {type: leaf, name: nowhere, engine: main, columns: [a]}
expect: {}
`,
			contains: "no fixture for leaf",
		},
		{
			name: "wrong error kind",
			yaml: `
name: wrong_kind
description: "expects an engine error but gets a column error"
leaves:
  - {name: r, columns: [a]}
relation:
  type: projection
  columns: [b]
  base: {type: leaf, name: r, engine: main, columns: [a]}
expect:
  error: engine
`,
			contains: "Assertion failed: error",
		},
		{
			name: "missing error",
			yaml: `
name: no_error
description: "expects an error that never comes"
leaves:
  - {name: r, columns: [a]}
relation: {type: leaf, name: r, engine: main, columns: [a]}
expect:
  error: serialization
`,
			contains: "expected a serialization error",
		},
		{
			name: "not doomed",
			yaml: `
name: not_doomed
description: "expects doom from a live leaf"
leaves:
  - {name: r, columns: [a]}
relation: {type: leaf, name: r, engine: main, columns: [a]}
expect:
  doomed: true
`,
			contains: "Assertion failed: doomed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(mustParse(t, tt.yaml))
			require.NoError(t, err)
			assert.False(t, result.Pass)
			require.NotEmpty(t, result.Errors)
			assert.Contains(t, result.Errors[0], tt.contains)
		})
	}
}

func TestRunFixtureColumnMismatch(t *testing.T) {
	s := mustParse(t, `
name: mismatch
description: "leaf columns differ from the fixture"
leaves:
  - {name: r, columns: [a, b]}
relation: {type: leaf, name: r, engine: main, columns: [a]}
expect: {}
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.ReadError, "fixture has")
}

func TestCustomEngineName(t *testing.T) {
	s := mustParse(t, `
name: custom
description: "documents may name the engine anything"
engine: warehouse
leaves:
  - {name: r, columns: [a], rows: [{a: 1}]}
relation: {type: leaf, name: r, engine: warehouse, columns: [a]}
expect:
  rows: [{a: 1}]
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func mustParse(t *testing.T, data string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(data))
	require.NoError(t, err)
	return s
}
