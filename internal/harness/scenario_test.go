package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "join_selection.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "join_selection", s.Name)
	assert.Equal(t, DefaultEngineName, s.EngineName())
	require.Len(t, s.Leaves, 2)
	assert.Equal(t, []string{"a", "b"}, s.Leaves[0].Columns)
	assert.Equal(t, [][]string{{"a"}}, s.Leaves[0].UniqueKeys)
	assert.Equal(t, "selection", s.Relation["type"])
	assert.Equal(t, []string{"a", "b", "c"}, s.Expect.Columns)
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenarioErrors(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		contains string
	}{
		{
			name:     "unknown field",
			yaml:     "name: x\ndescription: d\nrelation: {type: leaf}\nassertions: []\n",
			contains: "failed to parse YAML",
		},
		{
			name:     "missing name",
			yaml:     "description: d\nrelation: {type: leaf}\n",
			contains: "name is required",
		},
		{
			name:     "missing description",
			yaml:     "name: x\nrelation: {type: leaf}\n",
			contains: "description is required",
		},
		{
			name:     "missing relation",
			yaml:     "name: x\ndescription: d\n",
			contains: "relation is required",
		},
		{
			name:     "duplicate leaf",
			yaml:     "name: x\ndescription: d\nrelation: {type: leaf}\nleaves: [{name: r, columns: [a]}, {name: r, columns: [a]}]\n",
			contains: `duplicate leaf "r"`,
		},
		{
			name:     "row missing column",
			yaml:     "name: x\ndescription: d\nrelation: {type: leaf}\nleaves: [{name: r, columns: [a, b], rows: [{a: 1}]}]\n",
			contains: `missing column "b"`,
		},
		{
			name:     "row with extra column",
			yaml:     "name: x\ndescription: d\nrelation: {type: leaf}\nleaves: [{name: r, columns: [a], rows: [{a: 1, z: 2}]}]\n",
			contains: "has columns beyond",
		},
		{
			name:     "unknown error kind",
			yaml:     "name: x\ndescription: d\nrelation: {type: leaf}\nexpect: {error: syntax}\n",
			contains: `unknown error kind "syntax"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLoadScenariosSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b", "a"} {
		data := "name: " + name + "\ndescription: d\nrelation: {type: leaf}\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(data), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	scenarios, err := LoadScenarios(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "a", scenarios[0].Name)
	assert.Equal(t, "b", scenarios[1].Name)
}
