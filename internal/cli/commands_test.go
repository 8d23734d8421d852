package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeWithInput is execute with stdin set to input.
func executeWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(append([]string{"--config", "testdata/relir.yaml"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

// decodeResponse decodes a JSON CLI response, with Data decoded into data.
func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), "output: %s", out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

func TestCheckText(t *testing.T) {
	out, err := execute(t, "check", "testdata/join.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "\u2713 testdata/join.yaml is a valid")
	assert.Contains(t, out, "columns:     {a, b, c}")
	assert.Contains(t, out, "engines:     iteration")
	assert.NotContains(t, out, "doomed:")
}

func TestCheckJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "check", "testdata/join.yaml")
	require.NoError(t, err)

	var summary RelationSummary
	resp := decodeResponse(t, out, &summary)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"a", "b", "c"}, summary.Columns)
	assert.Equal(t, []string{"iteration"}, summary.Engines)
	assert.False(t, summary.Doomed)
}

func TestCheckID(t *testing.T) {
	checkID := func(path string) string {
		t.Helper()
		out, err := execute(t, "--format", "json", "check", path)
		require.NoError(t, err)
		var summary RelationSummary
		decodeResponse(t, out, &summary)
		return summary.ID
	}

	nested := checkID("testdata/nested.yaml")
	assert.Len(t, nested, 64)
	assert.NotEqual(t, nested, checkID("testdata/join.yaml"))

	path := filepath.Join(t.TempDir(), "simplified.yaml")
	_, err := execute(t, "simplify", "testdata/nested.yaml", "-o", path)
	require.NoError(t, err)
	assert.Equal(t, nested, checkID(path))

	out, err := execute(t, "check", "testdata/nested.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "id:          "+nested)
}

func TestCheckStdin(t *testing.T) {
	doc, err := os.ReadFile("testdata/nested.yaml")
	require.NoError(t, err)

	out, err := executeWithInput(t, string(doc), "check", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "\u2713 - is a valid leaf")
}

func TestCheckDoomed(t *testing.T) {
	out, err := execute(t, "check", "testdata/doomed.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "is a valid union")
	assert.Contains(t, out, "doomed:")
	assert.Contains(t, out, "table gone was dropped")
}

func TestCheckErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode string
		wantExit int
	}{
		{"missing column", []string{"check", "testdata/invalid.yaml"}, ErrCodeColumn, ExitFailure},
		{"missing file", []string{"check", "testdata/nope.yaml"}, ErrCodeNotFound, ExitCommandError},
		{"mixed engines", []string{"check", "testdata/mixed.yaml"}, ErrCodeEngine, ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.wantCode+"]")

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.True(t, exitErr.Reported)
		})
	}
}

func TestCheckErrorJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "check", "testdata/invalid.yaml")
	require.Error(t, err)

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeColumn, resp.Error.Code)
}

func TestCheckMixed(t *testing.T) {
	out, err := execute(t, "check", "--mixed", "testdata/mixed.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "is a valid")
}

func TestSimplifyDiff(t *testing.T) {
	out, err := execute(t, "simplify", "--diff", "testdata/nested.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "--- testdata/nested.yaml")
	assert.Contains(t, out, "+++ simplified")
	assert.Contains(t, out, "-type: projection")
	assert.Contains(t, out, "+type: leaf")
}

func TestSimplifyRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simplified.yaml")

	_, err := execute(t, "simplify", "testdata/nested.yaml", "-o", path)
	require.NoError(t, err)
	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(written), "type: leaf")

	out, err := execute(t, "simplify", "--diff", path)
	require.NoError(t, err)
	assert.Contains(t, out, "\u2713 already in canonical form")
}

func TestSimplifyJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "simplify", "testdata/nested.yaml")
	require.NoError(t, err)

	var result SimplifyResult
	decodeResponse(t, out, &result)
	assert.True(t, result.Changed)
	assert.Equal(t, "leaf", result.Document["type"])
	assert.NotEmpty(t, result.Diff)
}

func TestSimplifyRoute(t *testing.T) {
	out, err := execute(t, "simplify", "--route", "iteration", "testdata/mixed.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "type: transfer")
	assert.Contains(t, out, "destination: iteration")
}

func TestSimplifyErrors(t *testing.T) {
	_, err := execute(t, "simplify", "--to", "toml", "testdata/nested.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err := execute(t, "simplify", "--route", "spark", "testdata/mixed.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `unknown engine "spark"`)
}

func TestDiagnose(t *testing.T) {
	out, err := execute(t, "diagnose", "testdata/join.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "\u2713 relation may have rows")
}

func TestDiagnoseDoomed(t *testing.T) {
	out, err := execute(t, "diagnose", "--pruned", "testdata/doomed.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "\u2717 relation is doomed")
	assert.Contains(t, out, "table gone was dropped")
	assert.Contains(t, out, "---\n")
	assert.Contains(t, out, "type: union")
}

func TestDiagnoseDoomedJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "diagnose", "testdata/doomed.yaml")
	require.Error(t, err)

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeDoomed, resp.Error.Code)
	details, ok := resp.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, details["doomed"])
}

func TestSQLText(t *testing.T) {
	out, err := execute(t, "sql", "testdata/sql_join.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, `FROM "r"`)
	assert.Contains(t, out, `"s"`)
	assert.Contains(t, out, "> ?")
	assert.Contains(t, out, "-- args: [1]")
}

func TestSQLJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "sql", "testdata/sql_join.yaml")
	require.NoError(t, err)

	var result SQLResult
	decodeResponse(t, out, &result)
	assert.True(t, strings.HasPrefix(result.SQL, "SELECT"))
	assert.Len(t, result.Args, 1)
}

func TestSQLRejectsIterationEngine(t *testing.T) {
	out, err := execute(t, "sql", "testdata/join.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeEngine+"]")
}

func TestGraph(t *testing.T) {
	out, err := execute(t, "graph", "testdata/join.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "digraph relation")
	assert.Contains(t, out, "leaf_0->join_0")
	assert.Contains(t, out, "leaf_1->join_0")
	assert.Contains(t, out, "record")
}

func TestGraphFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.dot")
	out, err := execute(t, "graph", "testdata/nested.yaml", "-o", path)
	require.NoError(t, err)
	assert.Empty(t, out)

	dot, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(dot), "leaf_0")
	assert.NotContains(t, string(dot), "projection_0")
}

func TestEscapeRecord(t *testing.T) {
	assert.Equal(t, `\{a\|b\}`, escapeRecord("{a|b}"))
	assert.Equal(t, `\<f0\> \"x\"`, escapeRecord(`<f0> "x"`))
}
