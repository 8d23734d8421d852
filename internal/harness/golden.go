package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/relir/internal/value"
)

// Snapshot is the part of a Result that golden files record.
type Snapshot struct {
	ScenarioName string
	Result       *Result
}

// toCanonicalMap converts the snapshot into the plain values canonical JSON
// accepts. Rows come from the iteration engine; the SQL engine was already
// checked against the same expectation.
func (s *Snapshot) toCanonicalMap() map[string]any {
	r := s.Result
	out := map[string]any{
		"scenario_name": s.ScenarioName,
		"pass":          r.Pass,
		"doomed":        r.Doomed,
		"columns":       stringList(r.Columns),
	}
	keys := make([]any, len(r.UniqueKeys))
	for i, k := range r.UniqueKeys {
		keys[i] = stringList(k)
	}
	out["unique_keys"] = keys
	if len(r.Messages) > 0 {
		out["messages"] = stringList(r.Messages)
	}
	if r.ReadError != "" {
		out["read_error"] = r.ReadError
	}
	if rows, ok := r.Rows[KindIteration]; ok {
		list := make([]any, len(rows))
		for i, row := range rows {
			list[i] = row
		}
		out["rows"] = list
	}
	if r.SQL != "" {
		out["sql"] = r.SQL
		args := make([]any, len(r.SQLArgs))
		copy(args, r.SQLArgs)
		out["sql_args"] = args
	}
	if len(r.Errors) > 0 {
		out["errors"] = stringList(r.Errors)
	}
	return out
}

func stringList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()
	result, err := New().Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()
	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}

// MarshalSnapshot renders the golden file contents for a result:
// canonical JSON followed by a newline.
func MarshalSnapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := Snapshot{ScenarioName: scenarioName, Result: result}
	data, err := value.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
