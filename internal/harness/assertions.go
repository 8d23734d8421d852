package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/relir/internal/iteration"
	"github.com/roach88/relir/internal/relation"
)

// AssertionError describes one failed expectation.
type AssertionError struct {
	Type     string // what was checked
	Engine   string // engine kind, empty when engine-independent
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Engine != "" {
		fmt.Fprintf(&buf, " (%s)", e.Engine)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s", e.Expected, e.Actual)
	return buf.String()
}

// errorKind classifies err by the taxonomy expectations use.
func errorKind(err error) string {
	switch {
	case relation.IsColumnError(err):
		return ErrorColumn
	case relation.IsEngineError(err):
		return ErrorEngine
	case relation.IsRelationalAlgebraError(err):
		return ErrorRelationalAlgebra
	case relation.IsSerializationError(err):
		return ErrorSerialization
	}
	return ""
}

func checkReadError(result *Result, expect Expect, err error) {
	if expect.Error == "" {
		result.AddError(fmt.Sprintf("read: %v", err))
		return
	}
	if kind := errorKind(err); kind != expect.Error {
		result.AddError((&AssertionError{
			Type:     "error",
			Expected: expect.Error + " error",
			Actual:   fmt.Sprintf("%q error: %v", kind, err),
		}).Error())
	}
}

// checkExpect compares a result with its expectations and returns one
// message per failure.
func checkExpect(result *Result, expect Expect) []string {
	var failures []string
	fail := func(e *AssertionError) { failures = append(failures, e.Error()) }

	if expect.Columns != nil {
		want := relation.Columns(expect.Columns...).Strings()
		if !slices.Equal(want, result.Columns) {
			fail(&AssertionError{Type: "columns", Expected: fmt.Sprint(want), Actual: fmt.Sprint(result.Columns)})
		}
	}
	if expect.UniqueKeys != nil {
		keys := make([]relation.UniqueKey, len(expect.UniqueKeys))
		for i, k := range expect.UniqueKeys {
			keys[i] = relation.Columns(k...)
		}
		var want [][]string
		for _, k := range relation.NewKeySet(keys...).Keys() {
			want = append(want, k.Strings())
		}
		if diff := cmp.Diff(want, result.UniqueKeys); diff != "" {
			fail(&AssertionError{Type: "unique_keys", Expected: fmt.Sprint(want), Actual: fmt.Sprint(result.UniqueKeys)})
		}
	}
	if expect.Doomed != result.Doomed {
		fail(&AssertionError{Type: "doomed", Expected: fmt.Sprint(expect.Doomed), Actual: fmt.Sprint(result.Doomed)})
	}
	text := strings.Join(result.Messages, "\n")
	for _, m := range expect.Messages {
		if !strings.Contains(text, m) {
			fail(&AssertionError{Type: "messages", Expected: fmt.Sprintf("diagnostics containing %q", m), Actual: text})
		}
	}

	want, err := expectedRows(expect.Rows, result.Columns)
	if err != nil {
		return append(failures, fmt.Sprintf("expect.rows: %v", err))
	}
	for _, kind := range []string{KindIteration, KindSQL} {
		got, ok := result.Rows[kind]
		if !ok {
			// Execution failed and was reported already.
			continue
		}
		if diff := cmp.Diff(want, got); diff != "" {
			fail(&AssertionError{Type: "rows", Engine: kind, Expected: fmt.Sprint(want), Actual: "(-want +got)\n" + diff})
		}
	}
	return failures
}

// expectedRows normalizes rows from YAML the way engines return them.
func expectedRows(rows []map[string]any, columns []string) ([]map[string]any, error) {
	rs, err := iteration.NewRows(rows...)
	if err != nil {
		return nil, err
	}
	return rs.Sorted(relation.Columns(columns...)).Plain(), nil
}
