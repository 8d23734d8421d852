package iteration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/value"
)

func TestBuiltins(t *testing.T) {
	fns := Builtins()
	null := value.Null{}

	tests := []struct {
		fn   string
		args []value.Value
		want value.Value
	}{
		{"eq", []value.Value{value.Int(1), value.Int(1)}, value.Bool(true)},
		{"ne", []value.Value{value.String("a"), value.String("b")}, value.Bool(true)},
		{"lt", []value.Value{value.Int(1), value.Float(1.5)}, value.Bool(true)},
		{"ge", []value.Value{value.Int(2), value.Int(3)}, value.Bool(false)},
		{"eq", []value.Value{null, null}, null},
		{"add", []value.Value{value.Int(2), value.Int(3)}, value.Int(5)},
		{"add", []value.Value{value.Int(2), value.Float(0.5)}, value.Float(2.5)},
		{"mul", []value.Value{value.Int(4), null}, null},
		{"div", []value.Value{value.Int(7), value.Int(2)}, value.Int(3)},
		{"div", []value.Value{value.Float(7), value.Int(2)}, value.Float(3.5)},
		{"neg", []value.Value{value.Int(4)}, value.Int(-4)},
		{"concat", []value.Value{value.String("ab"), value.String("cd")}, value.String("abcd")},
		{"lower", []value.Value{value.String("MiXeD")}, value.String("mixed")},
		{"upper", []value.Value{value.String("stra\u00dfe")}, value.String("STRASSE")},
	}
	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			got, err := fns[tt.fn](tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuiltinErrors(t *testing.T) {
	fns := Builtins()
	tests := []struct {
		fn   string
		args []value.Value
	}{
		{"div", []value.Value{value.Int(1), value.Int(0)}},
		{"add", []value.Value{value.String("a"), value.Int(1)}},
		{"eq", []value.Value{value.Int(1)}},
		{"concat", []value.Value{value.String("a"), value.Int(1)}},
		{"upper", []value.Value{value.Bool(true)}},
	}
	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			_, err := fns[tt.fn](tt.args)
			assert.Error(t, err)
		})
	}
}

func TestWithFunction(t *testing.T) {
	double := func(args []value.Value) (value.Value, error) { return args[0], nil }
	e := newEngine(t, "mem", WithFunction("double", double))

	_, ok := e.ColumnFunction("double")
	assert.True(t, ok)
	_, ok = e.ColumnFunction("add")
	assert.True(t, ok)
	_, ok = e.ColumnFunction("missing")
	assert.False(t, ok)
}

func TestRows(t *testing.T) {
	rows, err := NewRows(
		map[string]any{"a": 2, "b": "y"},
		map[string]any{"a": 1, "b": nil},
	)
	require.NoError(t, err)
	cols := relation.Columns("a", "b")

	assert.Equal(t, "a=1 b=null\na=2 b=\"y\"\n", rows.Sorted(cols).String(cols))
	assert.Equal(t, map[string]any{"a": int64(2)}, rows[0].Project(relation.Columns("a")).Plain())

	_, err = NewRow(map[string]any{"a": []int{1}})
	assert.Error(t, err)
}
