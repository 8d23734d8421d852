package relation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustLeaf(t *testing.T, name string, engine Engine, cols ColumnSet, opts ...LeafOption) *Leaf {
	t.Helper()
	l, err := NewLeaf(name, engine, cols, opts...)
	require.NoError(t, err)
	return l
}

func supportedBy(engines ...Engine) *EngineState {
	state := NewEngineState()
	for _, e := range engines {
		state = state.With(e, nil)
	}
	return state
}

func pred(t *testing.T, name string, cols ColumnSet, engines ...Engine) Predicate {
	t.Helper()
	p, err := NewPredicate(name, cols, nil, supportedBy(engines...))
	require.NoError(t, err)
	return p
}

func term(t *testing.T, name string, cols ColumnSet, engines ...Engine) OrderByTerm {
	t.Helper()
	o, err := NewOrderByTerm(name, cols, true, nil, supportedBy(engines...))
	require.NoError(t, err)
	return o
}

func cond(t *testing.T, name string, lhs, rhs ColumnSet, engines ...Engine) *JoinCondition {
	t.Helper()
	c, err := NewJoinCondition(name, lhs, rhs, nil, supportedBy(engines...))
	require.NoError(t, err)
	return c
}

// must unwraps a factory result: must(t)(NewJoin(...)).
func must(t *testing.T) func(Relation, error) Relation {
	return func(r Relation, err error) Relation {
		t.Helper()
		require.NoError(t, err)
		return r
	}
}

// testExpr is an Expression with a fixed column requirement.
type testExpr struct {
	cols    ColumnSet
	engines *EngineState
}

func (e testExpr) String() string                    { return "f" + e.cols.String() }
func (e testExpr) ColumnsRequired() ColumnSet        { return e.cols }
func (e testExpr) SupportsEngine(engine Engine) bool { return e.engines.Supports(engine) }

func (e testExpr) Serialize(Writer) (map[string]any, error) {
	return map[string]any{"type": "test"}, nil
}

// renameOp is an ExtensionOp that tags every column with a suffix.
type renameOp struct {
	base   Relation
	suffix string
}

func (o *renameOp) Name() string   { return "rename" }
func (o *renameOp) Base() Relation { return o.base }
func (o *renameOp) Columns() ColumnSet {
	var tags []ColumnTag
	for _, c := range o.base.Columns().Tags() {
		tags = append(tags, c+ColumnTag(o.suffix))
	}
	return NewColumnSet(tags...)
}
func (o *renameOp) UniqueKeys() KeySet         { return KeySet{} }
func (o *renameOp) SupportsEngine(Engine) bool { return true }
func (o *renameOp) String() string             { return "rename(" + o.base.String() + ")" }
func (o *renameOp) Rebased(base Relation) (ExtensionOp, error) {
	return &renameOp{base: base, suffix: o.suffix}, nil
}
func (o *renameOp) Serialize(Writer) (map[string]any, error) {
	return map[string]any{"suffix": o.suffix}, nil
}

type fixedNames struct{ next int }

func (f *fixedNames) Generate() string {
	f.next++
	return "m" + string(rune('0'+f.next))
}
