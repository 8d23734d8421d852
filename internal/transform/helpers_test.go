package transform

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/relir/internal/relation"
)

var (
	mem = relation.NewTag("mem")
	sql = relation.NewTag("sql")
)

func leaf(t *testing.T, name string, engine relation.Engine, cols ...string) *relation.Leaf {
	t.Helper()
	l, err := relation.NewLeaf(name, engine, relation.Columns(cols...))
	require.NoError(t, err)
	return l
}

func supportedBy(engines ...relation.Engine) *relation.EngineState {
	state := relation.NewEngineState()
	for _, e := range engines {
		state = state.With(e, e.String())
	}
	return state
}

func pred(t *testing.T, name string, cols []string, engines ...relation.Engine) relation.Predicate {
	t.Helper()
	p, err := relation.NewPredicate(name, relation.Columns(cols...), nil, supportedBy(engines...))
	require.NoError(t, err)
	return p
}

func term(t *testing.T, name string, cols []string, engines ...relation.Engine) relation.OrderByTerm {
	t.Helper()
	o, err := relation.NewOrderByTerm(name, relation.Columns(cols...), true, nil, supportedBy(engines...))
	require.NoError(t, err)
	return o
}

func cond(t *testing.T, name string, lhs, rhs []string, engines ...relation.Engine) *relation.JoinCondition {
	t.Helper()
	c, err := relation.NewJoinCondition(name, relation.Columns(lhs...), relation.Columns(rhs...), nil, supportedBy(engines...))
	require.NoError(t, err)
	return c
}

// must unwraps a factory result: must(t)(relation.NewJoin(...)).
func must(t *testing.T) func(relation.Relation, error) relation.Relation {
	return func(r relation.Relation, err error) relation.Relation {
		t.Helper()
		require.NoError(t, err)
		return r
	}
}

// memberOfType returns the single member of members with type T.
func memberOfType[T relation.Relation](t *testing.T, members []relation.Relation) T {
	t.Helper()
	var found []T
	for _, m := range members {
		if typed, ok := m.(T); ok {
			found = append(found, typed)
		}
	}
	require.Len(t, found, 1)
	return found[0]
}

// calc is an Expression over fixed columns.
type calc struct {
	cols  relation.ColumnSet
	state *relation.EngineState
}

func (c calc) String() string                        { return "f" + c.cols.String() }
func (c calc) ColumnsRequired() relation.ColumnSet   { return c.cols }
func (c calc) SupportsEngine(e relation.Engine) bool { return c.state.Supports(e) }
func (c calc) Serialize(relation.Writer) (map[string]any, error) {
	return map[string]any{"type": "calc"}, nil
}
