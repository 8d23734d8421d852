package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relir/internal/relation"
)

func TestPushPredicatesIntoJoin(t *testing.T) {
	a := leaf(t, "a", mem, "x", "y")
	b := leaf(t, "b", mem, "y", "z")
	j := must(t)(relation.NewJoin(mem, []relation.Relation{a, b}, nil))
	px := pred(t, "px", []string{"x"}, mem)
	py := pred(t, "py", []string{"y"}, mem)
	pxz := pred(t, "pxz", []string{"x", "z"}, mem)

	got, err := PushPredicates(j, []relation.Predicate{px, py, pxz}, false)
	require.NoError(t, err)

	top, ok := got.(*relation.Selection)
	require.True(t, ok, "got %s", got)
	assert.Equal(t, []relation.Predicate{pxz}, top.Predicates())
	join, ok := top.Base().(*relation.Join)
	require.True(t, ok)

	byLeaf := map[string][]relation.Predicate{}
	for _, m := range join.Relations() {
		s, ok := m.(*relation.Selection)
		require.True(t, ok, "member %s", m)
		byLeaf[s.Base().String()] = s.Predicates()
	}
	assert.ElementsMatch(t, []relation.Predicate{px, py}, byLeaf["a"])
	assert.Equal(t, []relation.Predicate{py}, byLeaf["b"])
}

func TestPushPredicatesStopsAtSingleEngine(t *testing.T) {
	a := leaf(t, "a", mem, "x", "y")
	b := leaf(t, "b", mem, "y", "z")
	j := must(t)(relation.NewJoin(mem, []relation.Relation{a, b}, nil))

	got, err := PushPredicates(j, []relation.Predicate{pred(t, "px", []string{"x"}, mem)}, true)
	require.NoError(t, err)
	s, ok := got.(*relation.Selection)
	require.True(t, ok)
	assert.Same(t, j, s.Base())
}

func TestPushPredicatesBarriers(t *testing.T) {
	a := leaf(t, "a", mem, "x", "y")
	px := pred(t, "px", []string{"x"}, mem)

	tests := []struct {
		name string
		base relation.Relation
	}{
		{"slice", must(t)(relation.NewSlice(a, []relation.OrderByTerm{term(t, "by", []string{"y"}, mem)}, 0, 2))},
		{"materialization", must(t)(relation.NewMaterialization(a, "m"))},
		{"leaf", a},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PushPredicates(tt.base, []relation.Predicate{px}, false)
			require.NoError(t, err)
			s, ok := got.(*relation.Selection)
			require.True(t, ok)
			assert.Same(t, tt.base, s.Base())
		})
	}
}

func TestPushPredicatesThroughTransfer(t *testing.T) {
	a := leaf(t, "a", sql, "x", "y")
	tr := must(t)(relation.NewTransfer(a, mem))

	t.Run("below when the source engine supports it", func(t *testing.T) {
		got, err := PushPredicates(tr, []relation.Predicate{pred(t, "p", []string{"x"}, sql, mem)}, false)
		require.NoError(t, err)
		transfer, ok := got.(*relation.Transfer)
		require.True(t, ok)
		s, ok := transfer.Base().(*relation.Selection)
		require.True(t, ok)
		assert.Same(t, a, s.Base())
	})

	t.Run("above otherwise", func(t *testing.T) {
		got, err := PushPredicates(tr, []relation.Predicate{pred(t, "p", []string{"x"}, mem)}, false)
		require.NoError(t, err)
		s, ok := got.(*relation.Selection)
		require.True(t, ok)
		assert.Same(t, tr, s.Base())
	})

	t.Run("stops at a single engine", func(t *testing.T) {
		got, err := PushPredicates(tr, []relation.Predicate{pred(t, "p", []string{"x"}, sql)}, true)
		require.NoError(t, err)
		transfer, ok := got.(*relation.Transfer)
		require.True(t, ok)
		_, ok = transfer.Base().(*relation.Selection)
		assert.True(t, ok)
	})
}

func TestPushPredicatesAroundCalculation(t *testing.T) {
	a := leaf(t, "a", mem, "x", "y")
	c := must(t)(relation.NewCalculation(a, "w", calc{cols: relation.Columns("x"), state: supportedBy(mem)}))
	px := pred(t, "px", []string{"x"}, mem)
	pw := pred(t, "pw", []string{"w"}, mem)

	got, err := PushPredicates(c, []relation.Predicate{px, pw}, false)
	require.NoError(t, err)

	top, ok := got.(*relation.Selection)
	require.True(t, ok)
	assert.Equal(t, []relation.Predicate{pw}, top.Predicates())
	calculation, ok := top.Base().(*relation.Calculation)
	require.True(t, ok)
	below, ok := calculation.Base().(*relation.Selection)
	require.True(t, ok)
	assert.Equal(t, []relation.Predicate{px}, below.Predicates())
}

func TestPushPredicatesIntoUnionAndThroughProjection(t *testing.T) {
	a := leaf(t, "a", mem, "x", "y")
	b := leaf(t, "b", mem, "x", "y")
	u := must(t)(relation.NewUnion(mem, relation.Columns("x", "y"), []relation.Relation{a, b}, relation.KeySet{}, nil))
	p := must(t)(relation.NewProjection(u, relation.Columns("x")))
	px := pred(t, "px", []string{"x"}, mem)

	got, err := PushPredicates(p, []relation.Predicate{px}, false)
	require.NoError(t, err)

	proj, ok := got.(*relation.Projection)
	require.True(t, ok)
	union, ok := proj.Base().(*relation.Union)
	require.True(t, ok)
	for _, m := range union.Relations() {
		s, ok := m.(*relation.Selection)
		require.True(t, ok)
		assert.Equal(t, []relation.Predicate{px}, s.Predicates())
	}
}

func TestPushPredicatesErrors(t *testing.T) {
	a := leaf(t, "a", mem, "x", "y")

	_, err := PushPredicates(a, []relation.Predicate{pred(t, "pq", []string{"q"}, mem)}, false)
	assert.True(t, relation.IsColumnError(err), "got %v", err)

	_, err = PushPredicates(a, []relation.Predicate{pred(t, "nowhere", []string{"x"})}, false)
	assert.True(t, relation.IsEngineError(err), "got %v", err)

	got, err := PushPredicates(a, nil, false)
	require.NoError(t, err)
	assert.Same(t, a, got)
}
