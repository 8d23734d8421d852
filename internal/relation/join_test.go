package relation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin_UnitIsIdentity(t *testing.T) {
	e := NewTag("mem")
	r := mustLeaf(t, "r", e, Columns("a"))

	got, err := JoinAll(MakeUnit(e), r)
	require.NoError(t, err)
	assert.Same(t, r, got)

	got, err = JoinAll(r, MakeUnit(e))
	require.NoError(t, err)
	assert.Same(t, r, got)

	unit := MakeUnit(e)
	assert.True(t, IsUnit(unit))
	assert.True(t, unit.Columns().IsEmpty())
	assert.True(t, unit.UniqueKeys().Equal(NewKeySet(ColumnSet{})))
	assert.Empty(t, unit.DoomedBy())
}

func TestJoin_Flattening(t *testing.T) {
	e := NewTag("mem")
	a := mustLeaf(t, "a", e, Columns("x", "y"))
	b := mustLeaf(t, "b", e, Columns("y", "z"))
	c := mustLeaf(t, "c", e, Columns("z", "w"))

	nested := must(t)(JoinAll(must(t)(JoinAll(a, b)), c))
	flat := must(t)(JoinAll(a, b, c))

	nj, ok := nested.(*Join)
	require.True(t, ok)
	fj := flat.(*Join)
	assert.Equal(t, fj.Relations(), nj.Relations())
	assert.True(t, nested.Columns().Equal(Columns("w", "x", "y", "z")))

	t.Run("engine that does not flatten keeps nesting", func(t *testing.T) {
		e := NewTag("pairwise", WithOptions(EngineOptions{PairwiseJoinsOnly: true}))
		a := mustLeaf(t, "a", e, Columns("x"))
		b := mustLeaf(t, "b", e, Columns("y"))
		c := mustLeaf(t, "c", e, Columns("z"))
		nested := must(t)(JoinAll(must(t)(JoinAll(a, b)), c)).(*Join)
		assert.Len(t, nested.Relations(), 2)

		_, err := JoinAll(a, b, c)
		assert.True(t, IsEngineError(err), "got %v", err)
	})
}

func TestJoin_EngineChecks(t *testing.T) {
	a, b := NewTag("a"), NewTag("b")
	la := mustLeaf(t, "la", a, Columns("x"))
	lb := mustLeaf(t, "lb", b, Columns("y"))

	_, err := NewJoin(a, []Relation{la, lb}, nil)
	assert.True(t, IsEngineError(err), "got %v", err)

	mixed, err := NewJoin(a, []Relation{la, lb}, nil, SkipEngineChecks())
	require.NoError(t, err)
	assert.Equal(t, "a(b)", mixed.Engine().String())
	assert.Equal(t, 2, mixed.Engine().Depth())
	assert.True(t, mixed.(*Join).EngineChecksSkipped())
}

func TestJoin_UniqueKeys(t *testing.T) {
	e := NewTag("mem")
	a := mustLeaf(t, "a", e, Columns("x", "y"), WithUniqueKeys(Columns("x"), Columns("y")))
	b := mustLeaf(t, "b", e, Columns("z"), WithUniqueKeys(Columns("z")))
	c := mustLeaf(t, "c", e, Columns("w"))

	ab := must(t)(JoinAll(a, b))
	assert.True(t, ab.UniqueKeys().Equal(NewKeySet(Columns("x", "z"), Columns("y", "z"))), ab.UniqueKeys().String())

	abc := must(t)(JoinAll(a, b, c))
	assert.True(t, abc.UniqueKeys().IsEmpty())
}

func TestJoin_Conditions(t *testing.T) {
	e := NewTag("mem")
	other := NewTag("other")
	a := mustLeaf(t, "a", e, Columns("x"))
	b := mustLeaf(t, "b", e, Columns("y"))

	t.Run("matching condition", func(t *testing.T) {
		j, err := NewJoin(e, []Relation{a, b}, []*JoinCondition{cond(t, "lt", Columns("x"), Columns("y"), e)})
		require.NoError(t, err)
		assert.Len(t, j.(*Join).Conditions(), 1)
		assert.Equal(t, "join(a, b; on lt({x}, {y}))", j.String())
	})

	t.Run("reversed member order still matches", func(t *testing.T) {
		_, err := NewJoin(e, []Relation{b, a}, []*JoinCondition{cond(t, "lt", Columns("x"), Columns("y"), e)})
		assert.NoError(t, err)
	})

	t.Run("unmatched condition", func(t *testing.T) {
		_, err := NewJoin(e, []Relation{a, b}, []*JoinCondition{cond(t, "lt", Columns("x"), Columns("q"), e)})
		assert.True(t, IsRelationalAlgebraError(err), "got %v", err)
	})

	t.Run("condition on a single relation", func(t *testing.T) {
		_, err := NewJoin(e, []Relation{a}, []*JoinCondition{cond(t, "lt", Columns("x"), Columns("x"), e)})
		assert.True(t, IsRelationalAlgebraError(err), "got %v", err)
	})

	t.Run("unsupported engine", func(t *testing.T) {
		_, err := NewJoin(e, []Relation{a, b}, []*JoinCondition{cond(t, "lt", Columns("x"), Columns("y"), other)})
		assert.True(t, IsEngineError(err), "got %v", err)
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		c := cond(t, "lt", Columns("x"), Columns("y"), e)
		j := must(t)(NewJoin(e, []Relation{a, b}, []*JoinCondition{c, c}))
		assert.Len(t, j.(*Join).Conditions(), 1)
	})
}

func TestJoinCondition_FlipAndMatch(t *testing.T) {
	e := NewTag("mem")
	c := cond(t, "lt", Columns("x"), Columns("y"), e)
	f := c.Flipped()
	assert.True(t, f.IsFlipped())
	assert.True(t, f.LHS().Equal(Columns("y")))
	assert.NotEqual(t, c.Key(), f.Key())
	assert.Equal(t, c.Key(), f.Flipped().Key())
	assert.True(t, f.SupportsEngine(e))

	matches := FindMatching(Columns("y"), Columns("x"), []*JoinCondition{c})
	require.Len(t, matches, 1)
	assert.True(t, matches[0].IsFlipped())
	assert.Empty(t, FindMatching(Columns("z"), Columns("x"), []*JoinCondition{c}))
}

func TestJoin_DoomedMember(t *testing.T) {
	e := NewTag("mem")
	a := mustLeaf(t, "a", e, Columns("x"))
	b := mustLeaf(t, "b", e, Columns("y"), WithDoomedBy("b is empty"))

	j, err := JoinAll(a, b)
	require.NoError(t, err)
	assert.True(t, IsZero(j))
	assert.Equal(t, []string{"b is empty"}, j.DoomedBy())
	assert.True(t, j.Columns().Equal(Columns("x", "y")))
}

func TestJoin_Idempotent(t *testing.T) {
	e := NewTag("mem")
	a := mustLeaf(t, "a", e, Columns("x"))
	b := mustLeaf(t, "b", e, Columns("y"))
	j := must(t)(JoinAll(a, b))

	again, err := j.CheckedAndSimplified(true)
	require.NoError(t, err)
	assert.Same(t, j, again)

	_, err = AssertCheckedAndSimplified(j, true)
	assert.NoError(t, err)
}

func TestAssertCheckedAndSimplified_Rejects(t *testing.T) {
	e := NewTag("mem")
	a := mustLeaf(t, "a", e, Columns("x"))
	unsimplified := newJoin(e, []Relation{a}, nil, buildOptions{})

	_, err := AssertCheckedAndSimplified(unsimplified, false)
	assert.True(t, IsRelationalAlgebraError(err), "got %v", err)
}
