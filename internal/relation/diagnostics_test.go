package relation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kindVisitor struct{}

func (kindVisitor) VisitLeaf(*Leaf) (string, error)             { return "leaf", nil }
func (kindVisitor) VisitJoin(*Join) (string, error)             { return "join", nil }
func (kindVisitor) VisitUnion(*Union) (string, error)           { return "union", nil }
func (kindVisitor) VisitProjection(*Projection) (string, error) { return "projection", nil }
func (kindVisitor) VisitSelection(*Selection) (string, error)   { return "selection", nil }
func (kindVisitor) VisitDistinct(*Distinct) (string, error)     { return "distinct", nil }
func (kindVisitor) VisitSlice(*Slice) (string, error)           { return "slice", nil }
func (kindVisitor) VisitTransfer(*Transfer) (string, error)     { return "transfer", nil }

func (kindVisitor) VisitMaterialization(*Materialization) (string, error) {
	return "materialization", nil
}

func (kindVisitor) VisitCalculation(*Calculation) (string, error) { return "calculation", nil }
func (kindVisitor) VisitExtension(*Extension) (string, error)     { return "extension", nil }

func TestVisit_DispatchesByKind(t *testing.T) {
	e, other := NewTag("mem"), NewTag("other")
	leaf := mustLeaf(t, "t", e, Columns("a", "b"))
	byA := term(t, "a", Columns("a"), e)

	tests := []struct {
		rel  Relation
		want string
	}{
		{leaf, "leaf"},
		{MakeUnit(e), "join"},
		{MakeZero(e, Columns("a")), "union"},
		{must(t)(NewProjection(leaf, Columns("a"))), "projection"},
		{must(t)(NewSelection(leaf, []Predicate{pred(t, "p", Columns("a"), e)})), "selection"},
		{must(t)(NewDistinct(leaf, KeySet{})), "distinct"},
		{must(t)(NewSlice(leaf, []OrderByTerm{byA}, 0, 1)), "slice"},
		{must(t)(NewTransfer(leaf, other)), "transfer"},
		{must(t)(NewMaterialization(leaf, "m")), "materialization"},
		{must(t)(NewCalculation(leaf, "c", testExpr{engines: supportedBy(e)})), "calculation"},
		{must(t)(NewExtension(&renameOp{base: leaf, suffix: "_x"})), "extension"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := Visit[string](tt.rel, kindVisitor{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiagnose_NotDoomed(t *testing.T) {
	e := NewTag("mem")
	leaf := mustLeaf(t, "t", e, Columns("a"))
	p := must(t)(NewProjection(must(t)(JoinAll(leaf, mustLeaf(t, "u", e, Columns("b")))), Columns("a")))

	d, err := Diagnose(p)
	require.NoError(t, err)
	assert.False(t, d.IsDoomed)
	assert.Empty(t, d.Messages)
	assert.Same(t, p, d.Relation)
}

func TestDiagnose_UnaryOverDoomed(t *testing.T) {
	e := NewTag("mem")
	zero := MakeZero(e, Columns("a", "b"), "no rows match")
	p := must(t)(NewProjection(zero, Columns("a")))
	m := must(t)(NewMaterialization(p, "cache"))

	d, err := Diagnose(m)
	require.NoError(t, err)
	assert.True(t, d.IsDoomed)
	assert.Equal(t, []string{
		`Materialization (with name "cache") is doomed because:`,
		"  Projection (to columns {a}) is doomed because:",
		"    no rows match",
	}, d.Messages)
	assert.True(t, IsZero(d.Relation))
	assert.ElementsMatch(t, d.Messages, d.Relation.DoomedBy())
}

func TestDiagnose_Slice(t *testing.T) {
	e := NewTag("mem")
	leaf := mustLeaf(t, "t", e, Columns("a"))
	s := must(t)(NewSlice(leaf, []OrderByTerm{term(t, "a", Columns("a"), e)}, 2, 0))

	d, err := Diagnose(s)
	require.NoError(t, err)
	assert.True(t, d.IsDoomed)
	assert.Equal(t, []string{"Slice (ordered by [a(a)], offset=2, limit=0) is doomed because its limit is zero."}, d.Messages)
}

func TestDiagnose_UnionCollapses(t *testing.T) {
	e := NewTag("mem")
	cols := Columns("a")
	live := mustLeaf(t, "live", e, cols)
	dead := mustLeaf(t, "dead", e, cols, WithDoomedBy("dead is empty"))

	// Build without simplification so the doomed member is still present.
	raw := newUnion(e, cols, []Relation{dead, live}, KeySet{}, nil, buildOptions{})
	d, err := Diagnose(raw)
	require.NoError(t, err)
	assert.False(t, d.IsDoomed)
	assert.Same(t, live, d.Relation)
	assert.Equal(t, []string{
		"Union (with unique keys {}) collapses to the RHS because the LHS is doomed:",
		"  dead is empty",
	}, d.Messages)

	raw = newUnion(e, cols, []Relation{live, dead}, KeySet{}, nil, buildOptions{})
	d, err = Diagnose(raw)
	require.NoError(t, err)
	assert.Equal(t, "Union (with unique keys {}) collapses to the LHS because the RHS is doomed:", d.Messages[0])

	raw = newUnion(e, cols, []Relation{dead, dead}, KeySet{}, nil, buildOptions{})
	d, err = Diagnose(raw)
	require.NoError(t, err)
	assert.True(t, d.IsDoomed)
	assert.Equal(t, "Union (with unique keys {}) is doomed because both operands are doomed:", d.Messages[0])
}

func TestDiagnose_UnionKeepsContributions(t *testing.T) {
	e := NewTag("mem")
	cols := Columns("a")
	a := mustLeaf(t, "a", e, cols)
	b := mustLeaf(t, "b", e, cols)
	dead := mustLeaf(t, "dead", e, cols, WithDoomedBy("dead is empty"))

	u := must(t)(UnionAll(a, dead, b))
	d, err := Diagnose(u)
	require.NoError(t, err)
	assert.False(t, d.IsDoomed)
	assert.Same(t, u, d.Relation)
	assert.Equal(t, []string{
		"Union (with unique keys {}) is not doomed, but some contributions were:",
		"  dead is empty",
	}, d.Messages)
}

func TestDiagnose_Join(t *testing.T) {
	e := NewTag("mem")
	a := mustLeaf(t, "a", e, Columns("x"))
	dead := mustLeaf(t, "dead", e, Columns("y"), WithDoomedBy("dead is empty"))

	raw := newJoin(e, []Relation{a, dead}, nil, buildOptions{})
	d, err := Diagnose(raw)
	require.NoError(t, err)
	assert.True(t, d.IsDoomed)
	assert.Equal(t, []string{
		"Join (on conditions {}) is doomed because the RHS operand is doomed:",
		"  dead is empty",
	}, d.Messages)
	assert.True(t, d.Relation.Columns().Equal(Columns("x", "y")))

	c := mustLeaf(t, "c", e, Columns("z"))
	raw = newJoin(e, []Relation{a, dead, c}, nil, buildOptions{})
	d, err = Diagnose(raw)
	require.NoError(t, err)
	assert.Equal(t, "Join (on conditions {}) is doomed because operand 1 is doomed:", d.Messages[0])
}
