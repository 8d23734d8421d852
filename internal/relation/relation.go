package relation

import (
	"slices"
)

// Relation is a node in a relational algebra tree. Implementations are
// immutable once built; the set of node kinds is closed, with Extension as
// the escape hatch for custom operations.
type Relation interface {
	// Engine reports where the relation is evaluated.
	Engine() *EngineTree
	// Columns is the relation's schema.
	Columns() ColumnSet
	// UniqueKeys lists column sets known to identify rows. Empty means no
	// uniqueness guarantee.
	UniqueKeys() KeySet
	// DoomedBy explains why the relation is known to have no rows. Empty
	// means it may have rows.
	DoomedBy() []string
	// CheckedAndSimplified validates the node and returns its canonical
	// form. A node already in canonical form returns itself.
	CheckedAndSimplified(recursive bool) (Relation, error)
	String() string

	accept(d dispatcher)
}

// UnaryOperation is a relation computed from a single base relation.
type UnaryOperation interface {
	Relation
	Base() Relation
	// Rebased builds the same operation on top of a different base, checking
	// and simplifying the result non-recursively.
	Rebased(base Relation) (Relation, error)
}

// Writer converts the building blocks of a relation into plain data.
// Serialization packages implement it; nodes, predicates and extensions
// call it from their Serialize methods.
type Writer interface {
	WriteColumn(tag ColumnTag) any
	WriteColumns(cols ColumnSet) []any
	WriteUniqueKeys(keys KeySet) []any
	WriteEngine(engine Engine) any
}

// BuildOption tweaks how factories check the nodes they build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	skipEngineChecks bool
	names            NameGenerator
}

// SkipEngineChecks disables engine-consistency checks so that a tree
// spanning several engines can be built before transfers are inserted.
func SkipEngineChecks() BuildOption {
	return func(o *buildOptions) { o.skipEngineChecks = true }
}

// WithNameGenerator sets the generator used to name materializations that
// were not given a name.
func WithNameGenerator(g NameGenerator) BuildOption {
	return func(o *buildOptions) { o.names = g }
}

func applyBuildOptions(opts []BuildOption) buildOptions {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// AssertCheckedAndSimplified returns r if it is already in canonical form,
// and a RelationalAlgebraError otherwise.
func AssertCheckedAndSimplified(r Relation, recursive bool) (Relation, error) {
	s, err := r.CheckedAndSimplified(recursive)
	if err != nil {
		return nil, err
	}
	if s != r {
		return nil, newAlgebraError("relation %s is not simplified; it simplifies to %s", r, s)
	}
	return r, nil
}

// MakeUnit returns the relation with no columns and exactly one row. Joining
// with it is a no-op.
func MakeUnit(engine Engine) Relation {
	return newJoin(engine, nil, nil, buildOptions{})
}

// MakeZero returns a relation with the given columns and no rows, doomed by
// messages. Unioning with it is a no-op.
func MakeZero(engine Engine, columns ColumnSet, messages ...string) Relation {
	return newUnion(engine, columns, nil, KeySet{}, messages, buildOptions{})
}

// IsUnit reports whether r is a zero-member join.
func IsUnit(r Relation) bool {
	j, ok := r.(*Join)
	return ok && len(j.relations) == 0
}

// IsZero reports whether r is a zero-member union.
func IsZero(r Relation) bool {
	u, ok := r.(*Union)
	return ok && len(u.relations) == 0
}

// JoinAll joins relations in the engine of the first one, with no
// conditions.
func JoinAll(first Relation, rest ...Relation) (Relation, error) {
	return NewJoin(first.Engine().Destination(), append([]Relation{first}, rest...), nil)
}

// UnionAll unions relations with matching columns in the engine of the
// first one, declaring no unique keys.
func UnionAll(first Relation, rest ...Relation) (Relation, error) {
	return NewUnion(first.Engine().Destination(), first.Columns(), append([]Relation{first}, rest...), KeySet{}, nil)
}

// sortedMessages merges message lists into a sorted, duplicate-free list.
func sortedMessages(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func simplifyBase(base Relation, recursive bool) (Relation, error) {
	if !recursive {
		return base, nil
	}
	return base.CheckedAndSimplified(true)
}

func simplifyMembers(members []Relation, recursive bool) ([]Relation, bool, error) {
	if !recursive {
		return members, false, nil
	}
	out := make([]Relation, len(members))
	changed := false
	for i, m := range members {
		s, err := m.CheckedAndSimplified(true)
		if err != nil {
			return nil, false, err
		}
		out[i] = s
		changed = changed || s != m
	}
	return out, changed, nil
}
