package relation

import (
	"slices"
	"strings"
)

// DefaultZeroMessage dooms a zero relation built without an explanation.
const DefaultZeroMessage = "relation is empty by construction"

// Union is the bag union of members sharing a set of columns. A union with
// no members is the zero relation: no rows.
type Union struct {
	engine        Engine
	columns       ColumnSet
	relations     []Relation
	uniqueKeys    KeySet
	extraDoomedBy []string
	opts          buildOptions
	tree          *EngineTree
}

// NewUnion builds a checked and simplified union. uniqueKeys are keys the
// caller asserts hold across all members, which requires the members to be
// disjoint on them. extraDoomedBy carries messages from members that were
// dropped for being doomed.
func NewUnion(engine Engine, columns ColumnSet, relations []Relation, uniqueKeys KeySet, extraDoomedBy []string, opts ...BuildOption) (Relation, error) {
	if missing := uniqueKeys.Columns().Difference(columns); !missing.IsEmpty() {
		return nil, newColumnError(missing, "union unique keys %s are not all columns", uniqueKeys)
	}
	return newUnion(engine, columns, relations, uniqueKeys, extraDoomedBy, applyBuildOptions(opts)).CheckedAndSimplified(false)
}

func newUnion(engine Engine, columns ColumnSet, relations []Relation, uniqueKeys KeySet, extraDoomedBy []string, opts buildOptions) *Union {
	u := &Union{
		engine:        engine,
		columns:       columns,
		relations:     slices.Clone(relations),
		uniqueKeys:    DropCoveredInternalUniqueKeys(uniqueKeys),
		extraDoomedBy: sortedMessages(extraDoomedBy),
		opts:          opts,
	}
	u.tree = mergedTree(engine, u.relations)
	return u
}

// UnionEngine is the engine the union is evaluated in.
func (u *Union) UnionEngine() Engine { return u.engine }

// Relations returns the members.
func (u *Union) Relations() []Relation { return slices.Clone(u.relations) }

// ExtraDoomedBy returns the messages of members dropped for being doomed.
func (u *Union) ExtraDoomedBy() []string { return slices.Clone(u.extraDoomedBy) }

// EngineChecksSkipped reports whether the union was built with
// SkipEngineChecks.
func (u *Union) EngineChecksSkipped() bool { return u.opts.skipEngineChecks }

func (u *Union) Engine() *EngineTree { return u.tree }
func (u *Union) Columns() ColumnSet  { return u.columns }
func (u *Union) UniqueKeys() KeySet  { return u.uniqueKeys }
func (u *Union) accept(d dispatcher) { d.union(u) }

// DoomedBy is empty if any member might have rows. Otherwise it merges the
// extra messages with those of every member.
func (u *Union) DoomedBy() []string {
	lists := [][]string{u.extraDoomedBy}
	for _, r := range u.relations {
		msgs := r.DoomedBy()
		if len(msgs) == 0 {
			return nil
		}
		lists = append(lists, msgs)
	}
	if out := sortedMessages(lists...); len(out) > 0 {
		return out
	}
	return []string{DefaultZeroMessage}
}

// WithRelations builds the same union over different members.
func (u *Union) WithRelations(relations []Relation) (Relation, error) {
	return newUnion(u.engine, u.columns, relations, u.uniqueKeys, u.extraDoomedBy, u.opts).CheckedAndSimplified(false)
}

func (u *Union) CheckedAndSimplified(recursive bool) (Relation, error) {
	members, changed, err := simplifyMembers(u.relations, recursive)
	if err != nil {
		return nil, err
	}

	options := u.engine.Options()
	extra := u.extraDoomedBy
	var flat []Relation
	for _, m := range members {
		if inner, ok := m.(*Union); ok && inner.engine == u.engine && (len(inner.relations) == 0 || options.FlattenUnions) {
			flat = append(flat, inner.relations...)
			extra = sortedMessages(extra, inner.extraDoomedBy)
			changed = true
			continue
		}
		flat = append(flat, m)
	}

	if err := u.check(flat); err != nil {
		return nil, err
	}

	var survivors []Relation
	for _, m := range flat {
		if msgs := m.DoomedBy(); len(msgs) > 0 {
			extra = sortedMessages(extra, msgs)
			changed = true
			continue
		}
		survivors = append(survivors, m)
	}

	if len(survivors) == 1 {
		return survivors[0], nil
	}
	if !changed {
		return u, nil
	}
	return newUnion(u.engine, u.columns, survivors, u.uniqueKeys, extra, u.opts), nil
}

func (u *Union) check(members []Relation) error {
	if missing := u.uniqueKeys.Columns().Difference(u.columns); !missing.IsEmpty() {
		return newColumnError(missing, "union unique keys %s are not all columns", u.uniqueKeys)
	}
	for _, m := range members {
		if !m.Columns().Equal(u.columns) {
			return newColumnError(u.columns.Difference(m.Columns()),
				"union member %s has columns %s, not %s", m, m.Columns(), u.columns)
		}
		if !u.opts.skipEngineChecks {
			if dest := m.Engine().Destination(); dest != u.engine {
				return newEngineError(u.engine, "union member %s is in engine %s, not %s", m, dest, u.engine)
			}
		}
		if len(m.DoomedBy()) > 0 {
			continue
		}
		for _, key := range u.uniqueKeys.keys {
			if !IsUniqueKeyCovered(key, m.UniqueKeys()) {
				return newAlgebraError("union unique key %s is not a unique key of member %s", key, m)
			}
		}
	}
	if !u.opts.skipEngineChecks && u.engine.Options().PairwiseUnionsOnly && len(members) > 2 {
		return newEngineError(u.engine, "engine %s only supports pairwise unions; got %d members", u.engine, len(members))
	}
	return nil
}

func (u *Union) String() string {
	if len(u.relations) == 0 {
		return "zero" + u.columns.String()
	}
	parts := make([]string, len(u.relations))
	for i, r := range u.relations {
		parts[i] = r.String()
	}
	return "union(" + strings.Join(parts, ", ") + ")"
}
