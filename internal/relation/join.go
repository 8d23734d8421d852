package relation

import (
	"slices"
	"strings"
)

// Join is the natural join of its members on their shared columns, further
// restricted by join conditions. A join with no members is the unit
// relation: no columns and one row.
type Join struct {
	engine     Engine
	relations  []Relation
	conditions []*JoinCondition
	opts       buildOptions
	tree       *EngineTree
	columns    ColumnSet
	uniqueKeys KeySet
}

// NewJoin builds a checked and simplified join of relations in engine.
func NewJoin(engine Engine, relations []Relation, conditions []*JoinCondition, opts ...BuildOption) (Relation, error) {
	return newJoin(engine, relations, conditions, applyBuildOptions(opts)).CheckedAndSimplified(false)
}

func newJoin(engine Engine, relations []Relation, conditions []*JoinCondition, opts buildOptions) *Join {
	j := &Join{
		engine:     engine,
		relations:  slices.Clone(relations),
		conditions: dedupConditions(conditions),
		opts:       opts,
	}
	j.tree = mergedTree(engine, j.relations)
	keys := make([]KeySet, len(j.relations))
	cols := make([]ColumnSet, len(j.relations))
	for i, r := range j.relations {
		keys[i] = r.UniqueKeys()
		cols[i] = r.Columns()
	}
	j.columns = ColumnSet{}.Union(cols...)
	j.uniqueKeys = crossKeys(keys)
	return j
}

func dedupConditions(conditions []*JoinCondition) []*JoinCondition {
	out := slices.Clone(conditions)
	slices.SortFunc(out, func(a, b *JoinCondition) int { return strings.Compare(a.Key(), b.Key()) })
	return slices.CompactFunc(out, func(a, b *JoinCondition) bool { return a.Key() == b.Key() })
}

// JoinEngine is the engine the join is evaluated in.
func (j *Join) JoinEngine() Engine { return j.engine }

// Relations returns the members.
func (j *Join) Relations() []Relation { return slices.Clone(j.relations) }

// Conditions returns the join conditions.
func (j *Join) Conditions() []*JoinCondition { return slices.Clone(j.conditions) }

// EngineChecksSkipped reports whether the join was built with
// SkipEngineChecks.
func (j *Join) EngineChecksSkipped() bool { return j.opts.skipEngineChecks }

func (j *Join) Engine() *EngineTree { return j.tree }
func (j *Join) Columns() ColumnSet  { return j.columns }
func (j *Join) UniqueKeys() KeySet  { return j.uniqueKeys }
func (j *Join) accept(d dispatcher) { d.join(j) }

// DoomedBy collects the messages of every doomed member.
func (j *Join) DoomedBy() []string {
	var lists [][]string
	for _, r := range j.relations {
		lists = append(lists, r.DoomedBy())
	}
	return sortedMessages(lists...)
}

// WithRelations builds the same join over different members.
func (j *Join) WithRelations(relations []Relation) (Relation, error) {
	return newJoin(j.engine, relations, j.conditions, j.opts).CheckedAndSimplified(false)
}

func (j *Join) CheckedAndSimplified(recursive bool) (Relation, error) {
	members, changed, err := simplifyMembers(j.relations, recursive)
	if err != nil {
		return nil, err
	}

	options := j.engine.Options()
	conditions := j.conditions
	var flat []Relation
	for _, m := range members {
		if inner, ok := m.(*Join); ok && inner.engine == j.engine && (len(inner.relations) == 0 || options.FlattenJoins) {
			flat = append(flat, inner.relations...)
			conditions = append(slices.Clone(conditions), inner.conditions...)
			changed = true
			continue
		}
		flat = append(flat, m)
	}

	if err := j.check(flat, conditions); err != nil {
		return nil, err
	}

	var doomed [][]string
	for _, m := range flat {
		if msgs := m.DoomedBy(); len(msgs) > 0 {
			doomed = append(doomed, msgs)
		}
	}
	if len(doomed) > 0 {
		cols := make([]ColumnSet, len(flat))
		for i, m := range flat {
			cols[i] = m.Columns()
		}
		return MakeZero(j.engine, ColumnSet{}.Union(cols...), sortedMessages(doomed...)...), nil
	}

	if len(flat) == 1 {
		return flat[0], nil
	}
	if !changed {
		return j, nil
	}
	return newJoin(j.engine, flat, conditions, j.opts), nil
}

func (j *Join) check(members []Relation, conditions []*JoinCondition) error {
	if !j.opts.skipEngineChecks {
		for _, m := range members {
			if dest := m.Engine().Destination(); dest != j.engine {
				return newEngineError(j.engine, "join member %s is in engine %s, not %s", m, dest, j.engine)
			}
		}
		if j.engine.Options().PairwiseJoinsOnly && len(members) > 2 {
			return newEngineError(j.engine, "engine %s only supports pairwise joins; got %d members", j.engine, len(members))
		}
	}
	for _, c := range conditions {
		if !j.opts.skipEngineChecks && !c.SupportsEngine(j.engine) {
			return newEngineError(j.engine, "join condition %s does not support engine %s", c, j.engine)
		}
		if !conditionMatchesPair(c, members) {
			return newAlgebraError("join condition %s does not match any pair of join members", c)
		}
	}
	return nil
}

func conditionMatchesPair(c *JoinCondition, members []Relation) bool {
	for i, a := range members {
		for k, b := range members {
			if i != k && c.Matches(a.Columns(), b.Columns()) {
				return true
			}
		}
	}
	return false
}

func (j *Join) String() string {
	if len(j.relations) == 0 {
		return "unit"
	}
	parts := make([]string, len(j.relations))
	for i, r := range j.relations {
		parts[i] = r.String()
	}
	s := "join(" + strings.Join(parts, ", ")
	if len(j.conditions) > 0 {
		conds := make([]string, len(j.conditions))
		for i, c := range j.conditions {
			conds[i] = c.String()
		}
		s += "; on " + strings.Join(conds, ", ")
	}
	return s + ")"
}
