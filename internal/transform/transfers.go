package transform

import (
	"slices"
	"strings"

	"github.com/roach88/relir/internal/relation"
)

// InsertTransfers makes a tree built with relation.SkipEngineChecks
// engine-consistent by routing data along paths. paths is a merge tree:
// each node's sources are the engines whose rows may be moved into it.
//
// Joins and unions are split by member engine and rebuilt bottom-up along
// paths, with a Transfer wherever rows cross engines and each join
// condition attached at the first engine that supports it and joins the
// members it needs. Selections, slices and calculations whose helpers
// their base engine cannot evaluate are lifted to the first engine on the
// path from the base toward the root that can.
//
// A merge tree that omits an engine the relation needs, or that never
// reaches an engine able to evaluate some helper, is a PlanError.
func InsertTransfers(r relation.Relation, paths *relation.EngineTree) (relation.Relation, error) {
	return relation.Visit[relation.Relation](r, &transferInserter{paths: paths})
}

type transferInserter struct {
	paths *relation.EngineTree
}

func (v *transferInserter) VisitLeaf(l *relation.Leaf) (relation.Relation, error) {
	return l, nil
}

func (v *transferInserter) VisitJoin(j *relation.Join) (relation.Relation, error) {
	groups, unchanged, err := v.groupMembers(j.JoinEngine(), j.Relations())
	if err != nil {
		return nil, err
	}
	conditions := j.Conditions()
	if unchanged && !slices.ContainsFunc(conditions, func(c *relation.JoinCondition) bool {
		return !c.SupportsEngine(j.JoinEngine())
	}) {
		return j, nil
	}

	var combine func(relation.Engine, []relation.Relation) (relation.Relation, error)
	combine = func(engine relation.Engine, members []relation.Relation) (relation.Relation, error) {
		var matching []*relation.JoinCondition
		conditions = slices.DeleteFunc(conditions, func(c *relation.JoinCondition) bool {
			if c.SupportsEngine(engine) && matchesPair(c, members) {
				matching = append(matching, c)
				return true
			}
			return false
		})
		return relation.NewJoin(engine, members, matching)
	}
	result, err := v.merge(v.paths, groups, combine)
	if err != nil {
		return nil, err
	}
	if err := leftoverGroups(groups, "join", j); err != nil {
		return nil, err
	}
	if len(conditions) > 0 {
		names := make([]string, len(conditions))
		for i, c := range conditions {
			names[i] = c.String()
		}
		return nil, newPlanError("join conditions [%s] of %s match no engine along %s", strings.Join(names, ", "), j, v.paths)
	}
	if result == nil {
		return j, nil
	}
	return result, nil
}

func (v *transferInserter) VisitUnion(u *relation.Union) (relation.Relation, error) {
	groups, unchanged, err := v.groupMembers(u.UnionEngine(), u.Relations())
	if err != nil {
		return nil, err
	}
	if unchanged {
		return u, nil
	}
	combine := func(engine relation.Engine, members []relation.Relation) (relation.Relation, error) {
		return relation.NewUnion(engine, u.Columns(), members, u.UniqueKeys(), u.ExtraDoomedBy())
	}
	result, err := v.merge(v.paths, groups, combine)
	if err != nil {
		return nil, err
	}
	if err := leftoverGroups(groups, "union", u); err != nil {
		return nil, err
	}
	if result == nil {
		return u, nil
	}
	return result, nil
}

func (v *transferInserter) VisitProjection(p *relation.Projection) (relation.Relation, error) {
	return v.rebase(p)
}

func (v *transferInserter) VisitSelection(s *relation.Selection) (relation.Relation, error) {
	base, err := relation.Visit[relation.Relation](s.Base(), v)
	if err != nil {
		return nil, err
	}
	engine := destination(base)
	here, todo := splitPredicates(s.Predicates(), func(p relation.Predicate) bool { return p.SupportsEngine(engine) })
	if base == s.Base() && len(todo) == 0 && !s.EngineChecksSkipped() {
		return s, nil
	}
	if base, err = relation.NewSelection(base, here); err != nil {
		return nil, err
	}
	if len(todo) == 0 {
		return base, nil
	}
	lifted, err := v.lift(base, func(tag relation.Engine, r relation.Relation) (relation.Relation, bool, error) {
		var matching []relation.Predicate
		matching, todo = splitPredicates(todo, func(p relation.Predicate) bool { return p.SupportsEngine(tag) })
		if len(matching) == 0 {
			return r, false, nil
		}
		r, err := transferTo(r, tag)
		if err != nil {
			return nil, false, err
		}
		r, err = relation.NewSelection(r, matching)
		return r, len(todo) == 0, err
	})
	if err != nil {
		return nil, err
	}
	if len(todo) > 0 {
		return nil, newPlanError("predicates %s of %s are not supported by any engine along %s", predicateNames(todo), s, v.paths)
	}
	return lifted, nil
}

func (v *transferInserter) VisitDistinct(d *relation.Distinct) (relation.Relation, error) {
	return v.rebase(d)
}

func (v *transferInserter) VisitSlice(s *relation.Slice) (relation.Relation, error) {
	base, err := relation.Visit[relation.Relation](s.Base(), v)
	if err != nil {
		return nil, err
	}
	sortsIn := func(engine relation.Engine) bool {
		if !engine.Options().CanSort {
			return false
		}
		for _, t := range s.OrderBy() {
			if !t.SupportsEngine(engine) {
				return false
			}
		}
		return true
	}
	limit, _ := s.Limit()
	if !s.EngineChecksSkipped() && base == s.Base() {
		return s, nil
	}
	if sortsIn(destination(base)) {
		return relation.NewSlice(base, s.OrderBy(), s.Offset(), limit)
	}
	done := false
	lifted, err := v.lift(base, func(tag relation.Engine, r relation.Relation) (relation.Relation, bool, error) {
		if !sortsIn(tag) {
			return r, false, nil
		}
		r, err := transferTo(r, tag)
		if err != nil {
			return nil, false, err
		}
		done = true
		r, err = relation.NewSlice(r, s.OrderBy(), s.Offset(), limit)
		return r, true, err
	})
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, newPlanError("no engine along %s can sort %s", v.paths, s)
	}
	return lifted, nil
}

func (v *transferInserter) VisitTransfer(t *relation.Transfer) (relation.Relation, error) {
	return v.rebase(t)
}

func (v *transferInserter) VisitMaterialization(m *relation.Materialization) (relation.Relation, error) {
	return v.rebase(m)
}

func (v *transferInserter) VisitCalculation(c *relation.Calculation) (relation.Relation, error) {
	base, err := relation.Visit[relation.Relation](c.Base(), v)
	if err != nil {
		return nil, err
	}
	if c.Expression().SupportsEngine(destination(base)) {
		if base == c.Base() {
			return c, nil
		}
		return c.Rebased(base)
	}
	done := false
	lifted, err := v.lift(base, func(tag relation.Engine, r relation.Relation) (relation.Relation, bool, error) {
		if !c.Expression().SupportsEngine(tag) {
			return r, false, nil
		}
		r, err := transferTo(r, tag)
		if err != nil {
			return nil, false, err
		}
		done = true
		r, err = relation.NewCalculation(r, c.Tag(), c.Expression())
		return r, true, err
	})
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, newPlanError("no engine along %s can compute %s", v.paths, c)
	}
	return lifted, nil
}

func (v *transferInserter) VisitExtension(e *relation.Extension) (relation.Relation, error) {
	return v.rebase(e)
}

func (v *transferInserter) rebase(u relation.UnaryOperation) (relation.Relation, error) {
	base, err := relation.Visit[relation.Relation](u.Base(), v)
	if err != nil {
		return nil, err
	}
	if base == u.Base() {
		return u, nil
	}
	return u.Rebased(base)
}

// groupMembers rewrites the members of an n-ary operation in engine and
// groups the results by their destination engine.
func (v *transferInserter) groupMembers(engine relation.Engine, members []relation.Relation) (map[relation.Engine][]relation.Relation, bool, error) {
	groups := map[relation.Engine][]relation.Relation{}
	unchanged := true
	for _, m := range members {
		r, err := relation.Visit[relation.Relation](m, v)
		if err != nil {
			return nil, false, err
		}
		dest := destination(r)
		unchanged = unchanged && r == m && dest == engine
		groups[dest] = append(groups[dest], r)
	}
	return groups, unchanged, nil
}

// merge walks paths from the root, claiming the members in each engine
// and transferring whatever the sources produce into it. Only the first
// occurrence of an engine in paths claims its members.
func (v *transferInserter) merge(
	paths *relation.EngineTree,
	groups map[relation.Engine][]relation.Relation,
	combine func(relation.Engine, []relation.Relation) (relation.Relation, error),
) (relation.Relation, error) {
	tag := paths.Destination()
	here := groups[tag]
	delete(groups, tag)
	var sources []relation.Relation
	for _, s := range paths.Sources() {
		r, err := v.merge(s, groups, combine)
		if err != nil {
			return nil, err
		}
		if r != nil {
			sources = append(sources, r)
		}
	}
	switch {
	case len(here)+len(sources) > 1:
		members := slices.Clone(here)
		for _, s := range sources {
			t, err := transferTo(s, tag)
			if err != nil {
				return nil, err
			}
			members = append(members, t)
		}
		return combine(tag, members)
	case len(here) == 1:
		return here[0], nil
	case len(sources) == 1:
		return sources[0], nil
	}
	return nil, nil
}

// lift searches paths for the subtree whose root is base's engine and
// then calls apply at that engine and each ancestor on the way back to the
// root, stopping once apply reports it is done. It returns nil if base's
// engine is not in paths.
func (v *transferInserter) lift(
	base relation.Relation,
	apply func(relation.Engine, relation.Relation) (relation.Relation, bool, error),
) (relation.Relation, error) {
	engine := destination(base)
	done := false
	var walk func(*relation.EngineTree) (relation.Relation, error)
	walk = func(t *relation.EngineTree) (relation.Relation, error) {
		var r relation.Relation
		if t.Destination() == engine {
			r = base
		} else {
			for _, s := range t.Sources() {
				found, err := walk(s)
				if err != nil {
					return nil, err
				}
				if found != nil {
					r = found
					break
				}
			}
			if r == nil {
				return nil, nil
			}
		}
		if done {
			return r, nil
		}
		r, finished, err := apply(t.Destination(), r)
		done = finished
		return r, err
	}
	r, err := walk(v.paths)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, newPlanError("engine %s of %s does not appear in %s", engine, base, v.paths)
	}
	return r, nil
}

func transferTo(r relation.Relation, engine relation.Engine) (relation.Relation, error) {
	if destination(r) == engine {
		return r, nil
	}
	return relation.NewTransfer(r, engine)
}

func leftoverGroups(groups map[relation.Engine][]relation.Relation, kind string, r relation.Relation) error {
	if len(groups) == 0 {
		return nil
	}
	names := make([]string, 0, len(groups))
	for e := range groups {
		names = append(names, e.String())
	}
	slices.Sort(names)
	return newPlanError("%s members in engines [%s] of %s are not reachable along the merge tree", kind, strings.Join(names, ", "), r)
}
