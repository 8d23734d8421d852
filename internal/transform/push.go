package transform

import (
	"github.com/roach88/relir/internal/relation"
)

// PushPredicates applies preds to r as far from the root as each can go.
//
// Predicates move below projections, selections, distincts and
// transfers, into every union member, and into each join member whose
// columns cover them, so one predicate can land in several join members.
// They stop at leaves, slices, materializations and extensions, and a
// calculation keeps those that read its new column. A predicate ends up
// in the deepest position whose engine supports it.
//
// With untilSingleEngine set, pushing stops at the first subtree that
// lives in a single engine, leaving that engine to plan the rest.
//
// Predicates that need columns r lacks are a ColumnError, and predicates
// no reachable engine supports are an EngineError.
func PushPredicates(r relation.Relation, preds []relation.Predicate, untilSingleEngine bool) (relation.Relation, error) {
	if len(preds) == 0 {
		return r, nil
	}
	if _, err := relation.NewSelection(r, preds, relation.SkipEngineChecks()); err != nil {
		return nil, err
	}
	res, err := pusher{untilSingleEngine: untilSingleEngine}.push(r, dedup(preds))
	if err != nil {
		return nil, err
	}
	if len(res.left) > 0 {
		return nil, relation.NewEngineError(destination(r), "predicates %s are not supported by any engine that can apply them in %s", predicateNames(res.left), r)
	}
	return res.rel, nil
}

// pushed is a rewritten relation and the predicates it could not apply.
type pushed struct {
	rel  relation.Relation
	left []relation.Predicate
}

type pusher struct {
	untilSingleEngine bool
}

func (p pusher) push(r relation.Relation, preds []relation.Predicate) (pushed, error) {
	if len(preds) == 0 {
		return pushed{rel: r}, nil
	}
	if p.untilSingleEngine && r.Engine().Depth() == 1 {
		return wrap(r, preds)
	}
	return relation.Visit[pushed](r, &pushVisitor{pusher: p, preds: preds})
}

// wrap applies the predicates r's engine supports directly on top of r.
func wrap(r relation.Relation, preds []relation.Predicate) (pushed, error) {
	engine := destination(r)
	here, left := splitPredicates(preds, func(p relation.Predicate) bool { return p.SupportsEngine(engine) })
	rel, err := relation.NewSelection(r, here)
	if err != nil {
		return pushed{}, err
	}
	return pushed{rel: rel, left: left}, nil
}

type pushVisitor struct {
	pusher
	preds []relation.Predicate
}

func (v *pushVisitor) VisitLeaf(l *relation.Leaf) (pushed, error) {
	return wrap(l, v.preds)
}

func (v *pushVisitor) VisitJoin(j *relation.Join) (pushed, error) {
	members := j.Relations()
	placed := map[string]bool{}
	for i, m := range members {
		accepted, _ := splitPredicates(v.preds, func(p relation.Predicate) bool {
			return p.ColumnsRequired().IsSubsetOf(m.Columns()) && supportedSomewhere(p, m.Engine())
		})
		if len(accepted) == 0 {
			continue
		}
		res, err := v.push(m, accepted)
		if err != nil {
			return pushed{}, err
		}
		members[i] = res.rel
		left := map[string]bool{}
		for _, p := range res.left {
			left[p.Key()] = true
		}
		for _, p := range accepted {
			if !left[p.Key()] {
				placed[p.Key()] = true
			}
		}
	}
	_, remaining := splitPredicates(v.preds, func(p relation.Predicate) bool { return placed[p.Key()] })
	var rel relation.Relation = j
	if !sameMembers(members, j.Relations()) {
		var err error
		if rel, err = j.WithRelations(members); err != nil {
			return pushed{}, err
		}
	}
	return wrap(rel, remaining)
}

func (v *pushVisitor) VisitUnion(u *relation.Union) (pushed, error) {
	members := u.Relations()
	var left []relation.Predicate
	for i, m := range members {
		res, err := v.push(m, v.preds)
		if err != nil {
			return pushed{}, err
		}
		members[i] = res.rel
		left = append(left, res.left...)
	}
	var rel relation.Relation = u
	if !sameMembers(members, u.Relations()) {
		var err error
		if rel, err = u.WithRelations(members); err != nil {
			return pushed{}, err
		}
	}
	// A predicate one member could not take is applied again above the
	// union, which is harmless for the members that did.
	return wrap(rel, dedup(left))
}

func (v *pushVisitor) VisitProjection(p *relation.Projection) (pushed, error) {
	return v.through(p, v.preds, nil)
}

func (v *pushVisitor) VisitSelection(s *relation.Selection) (pushed, error) {
	return v.through(s, v.preds, nil)
}

func (v *pushVisitor) VisitDistinct(d *relation.Distinct) (pushed, error) {
	return v.through(d, v.preds, nil)
}

func (v *pushVisitor) VisitSlice(s *relation.Slice) (pushed, error) {
	return wrap(s, v.preds)
}

func (v *pushVisitor) VisitTransfer(t *relation.Transfer) (pushed, error) {
	down, up := splitPredicates(v.preds, func(p relation.Predicate) bool {
		return supportedSomewhere(p, t.Base().Engine())
	})
	return v.through(t, down, up)
}

func (v *pushVisitor) VisitMaterialization(m *relation.Materialization) (pushed, error) {
	return wrap(m, v.preds)
}

func (v *pushVisitor) VisitCalculation(c *relation.Calculation) (pushed, error) {
	up, down := splitPredicates(v.preds, func(p relation.Predicate) bool {
		return p.ColumnsRequired().Contains(c.Tag())
	})
	return v.through(c, down, up)
}

func (v *pushVisitor) VisitExtension(e *relation.Extension) (pushed, error) {
	return wrap(e, v.preds)
}

// through pushes down into the base of u, rebuilds u, and applies up plus
// anything the base could not take on top of it.
func (v *pushVisitor) through(u relation.UnaryOperation, down, up []relation.Predicate) (pushed, error) {
	res, err := v.push(u.Base(), down)
	if err != nil {
		return pushed{}, err
	}
	var rel relation.Relation = u
	if res.rel != u.Base() {
		if rel, err = u.Rebased(res.rel); err != nil {
			return pushed{}, err
		}
	}
	return wrap(rel, append(up, res.left...))
}
