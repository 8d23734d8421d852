package transform

import (
	"github.com/roach88/relir/internal/relation"
)

// InsertJoin joins other into r at a point where other's engine already
// evaluates part of r, so the result stays engine-consistent without new
// transfers. conditions relate other to the relation it is joined with.
//
// The join is placed at the shallowest node whose engine is other's
// engine, descending through transfers, projections, selections and
// calculations, into the join member that holds other's engine and
// matches every condition, and into every union member. Projections keep
// their columns, so the join only filters rows above them. A tree with no
// such point is an EngineError.
func InsertJoin(r, other relation.Relation, conditions ...*relation.JoinCondition) (relation.Relation, error) {
	v := &joinInserter{other: other, conditions: conditions}
	return v.insert(r)
}

type joinInserter struct {
	other      relation.Relation
	conditions []*relation.JoinCondition
}

func (v *joinInserter) insert(r relation.Relation) (relation.Relation, error) {
	if engine := destination(v.other); destination(r) == engine {
		return relation.NewJoin(engine, []relation.Relation{r, v.other}, v.conditions)
	}
	return relation.Visit[relation.Relation](r, v)
}

func (v *joinInserter) fail(r relation.Relation) error {
	engine := destination(v.other)
	return relation.NewEngineError(engine, "cannot join %s into %s without leaving engine %s", v.other, r, engine)
}

func (v *joinInserter) VisitLeaf(l *relation.Leaf) (relation.Relation, error) {
	return nil, v.fail(l)
}

func (v *joinInserter) VisitJoin(j *relation.Join) (relation.Relation, error) {
	engine := destination(v.other)
	members := j.Relations()
	for i, m := range members {
		if !m.Engine().Contains(engine) {
			continue
		}
		if len(relation.FindMatching(m.Columns(), v.other.Columns(), v.conditions)) != len(v.conditions) {
			continue
		}
		r, err := v.insert(m)
		if err != nil {
			return nil, err
		}
		members[i] = r
		return j.WithRelations(members)
	}
	return nil, v.fail(j)
}

func (v *joinInserter) VisitUnion(u *relation.Union) (relation.Relation, error) {
	members := u.Relations()
	if len(members) == 0 {
		return nil, v.fail(u)
	}
	for i, m := range members {
		if !m.Engine().Contains(destination(v.other)) {
			return nil, v.fail(u)
		}
		r, err := v.insert(m)
		if err != nil {
			return nil, err
		}
		members[i] = r
	}
	// Unique keys of the members no longer describe the joined rows.
	return relation.NewUnion(u.UnionEngine(), members[0].Columns(), members, relation.KeySet{}, u.ExtraDoomedBy())
}

func (v *joinInserter) VisitProjection(p *relation.Projection) (relation.Relation, error) {
	base, err := v.insert(p.Base())
	if err != nil {
		return nil, err
	}
	return relation.NewProjection(base, p.Columns())
}

func (v *joinInserter) VisitSelection(s *relation.Selection) (relation.Relation, error) {
	return v.rebase(s)
}

func (v *joinInserter) VisitDistinct(d *relation.Distinct) (relation.Relation, error) {
	return nil, v.fail(d)
}

func (v *joinInserter) VisitSlice(s *relation.Slice) (relation.Relation, error) {
	return nil, v.fail(s)
}

func (v *joinInserter) VisitTransfer(t *relation.Transfer) (relation.Relation, error) {
	return v.rebase(t)
}

func (v *joinInserter) VisitMaterialization(m *relation.Materialization) (relation.Relation, error) {
	return nil, v.fail(m)
}

func (v *joinInserter) VisitCalculation(c *relation.Calculation) (relation.Relation, error) {
	if v.other.Columns().Contains(c.Tag()) {
		return nil, v.fail(c)
	}
	return v.rebase(c)
}

func (v *joinInserter) VisitExtension(e *relation.Extension) (relation.Relation, error) {
	return nil, v.fail(e)
}

func (v *joinInserter) rebase(u relation.UnaryOperation) (relation.Relation, error) {
	base, err := v.insert(u.Base())
	if err != nil {
		return nil, err
	}
	return u.Rebased(base)
}

// InsertSelection applies preds to r, at r itself if its engine supports
// all of them and otherwise below transfers into the engines that do.
//
// It descends through projections, selections, distincts and
// calculations, into every union member, and into the join members whose
// columns cover each predicate and whose engines can evaluate it.
// Predicates that cannot be placed this way are an EngineError.
func InsertSelection(r relation.Relation, preds ...relation.Predicate) (relation.Relation, error) {
	if len(preds) == 0 {
		return r, nil
	}
	if _, err := relation.NewSelection(r, preds, relation.SkipEngineChecks()); err != nil {
		return nil, err
	}
	return insertSelection(r, dedup(preds))
}

func insertSelection(r relation.Relation, preds []relation.Predicate) (relation.Relation, error) {
	if len(preds) == 0 {
		return r, nil
	}
	engine := destination(r)
	_, unsupported := splitPredicates(preds, func(p relation.Predicate) bool { return p.SupportsEngine(engine) })
	if len(unsupported) == 0 {
		return relation.NewSelection(r, preds)
	}
	return relation.Visit[relation.Relation](r, &selectionInserter{preds: preds})
}

type selectionInserter struct {
	preds []relation.Predicate
}

func (v *selectionInserter) fail(r relation.Relation, preds []relation.Predicate) error {
	return relation.NewEngineError(destination(r), "cannot insert selection on %s into %s: no engine that can apply them is reachable", predicateNames(preds), r)
}

func (v *selectionInserter) VisitLeaf(l *relation.Leaf) (relation.Relation, error) {
	return nil, v.fail(l, v.preds)
}

func (v *selectionInserter) VisitJoin(j *relation.Join) (relation.Relation, error) {
	members := j.Relations()
	placed := map[string]bool{}
	for i, m := range members {
		matched, _ := splitPredicates(v.preds, func(p relation.Predicate) bool {
			return p.ColumnsRequired().IsSubsetOf(m.Columns()) && supportedSomewhere(p, m.Engine())
		})
		if len(matched) == 0 {
			continue
		}
		r, err := insertSelection(m, matched)
		if err != nil {
			return nil, err
		}
		members[i] = r
		for _, p := range matched {
			placed[p.Key()] = true
		}
	}
	if _, unplaced := splitPredicates(v.preds, func(p relation.Predicate) bool { return placed[p.Key()] }); len(unplaced) > 0 {
		return nil, v.fail(j, unplaced)
	}
	return j.WithRelations(members)
}

func (v *selectionInserter) VisitUnion(u *relation.Union) (relation.Relation, error) {
	members := u.Relations()
	for i, m := range members {
		r, err := insertSelection(m, v.preds)
		if err != nil {
			return nil, err
		}
		members[i] = r
	}
	return u.WithRelations(members)
}

func (v *selectionInserter) VisitProjection(p *relation.Projection) (relation.Relation, error) {
	return v.rebase(p)
}

func (v *selectionInserter) VisitSelection(s *relation.Selection) (relation.Relation, error) {
	return v.rebase(s)
}

func (v *selectionInserter) VisitDistinct(d *relation.Distinct) (relation.Relation, error) {
	return v.rebase(d)
}

func (v *selectionInserter) VisitSlice(s *relation.Slice) (relation.Relation, error) {
	return nil, v.fail(s, v.preds)
}

// VisitTransfer sends down the predicates the destination cannot apply and
// applies the rest above the transfer.
func (v *selectionInserter) VisitTransfer(t *relation.Transfer) (relation.Relation, error) {
	up, down := splitPredicates(v.preds, func(p relation.Predicate) bool { return p.SupportsEngine(t.Destination()) })
	base, err := insertSelection(t.Base(), down)
	if err != nil {
		return nil, err
	}
	r, err := t.Rebased(base)
	if err != nil {
		return nil, err
	}
	return relation.NewSelection(r, up)
}

func (v *selectionInserter) VisitMaterialization(m *relation.Materialization) (relation.Relation, error) {
	return nil, v.fail(m, v.preds)
}

func (v *selectionInserter) VisitCalculation(c *relation.Calculation) (relation.Relation, error) {
	for _, p := range v.preds {
		if p.ColumnsRequired().Contains(c.Tag()) {
			return nil, v.fail(c, v.preds)
		}
	}
	return v.rebase(c)
}

func (v *selectionInserter) VisitExtension(e *relation.Extension) (relation.Relation, error) {
	return nil, v.fail(e, v.preds)
}

func (v *selectionInserter) rebase(u relation.UnaryOperation) (relation.Relation, error) {
	base, err := insertSelection(u.Base(), v.preds)
	if err != nil {
		return nil, err
	}
	return u.Rebased(base)
}
