package iteration

import (
	"context"
	"slices"

	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/value"
)

type executor struct {
	ctx    context.Context
	engine *Engine
}

func (x *executor) run(r relation.Relation) (Rows, error) {
	if err := x.ctx.Err(); err != nil {
		return nil, err
	}
	return relation.Visit[Rows](r, x)
}

func (x *executor) VisitLeaf(l *relation.Leaf) (Rows, error) {
	return x.engine.leafRows(x.ctx, l)
}

func (x *executor) VisitJoin(j *relation.Join) (Rows, error) {
	members := j.Relations()
	if len(members) == 0 {
		return Rows{Row{}}, nil
	}
	conditions := make([]*relation.JoinCondition, 0, len(j.Conditions()))
	tests := make([]ConditionFunc, 0, len(j.Conditions()))
	for _, c := range j.Conditions() {
		fn, err := x.engine.compileCondition(c)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, c)
		tests = append(tests, fn)
	}
	applied := make([]bool, len(conditions))

	acc, err := x.run(members[0])
	if err != nil {
		return nil, err
	}
	accCols := members[0].Columns()
	for _, m := range members[1:] {
		rows, err := x.run(m)
		if err != nil {
			return nil, err
		}
		cols := accCols.Union(m.Columns())
		var ready []ConditionFunc
		for i, c := range conditions {
			if !applied[i] && c.ColumnsRequired().IsSubsetOf(cols) {
				applied[i] = true
				ready = append(ready, tests[i])
			}
		}
		if acc, err = hashJoin(acc, rows, accCols.Intersection(m.Columns()), m.UniqueKeys(), ready); err != nil {
			return nil, err
		}
		accCols = cols
	}
	return acc, nil
}

func (x *executor) VisitUnion(u *relation.Union) (Rows, error) {
	var out Rows
	for _, m := range u.Relations() {
		rows, err := x.run(m)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (x *executor) VisitProjection(p *relation.Projection) (Rows, error) {
	rows, err := x.run(p.Base())
	if err != nil {
		return nil, err
	}
	out := make(Rows, len(rows))
	for i, row := range rows {
		out[i] = row.Project(p.Columns())
	}
	return out, nil
}

func (x *executor) VisitSelection(s *relation.Selection) (Rows, error) {
	tests := make([]PredicateFunc, 0, len(s.Predicates()))
	for _, p := range s.Predicates() {
		fn, err := x.engine.compilePredicate(p)
		if err != nil {
			return nil, err
		}
		tests = append(tests, fn)
	}
	rows, err := x.run(s.Base())
	if err != nil {
		return nil, err
	}
	var out Rows
	for _, row := range rows {
		keep, err := all(tests, row)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, row)
		}
	}
	return out, nil
}

func (x *executor) VisitDistinct(d *relation.Distinct) (Rows, error) {
	rows, err := x.run(d.Base())
	if err != nil {
		return nil, err
	}
	key := d.Columns().Tags()
	if keys := d.UniqueKeys().Keys(); len(keys) > 0 {
		key = keys[0].Tags()
	}
	digest := value.NewDigest()
	seen := map[uint64][]Row{}
	var out Rows
	for _, row := range rows {
		h := keyDigest(digest, row, key)
		if slices.ContainsFunc(seen[h], func(other Row) bool { return sameOn(row, other, key) }) {
			continue
		}
		seen[h] = append(seen[h], row)
		out = append(out, row)
	}
	return out, nil
}

func (x *executor) VisitSlice(s *relation.Slice) (Rows, error) {
	terms := s.OrderBy()
	keyFuncs := make([]SortKeyFunc, len(terms))
	for i, t := range terms {
		fn, err := x.engine.compileSortKey(t)
		if err != nil {
			return nil, err
		}
		keyFuncs[i] = fn
	}
	rows, err := x.run(s.Base())
	if err != nil {
		return nil, err
	}

	type keyed struct {
		row  Row
		keys []value.Value
	}
	items := make([]keyed, len(rows))
	for i, row := range rows {
		items[i] = keyed{row: row, keys: make([]value.Value, len(keyFuncs))}
		for k, fn := range keyFuncs {
			if items[i].keys[k], err = fn(row); err != nil {
				return nil, err
			}
		}
	}
	slices.SortStableFunc(items, func(a, b keyed) int {
		for k, t := range terms {
			n := value.Compare(a.keys[k], b.keys[k])
			if !t.Ascending() {
				n = -n
			}
			if n != 0 {
				return n
			}
		}
		return 0
	})

	start := min(s.Offset(), len(items))
	end := len(items)
	if limit, ok := s.Limit(); ok {
		end = min(start+limit, end)
	}
	out := make(Rows, 0, end-start)
	for _, item := range items[start:end] {
		out = append(out, item.row)
	}
	return out, nil
}

func (x *executor) VisitTransfer(t *relation.Transfer) (Rows, error) {
	source := t.Base().Engine().Destination()
	fetcher, ok := source.(Fetcher)
	if !ok {
		return nil, relation.NewEngineError(x.engine, "cannot transfer rows from engine %s into %s", source, x.engine)
	}
	x.engine.logger.Debug("fetching transferred rows", "from", source.String(), "into", x.engine.name)
	return fetcher.Fetch(x.ctx, t.Base())
}

func (x *executor) VisitMaterialization(m *relation.Materialization) (Rows, error) {
	if rows, ok := x.engine.materialized[m.Name()]; ok {
		return rows, nil
	}
	rows, err := x.run(m.Base())
	if err != nil {
		return nil, err
	}
	x.engine.materialized[m.Name()] = rows
	return rows, nil
}

func (x *executor) VisitCalculation(c *relation.Calculation) (Rows, error) {
	fn, err := x.engine.compileExpression(c.Expression())
	if err != nil {
		return nil, err
	}
	rows, err := x.run(c.Base())
	if err != nil {
		return nil, err
	}
	out := make(Rows, len(rows))
	for i, row := range rows {
		v, err := fn(row)
		if err != nil {
			return nil, err
		}
		next := row.merged(nil)
		next[c.Tag()] = v
		out[i] = next
	}
	return out, nil
}

func (x *executor) VisitExtension(e *relation.Extension) (Rows, error) {
	exec, ok := e.Op().(ExtensionExecutor)
	if !ok {
		return nil, relation.NewEngineError(x.engine, "engine %s cannot execute extension %s", x.engine, e.Op().Name())
	}
	rows, err := x.run(e.Base())
	if err != nil {
		return nil, err
	}
	return exec.ExecuteRows(x.ctx, x.engine, rows)
}

func all[F ~func(Row) (bool, error)](tests []F, row Row) (bool, error) {
	for _, test := range tests {
		ok, err := test(row)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// hashJoin joins lhs and rhs on shared. When rhs is unique on a subset of
// shared each lhs row has at most one partner, so probing stops at the
// first match.
func hashJoin(lhs, rhs Rows, shared relation.ColumnSet, rhsKeys relation.KeySet, conditions []ConditionFunc) (Rows, error) {
	on := shared.Tags()
	unique := false
	for _, k := range rhsKeys.Keys() {
		if k.IsSubsetOf(shared) {
			unique = true
			break
		}
	}

	digest := value.NewDigest()
	index := make(map[uint64][]Row, len(rhs))
	for _, row := range rhs {
		h := keyDigest(digest, row, on)
		index[h] = append(index[h], row)
	}

	var out Rows
	for _, left := range lhs {
		for _, right := range index[keyDigest(digest, left, on)] {
			if !sameOn(left, right, on) {
				continue
			}
			joined := left.merged(right)
			keep, err := all(conditions, joined)
			if err != nil {
				return nil, err
			}
			if keep {
				out = append(out, joined)
			}
			if unique {
				break
			}
		}
	}
	return out, nil
}
