package sqlengine

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/store"
)

// lowering builds the query of each node bottom-up.
type lowering struct {
	engine  *Engine
	aliases map[string]bool
	next    int
}

func (l *lowering) lower(r relation.Relation) (*query, error) {
	return relation.Visit[*query](r, l)
}

// alias returns an unused table alias, preferring name.
func (l *lowering) alias(name string) string {
	if name != "" && !l.aliases[name] {
		l.aliases[name] = true
		return store.Quote(name)
	}
	for {
		a := fmt.Sprintf("t%d", l.next)
		l.next++
		if !l.aliases[a] {
			l.aliases[a] = true
			return a
		}
	}
}

func selectFrom() sq.SelectBuilder {
	return sq.StatementBuilder.PlaceholderFormat(sq.Question).Select()
}

// wrap turns q into an aliased subquery and selects its columns.
func (l *lowering) wrap(q *query, name string) *query {
	alias := l.alias(name)
	sub := q.builder()
	out := &query{
		cols:    q.cols,
		exprs:   make(map[relation.ColumnTag]sq.Sqlizer, len(q.cols)),
		from:    selectFrom().FromSelect(sub, alias),
		source:  sq.Alias(sub, alias),
		hasFrom: true,
		limit:   relation.Unbounded,
	}
	for _, c := range q.cols {
		out.exprs[c] = columnRef(alias, string(c))
	}
	return out
}

// open returns q, or q wrapped when it is sealed.
func (l *lowering) open(q *query) *query {
	if q.sealed() {
		return l.wrap(q, "")
	}
	return q
}

func (l *lowering) zero(cols relation.ColumnSet) *query {
	q := newQuery(cols)
	for _, c := range q.cols {
		q.exprs[c] = sq.Expr("NULL")
	}
	q.where = []sq.Sqlizer{sq.Or{}}
	return q
}

func (l *lowering) VisitLeaf(leaf *relation.Leaf) (*query, error) {
	if leaf.Payload() == nil && len(leaf.DoomedBy()) > 0 {
		return l.zero(leaf.Columns()), nil
	}
	payload, err := l.engine.EvaluateLeaf(leaf)
	if err != nil {
		return nil, err
	}
	t := payload.(Table)
	alias := l.alias("")
	q := newQuery(leaf.Columns())
	q.from = selectFrom().From(store.Quote(t.Name) + " AS " + alias)
	q.source = sq.Expr(store.Quote(t.Name) + " AS " + alias)
	q.hasFrom = true
	for _, c := range q.cols {
		q.exprs[c] = columnRef(alias, t.column(c))
	}
	return q, nil
}

// VisitJoin joins the members left to right. Each member after the first
// is joined on IS-equality of the columns it shares with the members
// before it, plus the conditions whose columns are then all present.
// IS matches NULL to NULL, as row equality does in the iteration engine.
func (l *lowering) VisitJoin(j *relation.Join) (*query, error) {
	members := j.Relations()
	out := newQuery(j.Columns())
	if len(members) == 0 {
		return out, nil
	}
	pending := j.Conditions()

	for i, m := range members {
		q, err := l.lower(m)
		if err != nil {
			return nil, err
		}
		if !q.single() {
			q = l.wrap(q, "")
		}

		var on sq.And
		for _, c := range m.Columns().Tags() {
			if prev, ok := out.exprs[c]; ok {
				on = append(on, sq.Expr("? IS ?", prev, q.exprs[c]))
				continue
			}
			out.exprs[c] = q.exprs[c]
		}
		if i == 0 {
			out.from = q.from
			out.hasFrom = true
		}
		var rest []*relation.JoinCondition
		for _, cond := range pending {
			cols, err := out.columnsOf(cond.ColumnsRequired())
			if err != nil {
				rest = append(rest, cond)
				continue
			}
			frag, err := l.condition(cond, cols)
			if err != nil {
				return nil, err
			}
			on = append(on, frag)
		}
		pending = rest

		if i > 0 {
			if len(on) == 0 {
				out.joins = append(out.joins, sq.Expr("CROSS JOIN ?", q.source))
			} else {
				out.joins = append(out.joins, sq.Expr("JOIN ? ON ?", q.source, on))
			}
		} else {
			out.where = append(out.where, on...)
		}
		out.where = append(out.where, q.where...)
	}
	if len(pending) > 0 {
		return nil, relation.NewEngineError(l.engine, "join condition %s needs columns the join lacks", pending[0])
	}
	return out, nil
}

func (l *lowering) VisitUnion(u *relation.Union) (*query, error) {
	members := u.Relations()
	if len(members) == 0 {
		return l.zero(u.Columns()), nil
	}
	cols := u.Columns().Tags()
	var compound sq.SelectBuilder
	for i, m := range members {
		q, err := l.lower(m)
		if err != nil {
			return nil, err
		}
		// Members of a compound SELECT may not order or window their rows.
		if q.compound == nil && q.sliced() {
			q = l.wrap(q, "")
		}
		q.cols = cols
		b := q.builder()
		if i == 0 {
			compound = b
			continue
		}
		sql, args, err := b.ToSql()
		if err != nil {
			return nil, err
		}
		compound = compound.Suffix("UNION ALL "+sql, args...)
	}
	out := newQuery(u.Columns())
	out.compound = &compound
	return out, nil
}

func (l *lowering) VisitProjection(p *relation.Projection) (*query, error) {
	q, err := l.lower(p.Base())
	if err != nil {
		return nil, err
	}
	if q.compound != nil || q.distinct {
		q = l.wrap(q, "")
	}
	q.cols = p.Columns().Tags()
	return q, nil
}

func (l *lowering) VisitSelection(s *relation.Selection) (*query, error) {
	q, err := l.lower(s.Base())
	if err != nil {
		return nil, err
	}
	q = l.open(q)
	for _, p := range s.Predicates() {
		w, err := l.predicate(p, q)
		if err != nil {
			return nil, err
		}
		q.where = append(q.where, w)
	}
	return q, nil
}

func (l *lowering) VisitDistinct(d *relation.Distinct) (*query, error) {
	q, err := l.lower(d.Base())
	if err != nil {
		return nil, err
	}
	if q.compound != nil || q.sliced() {
		q = l.wrap(q, "")
	}
	q.distinct = true
	return q, nil
}

func (l *lowering) VisitSlice(s *relation.Slice) (*query, error) {
	q, err := l.lower(s.Base())
	if err != nil {
		return nil, err
	}
	if q.compound != nil || q.sliced() {
		q = l.wrap(q, "")
	}
	for _, t := range s.OrderBy() {
		o, err := l.orderBy(t, q)
		if err != nil {
			return nil, err
		}
		q.orderBy = append(q.orderBy, o)
	}
	q.offset = s.Offset()
	if limit, ok := s.Limit(); ok {
		q.limit = limit
	}
	return q, nil
}

func (l *lowering) VisitTransfer(t *relation.Transfer) (*query, error) {
	return nil, relation.NewEngineError(l.engine, "engine %s cannot read rows transferred from %s", l.engine, t.Base().Engine().Destination())
}

func (l *lowering) VisitMaterialization(m *relation.Materialization) (*query, error) {
	q, err := l.lower(m.Base())
	if err != nil {
		return nil, err
	}
	return l.wrap(q, m.Name()), nil
}

func (l *lowering) VisitCalculation(c *relation.Calculation) (*query, error) {
	q, err := l.lower(c.Base())
	if err != nil {
		return nil, err
	}
	if q.compound != nil || q.distinct {
		q = l.wrap(q, "")
	}
	e, err := l.expression(c.Expression(), q)
	if err != nil {
		return nil, err
	}
	q.exprs[c.Tag()] = e
	q.cols = c.Columns().Tags()
	return q, nil
}

func (l *lowering) VisitExtension(e *relation.Extension) (*query, error) {
	lw, ok := e.Op().(Lowerer)
	if !ok {
		return nil, relation.NewEngineError(l.engine, "engine %s cannot lower extension %s", l.engine, e.Op().Name())
	}
	q, err := l.lower(e.Base())
	if err != nil {
		return nil, err
	}
	b, err := lw.LowerSQL(q.builder())
	if err != nil {
		return nil, fmt.Errorf("extension %s: %w", e.Op().Name(), err)
	}
	out := newQuery(e.Columns())
	out.compound = &b
	return out, nil
}
