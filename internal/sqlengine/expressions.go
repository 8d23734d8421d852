package sqlengine

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/relir/internal/expr"
	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/value"
)

// renderer writes expression-language nodes as SQL over the columns of
// one query.
type renderer struct {
	engine *Engine
	cols   map[relation.ColumnTag]sq.Sqlizer
}

func (r renderer) VisitLiteral(l expr.Literal) (sq.Sqlizer, error) {
	if value.IsNull(l.Value) {
		return sq.Expr("NULL"), nil
	}
	return sq.Expr("?", value.Go(l.Value)), nil
}

func (r renderer) VisitReference(ref expr.Reference) (sq.Sqlizer, error) {
	c, ok := r.cols[ref.Tag]
	if !ok {
		return nil, relation.NewEngineError(r.engine, "column %s is not in scope", ref.Tag)
	}
	return c, nil
}

func (r renderer) VisitFunction(f expr.Function) (sq.Sqlizer, error) {
	return r.call(f.Name, f.Args)
}

func (r renderer) call(name string, argExprs []expr.Expression) (sq.Sqlizer, error) {
	fn, ok := r.engine.functions[name]
	if !ok {
		return nil, relation.NewEngineError(r.engine, "engine %s has no function %s", r.engine, name)
	}
	args := make([]sq.Sqlizer, len(argExprs))
	for i, a := range argExprs {
		s, err := expr.VisitExpression[sq.Sqlizer](a, r)
		if err != nil {
			return nil, err
		}
		args[i] = s
	}
	return fn(args)
}

func (r renderer) VisitPredicateLiteral(p expr.PredicateLiteral) (sq.Sqlizer, error) {
	if p.Value {
		return sq.And{}, nil
	}
	return sq.Or{}, nil
}

func (r renderer) VisitPredicateReference(p expr.PredicateReference) (sq.Sqlizer, error) {
	return r.VisitReference(expr.Reference{Tag: p.Tag})
}

func (r renderer) VisitPredicateFunction(p expr.PredicateFunction) (sq.Sqlizer, error) {
	return r.call(p.Name, p.Args)
}

func (r renderer) VisitInContainer(p expr.InContainer) (sq.Sqlizer, error) {
	item, err := expr.VisitExpression[sq.Sqlizer](p.Item, r)
	if err != nil {
		return nil, err
	}
	return expr.VisitContainer[sq.Sqlizer](p.Container, membership{renderer: r, item: item})
}

func (r renderer) VisitLogicalNot(p expr.LogicalNot) (sq.Sqlizer, error) {
	base, err := expr.VisitPredicate[sq.Sqlizer](p.Base, r)
	if err != nil {
		return nil, err
	}
	return sq.Expr("(NOT ?)", base), nil
}

func (r renderer) VisitLogicalAnd(p expr.LogicalAnd) (sq.Sqlizer, error) {
	out := sq.And{}
	for _, o := range p.Operands {
		s, err := expr.VisitPredicate[sq.Sqlizer](o, r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r renderer) VisitLogicalOr(p expr.LogicalOr) (sq.Sqlizer, error) {
	out := sq.Or{}
	for _, o := range p.Operands {
		s, err := expr.VisitPredicate[sq.Sqlizer](o, r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// membership tests item against a container.
type membership struct {
	renderer
	item sq.Sqlizer
}

func (m membership) VisitRangeLiteral(c expr.RangeLiteral) (sq.Sqlizer, error) {
	return sq.Expr("(? >= ? AND ? < ? AND (? - ?) % ? = 0)",
		m.item, c.Start, m.item, c.Stop, m.item, c.Start, c.Step), nil
}

func (m membership) VisitSequence(c expr.Sequence) (sq.Sqlizer, error) {
	out := sq.Or{}
	for _, item := range c.Items {
		s, err := expr.VisitExpression[sq.Sqlizer](item, m.renderer)
		if err != nil {
			return nil, err
		}
		out = append(out, sq.Expr("(? = ?)", m.item, s))
	}
	return out, nil
}

func (l *lowering) expression(x relation.Expression, q *query) (sq.Sqlizer, error) {
	ex, ok := x.(expr.Expression)
	if !ok {
		return nil, relation.NewEngineError(l.engine, "engine %s cannot lower expression %s of type %T", l.engine, x, x)
	}
	return expr.VisitExpression[sq.Sqlizer](ex, renderer{engine: l.engine, cols: q.exprs})
}

// fragment renders the engine state of a generic helper object.
func (l *lowering) fragment(kind string, obj interface {
	String() string
	State() *relation.EngineState
}, required relation.ColumnSet, cols map[relation.ColumnTag]sq.Sqlizer) (sq.Sqlizer, error) {
	impl, ok := obj.State().Lookup(l.engine)
	if !ok {
		return nil, relation.NewEngineError(l.engine, "%s %s does not support engine %s", kind, obj, l.engine)
	}
	scope := make(map[relation.ColumnTag]sq.Sqlizer, required.Len())
	for _, c := range required.Tags() {
		e, ok := cols[c]
		if !ok {
			return nil, relation.NewEngineError(l.engine, "%s %s needs column %s", kind, obj, c)
		}
		scope[c] = e
	}
	switch fn := impl.(type) {
	case Fragment:
		return fn(scope)
	case func(map[relation.ColumnTag]sq.Sqlizer) (sq.Sqlizer, error):
		return fn(scope)
	}
	return nil, relation.NewEngineError(l.engine, "%s %s carries %T, not a Fragment", kind, obj, impl)
}

func (l *lowering) predicate(p relation.Predicate, q *query) (sq.Sqlizer, error) {
	switch x := p.(type) {
	case expr.Predicate:
		return expr.VisitPredicate[sq.Sqlizer](x, renderer{engine: l.engine, cols: q.exprs})
	case *relation.BasicPredicate:
		return l.fragment("predicate", x, x.ColumnsRequired(), q.exprs)
	}
	return nil, relation.NewEngineError(l.engine, "engine %s cannot lower predicate %s of type %T", l.engine, p, p)
}

func (l *lowering) condition(c *relation.JoinCondition, cols map[relation.ColumnTag]sq.Sqlizer) (sq.Sqlizer, error) {
	return l.fragment("join condition", c, c.ColumnsRequired(), cols)
}

func (l *lowering) orderBy(t relation.OrderByTerm, q *query) (sq.Sqlizer, error) {
	dir := " ASC"
	if !t.Ascending() {
		dir = " DESC"
	}
	var key sq.Sqlizer
	var err error
	switch x := t.(type) {
	case expr.OrderBy:
		key, err = l.expression(x.Expression, q)
	case *relation.BasicOrderByTerm:
		// Terms read without engine state sort by their only column.
		if impl, ok := x.State().Lookup(l.engine); ok {
			if _, isName := impl.(string); isName {
				if cols := t.ColumnsRequired().Tags(); len(cols) == 1 {
					return sq.Expr("?"+dir, q.exprs[cols[0]]), nil
				}
			}
		}
		key, err = l.fragment("order-by term", x, x.ColumnsRequired(), q.exprs)
	default:
		err = relation.NewEngineError(l.engine, "engine %s cannot lower order-by term %s of type %T", l.engine, t, t)
	}
	if err != nil {
		return nil, err
	}
	return sq.Expr("?"+dir, key), nil
}
