package iteration

import (
	"fmt"

	"github.com/roach88/relir/internal/expr"
	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/value"
)

// PredicateFunc is the state a generic predicate stores for this engine.
type PredicateFunc func(Row) (bool, error)

// ConditionFunc is the state a join condition stores for this engine. It
// sees the joined row, which holds the columns of both sides.
type ConditionFunc func(joined Row) (bool, error)

// SortKeyFunc is the state a generic order-by term stores for this engine.
type SortKeyFunc func(Row) (value.Value, error)

// evaluator computes expression values over one row.
type evaluator struct {
	engine *Engine
	row    Row
}

func (v evaluator) VisitLiteral(l expr.Literal) (value.Value, error) {
	return l.Value, nil
}

func (v evaluator) VisitReference(r expr.Reference) (value.Value, error) {
	val, ok := v.row[r.Tag]
	if !ok {
		return nil, fmt.Errorf("row has no column %s", r.Tag)
	}
	return val, nil
}

func (v evaluator) VisitFunction(f expr.Function) (value.Value, error) {
	return v.call(f.Name, f.Args)
}

func (v evaluator) call(name string, argExprs []expr.Expression) (value.Value, error) {
	fn, ok := v.engine.functions[name]
	if !ok {
		return nil, relation.NewEngineError(v.engine, "engine %s has no function %s", v.engine, name)
	}
	args := make([]value.Value, len(argExprs))
	for i, a := range argExprs {
		val, err := expr.VisitExpression[value.Value](a, v)
		if err != nil {
			return nil, err
		}
		args[i] = val
	}
	return fn(args)
}

// tester decides expression-language predicates over one row.
type tester struct {
	evaluator
}

func (v tester) VisitPredicateLiteral(p expr.PredicateLiteral) (bool, error) {
	return p.Value, nil
}

func (v tester) VisitPredicateReference(p expr.PredicateReference) (bool, error) {
	val, err := v.VisitReference(expr.Reference{Tag: p.Tag})
	if err != nil {
		return false, err
	}
	return value.Truthy(val)
}

func (v tester) VisitPredicateFunction(p expr.PredicateFunction) (bool, error) {
	val, err := v.call(p.Name, p.Args)
	if err != nil {
		return false, err
	}
	return value.Truthy(val)
}

func (v tester) VisitInContainer(p expr.InContainer) (bool, error) {
	item, err := expr.VisitExpression[value.Value](p.Item, v.evaluator)
	if err != nil {
		return false, err
	}
	return expr.VisitContainer[bool](p.Container, membership{evaluator: v.evaluator, item: item})
}

func (v tester) VisitLogicalNot(p expr.LogicalNot) (bool, error) {
	ok, err := expr.VisitPredicate[bool](p.Base, v)
	return !ok, err
}

func (v tester) VisitLogicalAnd(p expr.LogicalAnd) (bool, error) {
	for _, op := range p.Operands {
		ok, err := expr.VisitPredicate[bool](op, v)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (v tester) VisitLogicalOr(p expr.LogicalOr) (bool, error) {
	for _, op := range p.Operands {
		ok, err := expr.VisitPredicate[bool](op, v)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

type membership struct {
	evaluator
	item value.Value
}

func (m membership) VisitRangeLiteral(r expr.RangeLiteral) (bool, error) {
	switch n := m.item.(type) {
	case value.Int:
		return r.Contains(int64(n)), nil
	case value.Null:
		return false, nil
	}
	return false, fmt.Errorf("range membership needs an integer, got %s", m.item)
}

func (m membership) VisitSequence(s expr.Sequence) (bool, error) {
	for _, e := range s.Items {
		val, err := expr.VisitExpression[value.Value](e, m.evaluator)
		if err != nil {
			return false, err
		}
		if value.Equal(m.item, val) {
			return true, nil
		}
	}
	return false, nil
}

// compilePredicate resolves p into a row test for this engine.
func (e *Engine) compilePredicate(p relation.Predicate) (PredicateFunc, error) {
	switch x := p.(type) {
	case expr.Predicate:
		return func(row Row) (bool, error) {
			return expr.VisitPredicate[bool](x, tester{evaluator{engine: e, row: row}})
		}, nil
	case interface{ State() *relation.EngineState }:
		impl, ok := x.State().Lookup(e)
		if !ok {
			return nil, relation.NewEngineError(e, "predicate %s does not support engine %s", p, e)
		}
		switch fn := impl.(type) {
		case PredicateFunc:
			return fn, nil
		case func(Row) (bool, error):
			return fn, nil
		}
		return nil, relation.NewEngineError(e, "predicate %s carries %T, not a PredicateFunc", p, impl)
	}
	return nil, relation.NewEngineError(e, "engine %s cannot evaluate predicate %s of type %T", e, p, p)
}

// compileCondition resolves c into a test on joined rows.
func (e *Engine) compileCondition(c *relation.JoinCondition) (ConditionFunc, error) {
	impl, ok := c.State().Lookup(e)
	if !ok {
		return nil, relation.NewEngineError(e, "join condition %s does not support engine %s", c, e)
	}
	switch fn := impl.(type) {
	case ConditionFunc:
		return fn, nil
	case func(Row) (bool, error):
		return fn, nil
	}
	return nil, relation.NewEngineError(e, "join condition %s carries %T, not a ConditionFunc", c, impl)
}

// compileSortKey resolves an order-by term into a key extractor.
func (e *Engine) compileSortKey(t relation.OrderByTerm) (SortKeyFunc, error) {
	switch x := t.(type) {
	case expr.OrderBy:
		return e.compileExpression(x.Expression)
	case interface{ State() *relation.EngineState }:
		impl, ok := x.State().Lookup(e)
		if !ok {
			return nil, relation.NewEngineError(e, "order-by term %s does not support engine %s", t, e)
		}
		switch fn := impl.(type) {
		case SortKeyFunc:
			return fn, nil
		case func(Row) (value.Value, error):
			return fn, nil
		case string:
			// Terms read without engine state sort by their only column.
			if cols := t.ColumnsRequired().Tags(); len(cols) == 1 {
				return func(row Row) (value.Value, error) { return row[cols[0]], nil }, nil
			}
		}
		return nil, relation.NewEngineError(e, "order-by term %s carries %T, not a SortKeyFunc", t, impl)
	}
	return nil, relation.NewEngineError(e, "engine %s cannot evaluate order-by term %s of type %T", e, t, t)
}

func (e *Engine) compileExpression(x relation.Expression) (SortKeyFunc, error) {
	ex, ok := x.(expr.Expression)
	if !ok {
		return nil, relation.NewEngineError(e, "engine %s cannot evaluate expression %s of type %T", e, x, x)
	}
	return func(row Row) (value.Value, error) {
		return expr.VisitExpression[value.Value](ex, evaluator{engine: e, row: row})
	}, nil
}
