package expr

import (
	"strconv"
	"strings"

	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/value"
)

// Predicate is a boolean column expression usable in a Selection.
type Predicate interface {
	relation.Predicate
	predicate()
}

// PredicateLiteral is a constant true or false.
type PredicateLiteral struct {
	Value bool
}

// PredicateReference reads a boolean column.
type PredicateReference struct {
	Tag relation.ColumnTag
}

// PredicateFunction applies a named boolean function, such as a comparison.
type PredicateFunction struct {
	Name string
	Args []Expression
}

// LogicalNot negates its base.
type LogicalNot struct {
	Base Predicate
}

// LogicalAnd holds when every operand holds. No operands means true.
type LogicalAnd struct {
	Operands []Predicate
}

// LogicalOr holds when any operand holds. No operands means false.
type LogicalOr struct {
	Operands []Predicate
}

func (PredicateLiteral) predicate()   {}
func (PredicateReference) predicate() {}
func (PredicateFunction) predicate()  {}
func (InContainer) predicate()        {}
func (LogicalNot) predicate()         {}
func (LogicalAnd) predicate()         {}
func (LogicalOr) predicate()          {}

// Not negates p.
func Not(p Predicate) LogicalNot { return LogicalNot{Base: p} }

// And combines predicates, splicing in the operands of nested ANDs.
func And(operands ...Predicate) LogicalAnd {
	var flat []Predicate
	for _, op := range operands {
		if inner, ok := op.(LogicalAnd); ok {
			flat = append(flat, inner.Operands...)
			continue
		}
		flat = append(flat, op)
	}
	return LogicalAnd{Operands: flat}
}

// Or combines predicates, splicing in the operands of nested ORs.
func Or(operands ...Predicate) LogicalOr {
	var flat []Predicate
	for _, op := range operands {
		if inner, ok := op.(LogicalOr); ok {
			flat = append(flat, inner.Operands...)
			continue
		}
		flat = append(flat, op)
	}
	return LogicalOr{Operands: flat}
}

// Comparison helpers. Each builds a PredicateFunction whose name is the
// function engines must provide.
func Eq(lhs, rhs Expression) PredicateFunction { return compare("eq", lhs, rhs) }
func Ne(lhs, rhs Expression) PredicateFunction { return compare("ne", lhs, rhs) }
func Lt(lhs, rhs Expression) PredicateFunction { return compare("lt", lhs, rhs) }
func Le(lhs, rhs Expression) PredicateFunction { return compare("le", lhs, rhs) }
func Gt(lhs, rhs Expression) PredicateFunction { return compare("gt", lhs, rhs) }
func Ge(lhs, rhs Expression) PredicateFunction { return compare("ge", lhs, rhs) }

func compare(name string, lhs, rhs Expression) PredicateFunction {
	return PredicateFunction{Name: name, Args: []Expression{lhs, rhs}}
}

func (p PredicateLiteral) String() string                    { return strings.ToUpper(strconv.FormatBool(p.Value)) }
func (p PredicateLiteral) Key() string                       { return keyOf(p) }
func (PredicateLiteral) ColumnsRequired() relation.ColumnSet { return relation.ColumnSet{} }
func (PredicateLiteral) SupportsEngine(relation.Engine) bool { return true }
func (p PredicateLiteral) Serialize(relation.Writer) (map[string]any, error) {
	return map[string]any{"type": "predicate_literal", "value": p.Value}, nil
}

func (p PredicateReference) String() string { return string(p.Tag) }
func (p PredicateReference) Key() string    { return keyOf(p) }
func (p PredicateReference) ColumnsRequired() relation.ColumnSet {
	return relation.NewColumnSet(p.Tag)
}
func (PredicateReference) SupportsEngine(relation.Engine) bool { return true }
func (p PredicateReference) Serialize(w relation.Writer) (map[string]any, error) {
	return map[string]any{"type": "predicate_reference", "tag": w.WriteColumn(p.Tag)}, nil
}

func (p PredicateFunction) String() string {
	if op, ok := comparisonOperators[p.Name]; ok && len(p.Args) == 2 {
		return p.Args[0].String() + " " + op + " " + p.Args[1].String()
	}
	return p.Name + "(" + joinStrings(p.Args) + ")"
}

var comparisonOperators = map[string]string{
	"eq": "=", "ne": "!=", "lt": "<", "le": "<=", "gt": ">", "ge": ">=",
}

func (p PredicateFunction) Key() string                         { return keyOf(p) }
func (p PredicateFunction) ColumnsRequired() relation.ColumnSet { return columnsOf(p.Args) }

func (p PredicateFunction) SupportsEngine(engine relation.Engine) bool {
	return Function{Name: p.Name, Args: p.Args}.SupportsEngine(engine)
}

func (p PredicateFunction) Serialize(w relation.Writer) (map[string]any, error) {
	args, err := serializeAll(w, p.Args)
	if err != nil {
		return nil, err
	}
	return map[string]any{"type": "predicate_function", "name": p.Name, "args": args}, nil
}

func (p LogicalNot) String() string                             { return "NOT " + p.Base.String() }
func (p LogicalNot) Key() string                                { return keyOf(p) }
func (p LogicalNot) ColumnsRequired() relation.ColumnSet        { return p.Base.ColumnsRequired() }
func (p LogicalNot) SupportsEngine(engine relation.Engine) bool { return p.Base.SupportsEngine(engine) }
func (p LogicalNot) Serialize(w relation.Writer) (map[string]any, error) {
	base, err := p.Base.Serialize(w)
	if err != nil {
		return nil, err
	}
	return map[string]any{"type": "logical_not", "base": base}, nil
}

func (p LogicalAnd) String() string                      { return connective(p.Operands, " AND ", "TRUE") }
func (p LogicalAnd) Key() string                         { return keyOf(p) }
func (p LogicalAnd) ColumnsRequired() relation.ColumnSet { return columnsOf(p.Operands) }
func (p LogicalAnd) SupportsEngine(engine relation.Engine) bool {
	return allSupport(p.Operands, engine)
}
func (p LogicalAnd) Serialize(w relation.Writer) (map[string]any, error) {
	ops, err := serializeAll(w, p.Operands)
	if err != nil {
		return nil, err
	}
	return map[string]any{"type": "logical_and", "operands": ops}, nil
}

func (p LogicalOr) String() string                      { return connective(p.Operands, " OR ", "FALSE") }
func (p LogicalOr) Key() string                         { return keyOf(p) }
func (p LogicalOr) ColumnsRequired() relation.ColumnSet { return columnsOf(p.Operands) }
func (p LogicalOr) SupportsEngine(engine relation.Engine) bool {
	return allSupport(p.Operands, engine)
}
func (p LogicalOr) Serialize(w relation.Writer) (map[string]any, error) {
	ops, err := serializeAll(w, p.Operands)
	if err != nil {
		return nil, err
	}
	return map[string]any{"type": "logical_or", "operands": ops}, nil
}

func connective(operands []Predicate, sep, empty string) string {
	if len(operands) == 0 {
		return empty
	}
	parts := make([]string, len(operands))
	for i, op := range operands {
		parts[i] = op.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func allSupport(operands []Predicate, engine relation.Engine) bool {
	for _, op := range operands {
		if !op.SupportsEngine(engine) {
			return false
		}
	}
	return true
}

// PredicateVisitor handles each predicate kind.
type PredicateVisitor[T any] interface {
	VisitPredicateLiteral(PredicateLiteral) (T, error)
	VisitPredicateReference(PredicateReference) (T, error)
	VisitPredicateFunction(PredicateFunction) (T, error)
	VisitInContainer(InContainer) (T, error)
	VisitLogicalNot(LogicalNot) (T, error)
	VisitLogicalAnd(LogicalAnd) (T, error)
	VisitLogicalOr(LogicalOr) (T, error)
}

// VisitPredicate dispatches p to the matching visitor method.
func VisitPredicate[T any](p Predicate, v PredicateVisitor[T]) (T, error) {
	switch x := p.(type) {
	case PredicateLiteral:
		return v.VisitPredicateLiteral(x)
	case PredicateReference:
		return v.VisitPredicateReference(x)
	case PredicateFunction:
		return v.VisitPredicateFunction(x)
	case InContainer:
		return v.VisitInContainer(x)
	case LogicalNot:
		return v.VisitLogicalNot(x)
	case LogicalAnd:
		return v.VisitLogicalAnd(x)
	case LogicalOr:
		return v.VisitLogicalOr(x)
	default:
		var zero T
		return zero, relation.NewSerializationError("", "unknown predicate type %T", p)
	}
}

// keyWriter writes columns and engines as plain strings, for identity keys.
type keyWriter struct{}

func (keyWriter) WriteColumn(tag relation.ColumnTag) any { return string(tag) }
func (keyWriter) WriteColumns(cols relation.ColumnSet) []any {
	out := make([]any, 0, cols.Len())
	for _, c := range cols.Strings() {
		out = append(out, c)
	}
	return out
}
func (keyWriter) WriteUniqueKeys(keys relation.KeySet) []any {
	out := make([]any, 0, keys.Len())
	for _, k := range keys.Keys() {
		out = append(out, keyWriter{}.WriteColumns(k))
	}
	return out
}
func (keyWriter) WriteEngine(engine relation.Engine) any { return engine.String() }

func keyOf(item interface {
	Serialize(relation.Writer) (map[string]any, error)
	String() string
}) string {
	doc, err := item.Serialize(keyWriter{})
	if err != nil {
		return item.String()
	}
	key, err := value.CanonicalString(doc)
	if err != nil {
		return item.String()
	}
	return key
}
