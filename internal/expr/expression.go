package expr

import (
	"strings"

	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/value"
)

// Expression is a scalar column expression.
type Expression interface {
	relation.Expression
	expression()
}

// Literal is a constant value.
type Literal struct {
	Value value.Value
}

// Reference reads a column of the current row.
type Reference struct {
	Tag relation.ColumnTag
}

// Function applies a named function to argument expressions. Engines supply
// the implementation through Engine.ColumnFunction.
type Function struct {
	Name string
	Args []Expression
}

// Lit builds a Literal from a Go value. It panics on values that have no
// Value representation.
func Lit(v any) Literal {
	return Literal{Value: value.MustFromAny(v)}
}

// Ref builds a Reference to the named column.
func Ref(name string) Reference {
	return Reference{Tag: relation.Column(name)}
}

// Call builds a Function.
func Call(name string, args ...Expression) Function {
	return Function{Name: name, Args: args}
}

func (Literal) expression()   {}
func (Reference) expression() {}
func (Function) expression()  {}

func (l Literal) String() string                        { return l.Value.String() }
func (Literal) ColumnsRequired() relation.ColumnSet     { return relation.ColumnSet{} }
func (Literal) SupportsEngine(relation.Engine) bool     { return true }
func (r Reference) String() string                      { return string(r.Tag) }
func (r Reference) ColumnsRequired() relation.ColumnSet { return relation.NewColumnSet(r.Tag) }
func (Reference) SupportsEngine(relation.Engine) bool   { return true }

func (l Literal) Serialize(relation.Writer) (map[string]any, error) {
	return map[string]any{"type": "literal", "value": value.Go(l.Value)}, nil
}

func (r Reference) Serialize(w relation.Writer) (map[string]any, error) {
	return map[string]any{"type": "reference", "tag": w.WriteColumn(r.Tag)}, nil
}

func (f Function) String() string {
	return f.Name + "(" + joinStrings(f.Args) + ")"
}

func (f Function) ColumnsRequired() relation.ColumnSet {
	return columnsOf(f.Args)
}

// SupportsEngine reports whether the engine implements the function and
// every argument.
func (f Function) SupportsEngine(engine relation.Engine) bool {
	if _, ok := engine.ColumnFunction(f.Name); !ok {
		return false
	}
	for _, a := range f.Args {
		if !a.SupportsEngine(engine) {
			return false
		}
	}
	return true
}

func (f Function) Serialize(w relation.Writer) (map[string]any, error) {
	args, err := serializeAll(w, f.Args)
	if err != nil {
		return nil, err
	}
	return map[string]any{"type": "function", "name": f.Name, "args": args}, nil
}

// ExpressionVisitor handles each expression kind.
type ExpressionVisitor[T any] interface {
	VisitLiteral(Literal) (T, error)
	VisitReference(Reference) (T, error)
	VisitFunction(Function) (T, error)
}

// VisitExpression dispatches e to the matching visitor method.
func VisitExpression[T any](e Expression, v ExpressionVisitor[T]) (T, error) {
	switch x := e.(type) {
	case Literal:
		return v.VisitLiteral(x)
	case Reference:
		return v.VisitReference(x)
	case Function:
		return v.VisitFunction(x)
	default:
		var zero T
		return zero, relation.NewSerializationError("", "unknown expression type %T", e)
	}
}

func columnsOf[E interface{ ColumnsRequired() relation.ColumnSet }](items []E) relation.ColumnSet {
	var out relation.ColumnSet
	for _, item := range items {
		out = out.Union(item.ColumnsRequired())
	}
	return out
}

func joinStrings[E interface{ String() string }](items []E) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.String()
	}
	return strings.Join(parts, ", ")
}

func serializeAll[E interface {
	Serialize(relation.Writer) (map[string]any, error)
}](w relation.Writer, items []E) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		doc, err := item.Serialize(w)
		if err != nil {
			return nil, err
		}
		out[i] = doc
	}
	return out, nil
}
