package expr

import (
	"fmt"

	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/value"
)

// ColumnReader turns a serialized column back into a tag.
type ColumnReader func(raw any) (relation.ColumnTag, error)

// PlainColumns reads columns written as plain strings.
func PlainColumns(raw any) (relation.ColumnTag, error) {
	s, ok := raw.(string)
	if !ok {
		return "", relation.NewSerializationError("", "expected a column name string, got %T", raw)
	}
	return relation.Column(s), nil
}

// Reader decodes the serialized forms written by Serialize.
type Reader struct {
	ReadColumn ColumnReader
}

// NewReader returns a reader using readColumn, or PlainColumns when nil.
func NewReader(readColumn ColumnReader) *Reader {
	if readColumn == nil {
		readColumn = PlainColumns
	}
	return &Reader{ReadColumn: readColumn}
}

// IsPredicateDocument reports whether doc carries one of the expression
// predicate types, as opposed to a generic named predicate.
func IsPredicateDocument(doc map[string]any) bool {
	switch doc["type"] {
	case "predicate_literal", "predicate_reference", "predicate_function",
		"in_container", "logical_not", "logical_and", "logical_or":
		return true
	}
	return false
}

// ReadExpression decodes an Expression.
func (r *Reader) ReadExpression(raw any) (Expression, error) {
	doc, kind, err := document(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "literal":
		v, err := value.FromAny(doc["value"])
		if err != nil {
			return nil, relation.NewSerializationError("value", "%v", err)
		}
		return Literal{Value: v}, nil
	case "reference":
		tag, err := r.ReadColumn(doc["tag"])
		if err != nil {
			return nil, err
		}
		return Reference{Tag: tag}, nil
	case "function":
		name, args, err := r.readCall(doc)
		if err != nil {
			return nil, err
		}
		return Function{Name: name, Args: args}, nil
	default:
		return nil, relation.NewSerializationError("type", "unknown expression type %q", kind)
	}
}

// ReadPredicate decodes a Predicate.
func (r *Reader) ReadPredicate(raw any) (Predicate, error) {
	doc, kind, err := document(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "predicate_literal":
		b, ok := doc["value"].(bool)
		if !ok {
			return nil, relation.NewSerializationError("value", "expected a bool, got %T", doc["value"])
		}
		return PredicateLiteral{Value: b}, nil
	case "predicate_reference":
		tag, err := r.ReadColumn(doc["tag"])
		if err != nil {
			return nil, err
		}
		return PredicateReference{Tag: tag}, nil
	case "predicate_function":
		name, args, err := r.readCall(doc)
		if err != nil {
			return nil, err
		}
		return PredicateFunction{Name: name, Args: args}, nil
	case "in_container":
		item, err := r.ReadExpression(doc["item"])
		if err != nil {
			return nil, err
		}
		c, err := r.ReadContainer(doc["container"])
		if err != nil {
			return nil, err
		}
		return InContainer{Item: item, Container: c}, nil
	case "logical_not":
		base, err := r.ReadPredicate(doc["base"])
		if err != nil {
			return nil, err
		}
		return LogicalNot{Base: base}, nil
	case "logical_and", "logical_or":
		items, err := list(doc["operands"], "operands")
		if err != nil {
			return nil, err
		}
		ops := make([]Predicate, len(items))
		for i, item := range items {
			if ops[i], err = r.ReadPredicate(item); err != nil {
				return nil, fmt.Errorf("operands[%d]: %w", i, err)
			}
		}
		if kind == "logical_and" {
			return LogicalAnd{Operands: ops}, nil
		}
		return LogicalOr{Operands: ops}, nil
	default:
		return nil, relation.NewSerializationError("type", "unknown predicate type %q", kind)
	}
}

// ReadContainer decodes a Container.
func (r *Reader) ReadContainer(raw any) (Container, error) {
	doc, kind, err := document(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "range":
		var bounds [3]int64
		for i, field := range []string{"start", "stop", "step"} {
			v, err := value.FromAny(doc[field])
			if err != nil {
				return nil, relation.NewSerializationError(field, "%v", err)
			}
			n, ok := v.(value.Int)
			if !ok {
				return nil, relation.NewSerializationError(field, "expected an integer, got %s", v)
			}
			bounds[i] = int64(n)
		}
		return Range(bounds[0], bounds[1], bounds[2])
	case "sequence":
		items, err := list(doc["items"], "items")
		if err != nil {
			return nil, err
		}
		exprs := make([]Expression, len(items))
		for i, item := range items {
			if exprs[i], err = r.ReadExpression(item); err != nil {
				return nil, fmt.Errorf("items[%d]: %w", i, err)
			}
		}
		return Sequence{Items: exprs}, nil
	default:
		return nil, relation.NewSerializationError("type", "unknown container type %q", kind)
	}
}

// ReadOrderBy decodes an OrderBy term.
func (r *Reader) ReadOrderBy(raw any) (OrderBy, error) {
	doc, ok := raw.(map[string]any)
	if !ok {
		return OrderBy{}, relation.NewSerializationError("", "expected a mapping, got %T", raw)
	}
	e, err := r.ReadExpression(doc["expression"])
	if err != nil {
		return OrderBy{}, err
	}
	asc, ok := doc["ascending"].(bool)
	if !ok {
		return OrderBy{}, relation.NewSerializationError("ascending", "expected a bool, got %T", doc["ascending"])
	}
	return OrderBy{Expression: e, Asc: asc}, nil
}

func (r *Reader) readCall(doc map[string]any) (string, []Expression, error) {
	name, ok := doc["name"].(string)
	if !ok || name == "" {
		return "", nil, relation.NewSerializationError("name", "expected a function name")
	}
	items, err := list(doc["args"], "args")
	if err != nil {
		return "", nil, err
	}
	args := make([]Expression, len(items))
	for i, item := range items {
		if args[i], err = r.ReadExpression(item); err != nil {
			return "", nil, fmt.Errorf("args[%d]: %w", i, err)
		}
	}
	return name, args, nil
}

func document(raw any) (map[string]any, string, error) {
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, "", relation.NewSerializationError("", "expected a mapping, got %T", raw)
	}
	kind, ok := doc["type"].(string)
	if !ok {
		return nil, "", relation.NewSerializationError("type", "missing type discriminator")
	}
	return doc, kind, nil
}

func list(raw any, field string) ([]any, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, relation.NewSerializationError(field, "expected a list, got %T", raw)
	}
	return items, nil
}
