package serialization

import (
	"fmt"
	"maps"

	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/value"
)

// Reader rebuilds relation trees from documents written by DictWriter.
// Each node is rebuilt through its factory, which checks and simplifies
// that node alone; children were already rebuilt the same way.
type Reader struct {
	hooks  Hooks
	schema *Schema
	build  []relation.BuildOption
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithSchema validates each node against s before reading it. Passing nil
// disables validation.
func WithSchema(s *Schema) ReaderOption {
	return func(r *Reader) { r.schema = s }
}

// WithMixedEngines reads trees whose joins, unions, selections and slices
// span several engines, as produced before transfers are inserted.
func WithMixedEngines() ReaderOption {
	return func(r *Reader) { r.build = append(r.build, relation.SkipEngineChecks()) }
}

// WithNameGenerator names materializations whose documents carry no name.
func WithNameGenerator(g relation.NameGenerator) ReaderOption {
	return func(r *Reader) { r.build = append(r.build, relation.WithNameGenerator(g)) }
}

// NewReader returns a reader using hooks and the built-in schema.
func NewReader(hooks Hooks, opts ...ReaderOption) (*Reader, error) {
	schema, err := DefaultSchema()
	if err != nil {
		return nil, err
	}
	r := &Reader{hooks: hooks, schema: schema}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Read rebuilds a relation from doc.
func (r *Reader) Read(doc any) (relation.Relation, error) {
	return r.readRelation(doc, "")
}

func (r *Reader) readRelation(raw any, path string) (relation.Relation, error) {
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, relation.NewSerializationError(path, "expected a relation mapping, got %T", raw)
	}
	if r.schema != nil {
		if err := r.schema.ValidateNode(doc); err != nil {
			return nil, atPath(path, err)
		}
	}
	kind, _ := doc["type"].(string)
	rel, err := r.readNode(kind, doc)
	if err != nil {
		return nil, atPath(path, err)
	}
	return rel, nil
}

func (r *Reader) readNode(kind string, doc map[string]any) (relation.Relation, error) {
	switch kind {
	case "leaf":
		return r.readLeaf(doc)
	case "join":
		return r.readJoin(doc)
	case "union":
		return r.readUnion(doc)
	}

	base, err := r.readRelation(doc["base"], "base")
	if err != nil {
		return nil, err
	}
	switch kind {
	case "projection":
		cols, err := readColumns(r.hooks, doc["columns"], "columns")
		if err != nil {
			return nil, err
		}
		return relation.NewProjection(base, cols)
	case "selection":
		items, err := list(doc["predicates"], "predicates")
		if err != nil {
			return nil, err
		}
		preds := make([]relation.Predicate, len(items))
		for i, item := range items {
			d, err := mapping(item, fmt.Sprintf("predicates[%d]", i))
			if err != nil {
				return nil, err
			}
			if preds[i], err = r.hooks.ReadPredicate(d); err != nil {
				return nil, fmt.Errorf("predicates[%d]: %w", i, err)
			}
		}
		return relation.NewSelection(base, preds, r.build...)
	case "distinct":
		keys, err := readKeys(r.hooks, doc["unique_keys"], "unique_keys")
		if err != nil {
			return nil, err
		}
		return relation.NewDistinct(base, relation.NewKeySet(keys...))
	case "slice":
		return r.readSlice(base, doc)
	case "transfer":
		dest, err := r.hooks.ReadEngine(doc["destination"])
		if err != nil {
			return nil, fmt.Errorf("destination: %w", err)
		}
		return relation.NewTransfer(base, dest)
	case "materialization":
		name, _ := doc["name"].(string)
		return relation.NewMaterialization(base, name, r.build...)
	case "calculation":
		tag, err := r.hooks.ReadColumn(doc["tag"])
		if err != nil {
			return nil, fmt.Errorf("tag: %w", err)
		}
		d, err := mapping(doc["expression"], "expression")
		if err != nil {
			return nil, err
		}
		e, err := r.hooks.ReadExpression(d)
		if err != nil {
			return nil, fmt.Errorf("expression: %w", err)
		}
		return relation.NewCalculation(base, tag, e)
	case "extension":
		name, _ := doc["name"].(string)
		payload := maps.Clone(doc)
		delete(payload, "type")
		delete(payload, "name")
		delete(payload, "base")
		op, err := r.hooks.ReadExtension(name, base, payload)
		if err != nil {
			return nil, err
		}
		return relation.NewExtension(op)
	default:
		return nil, relation.NewSerializationError("type", "unknown relation type %q", kind)
	}
}

func (r *Reader) readLeaf(doc map[string]any) (relation.Relation, error) {
	spec := LeafSpec{Extra: map[string]any{}}
	spec.Name, _ = doc["name"].(string)
	var err error
	if spec.Engine, err = r.hooks.ReadEngine(doc["engine"]); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if spec.Columns, err = readColumns(r.hooks, doc["columns"], "columns"); err != nil {
		return nil, err
	}
	if spec.UniqueKeys, err = readKeys(r.hooks, doc["unique_keys"], "unique_keys"); err != nil {
		return nil, err
	}
	if spec.FullKeys, err = readColumns(r.hooks, doc["full_keys"], "full_keys"); err != nil {
		return nil, err
	}
	if params, ok := doc["parameters"].(map[string]any); ok {
		spec.Parameters = maps.Clone(params)
	}
	if spec.DoomedBy, err = readStrings(doc["doomed_by"], "doomed_by"); err != nil {
		return nil, err
	}
	for k, v := range doc {
		switch k {
		case "type", "name", "engine", "columns", "unique_keys", "full_keys", "parameters", "doomed_by":
		default:
			spec.Extra[k] = v
		}
	}
	return r.hooks.ReadLeaf(spec)
}

func (r *Reader) readJoin(doc map[string]any) (relation.Relation, error) {
	engine, err := r.hooks.ReadEngine(doc["engine"])
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	members, err := r.readMembers(doc["relations"])
	if err != nil {
		return nil, err
	}
	items, err := list(doc["conditions"], "conditions")
	if err != nil {
		return nil, err
	}
	conditions := make([]*relation.JoinCondition, len(items))
	for i, item := range items {
		d, err := mapping(item, fmt.Sprintf("conditions[%d]", i))
		if err != nil {
			return nil, err
		}
		if conditions[i], err = r.hooks.ReadJoinCondition(d); err != nil {
			return nil, fmt.Errorf("conditions[%d]: %w", i, err)
		}
	}
	return relation.NewJoin(engine, members, conditions, r.build...)
}

func (r *Reader) readUnion(doc map[string]any) (relation.Relation, error) {
	engine, err := r.hooks.ReadEngine(doc["engine"])
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	cols, err := readColumns(r.hooks, doc["columns"], "columns")
	if err != nil {
		return nil, err
	}
	members, err := r.readMembers(doc["relations"])
	if err != nil {
		return nil, err
	}
	keys, err := readKeys(r.hooks, doc["unique_keys"], "unique_keys")
	if err != nil {
		return nil, err
	}
	doomed, err := readStrings(doc["extra_doomed_by"], "extra_doomed_by")
	if err != nil {
		return nil, err
	}
	return relation.NewUnion(engine, cols, members, relation.NewKeySet(keys...), doomed, r.build...)
}

func (r *Reader) readSlice(base relation.Relation, doc map[string]any) (relation.Relation, error) {
	items, err := list(doc["order_by"], "order_by")
	if err != nil {
		return nil, err
	}
	terms := make([]relation.OrderByTerm, len(items))
	for i, item := range items {
		d, err := mapping(item, fmt.Sprintf("order_by[%d]", i))
		if err != nil {
			return nil, err
		}
		if terms[i], err = r.hooks.ReadOrderByTerm(d); err != nil {
			return nil, fmt.Errorf("order_by[%d]: %w", i, err)
		}
	}
	offset, err := readInt(doc["offset"], "offset", 0)
	if err != nil {
		return nil, err
	}
	limit, err := readInt(doc["limit"], "limit", relation.Unbounded)
	if err != nil {
		return nil, err
	}
	return relation.NewSlice(base, terms, offset, limit, r.build...)
}

func (r *Reader) readMembers(raw any) ([]relation.Relation, error) {
	items, err := list(raw, "relations")
	if err != nil {
		return nil, err
	}
	members := make([]relation.Relation, len(items))
	for i, item := range items {
		if members[i], err = r.readRelation(item, fmt.Sprintf("relations[%d]", i)); err != nil {
			return nil, err
		}
	}
	return members, nil
}

func readColumns(h Hooks, raw any, field string) (relation.ColumnSet, error) {
	items, err := list(raw, field)
	if err != nil {
		return relation.ColumnSet{}, err
	}
	tags := make([]relation.ColumnTag, len(items))
	for i, item := range items {
		if tags[i], err = h.ReadColumn(item); err != nil {
			return relation.ColumnSet{}, fmt.Errorf("%s[%d]: %w", field, i, err)
		}
	}
	return relation.NewColumnSet(tags...), nil
}

func readKeys(h Hooks, raw any, field string) ([]relation.UniqueKey, error) {
	items, err := list(raw, field)
	if err != nil {
		return nil, err
	}
	keys := make([]relation.UniqueKey, len(items))
	for i, item := range items {
		if keys[i], err = readColumns(h, item, fmt.Sprintf("%s[%d]", field, i)); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func readStrings(raw any, field string) ([]string, error) {
	items, err := list(raw, field)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, relation.NewSerializationError(fmt.Sprintf("%s[%d]", field, i), "expected a string, got %T", item)
		}
		out[i] = s
	}
	return out, nil
}

func readInt(raw any, field string, missing int) (int, error) {
	if raw == nil {
		return missing, nil
	}
	v, err := value.FromAny(raw)
	if err != nil {
		return 0, relation.NewSerializationError(field, "%v", err)
	}
	n, ok := v.(value.Int)
	if !ok {
		return 0, relation.NewSerializationError(field, "expected an integer, got %s", v)
	}
	return int(n), nil
}

// list accepts a missing field as empty, and rejects strings and other
// non-list values.
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

func mapping(raw any, field string) (map[string]any, error) {
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, relation.NewSerializationError(field, "expected a mapping, got %T", raw)
	}
	return doc, nil
}

func joinPath(path, field string) string {
	switch {
	case path == "":
		return field
	case field == "":
		return path
	}
	return path + "." + field
}

// atPath prefixes the location of err with the field of the node it was
// found under. Each level of the tree adds its own field.
func atPath(path string, err error) error {
	if path == "" {
		return err
	}
	if se, ok := err.(*relation.SerializationError); ok {
		return &relation.SerializationError{Message: se.Message, Path: joinPath(path, se.Path)}
	}
	return fmt.Errorf("%s: %w", path, err)
}
