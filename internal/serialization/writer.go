package serialization

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/value"
)

// DictWriter converts relation trees into nested maps keyed by a "type"
// discriminator. Every collection it writes is sorted by its written form
// so that equivalent trees produce identical documents; opaque payloads
// (leaf parameters, extension fields, predicate general state) are written
// as given.
type DictWriter struct {
	// ColumnFormat overrides how column tags are written. Nil writes the
	// tag as a string.
	ColumnFormat func(relation.ColumnTag) any
	// EngineFormat overrides how engines are written. Nil writes the
	// engine's String form.
	EngineFormat func(relation.Engine) any
}

// NewDictWriter returns a writer using the default column and engine forms.
func NewDictWriter() *DictWriter {
	return &DictWriter{}
}

// Write serializes r.
func (w *DictWriter) Write(r relation.Relation) (map[string]any, error) {
	return relation.Visit[map[string]any](r, w)
}

func (w *DictWriter) WriteColumn(tag relation.ColumnTag) any {
	if w.ColumnFormat != nil {
		return w.ColumnFormat(tag)
	}
	return string(tag)
}

func (w *DictWriter) WriteColumns(cols relation.ColumnSet) []any {
	out := make([]any, 0, cols.Len())
	for _, tag := range cols.Tags() {
		out = append(out, w.WriteColumn(tag))
	}
	sortWritten(out)
	return out
}

func (w *DictWriter) WriteUniqueKeys(keys relation.KeySet) []any {
	out := make([]any, 0, keys.Len())
	for _, key := range keys.Keys() {
		out = append(out, w.WriteColumns(key))
	}
	sortWritten(out)
	return out
}

func (w *DictWriter) WriteEngine(engine relation.Engine) any {
	if w.EngineFormat != nil {
		return w.EngineFormat(engine)
	}
	return engine.String()
}

func (w *DictWriter) VisitLeaf(l *relation.Leaf) (map[string]any, error) {
	doc := l.Serialize(w)
	doc["type"] = "leaf"
	return doc, nil
}

func (w *DictWriter) VisitJoin(j *relation.Join) (map[string]any, error) {
	relations, err := w.writeRelations(j.Relations())
	if err != nil {
		return nil, err
	}
	conditions := make([]any, 0, len(j.Conditions()))
	for _, c := range j.Conditions() {
		doc, err := c.Serialize(w)
		if err != nil {
			return nil, fmt.Errorf("join condition %s: %w", c, err)
		}
		conditions = append(conditions, doc)
	}
	sortWritten(conditions)
	return map[string]any{
		"type":       "join",
		"engine":     w.WriteEngine(j.JoinEngine()),
		"relations":  relations,
		"conditions": conditions,
	}, nil
}

func (w *DictWriter) VisitUnion(u *relation.Union) (map[string]any, error) {
	relations, err := w.writeRelations(u.Relations())
	if err != nil {
		return nil, err
	}
	doomed := make([]any, 0, len(u.ExtraDoomedBy()))
	for _, msg := range u.ExtraDoomedBy() {
		doomed = append(doomed, msg)
	}
	return map[string]any{
		"type":            "union",
		"engine":          w.WriteEngine(u.UnionEngine()),
		"columns":         w.WriteColumns(u.Columns()),
		"relations":       relations,
		"unique_keys":     w.WriteUniqueKeys(u.UniqueKeys()),
		"extra_doomed_by": doomed,
	}, nil
}

func (w *DictWriter) VisitProjection(p *relation.Projection) (map[string]any, error) {
	return w.unary("projection", p, map[string]any{"columns": w.WriteColumns(p.Columns())})
}

func (w *DictWriter) VisitSelection(s *relation.Selection) (map[string]any, error) {
	predicates := make([]any, 0, len(s.Predicates()))
	for _, p := range s.Predicates() {
		doc, err := p.Serialize(w)
		if err != nil {
			return nil, fmt.Errorf("predicate %s: %w", p, err)
		}
		predicates = append(predicates, doc)
	}
	sortWritten(predicates)
	return w.unary("selection", s, map[string]any{"predicates": predicates})
}

func (w *DictWriter) VisitDistinct(d *relation.Distinct) (map[string]any, error) {
	return w.unary("distinct", d, map[string]any{"unique_keys": w.WriteUniqueKeys(d.UniqueKeys())})
}

func (w *DictWriter) VisitSlice(s *relation.Slice) (map[string]any, error) {
	orderBy := make([]any, 0, len(s.OrderBy()))
	for _, term := range s.OrderBy() {
		doc, err := term.Serialize(w)
		if err != nil {
			return nil, fmt.Errorf("order by %s: %w", term, err)
		}
		orderBy = append(orderBy, doc)
	}
	var limit any
	if n, ok := s.Limit(); ok {
		limit = n
	}
	return w.unary("slice", s, map[string]any{
		"order_by": orderBy,
		"offset":   s.Offset(),
		"limit":    limit,
	})
}

func (w *DictWriter) VisitTransfer(t *relation.Transfer) (map[string]any, error) {
	return w.unary("transfer", t, map[string]any{"destination": w.WriteEngine(t.Destination())})
}

func (w *DictWriter) VisitMaterialization(m *relation.Materialization) (map[string]any, error) {
	return w.unary("materialization", m, map[string]any{"name": m.Name()})
}

func (w *DictWriter) VisitCalculation(c *relation.Calculation) (map[string]any, error) {
	expression, err := c.Expression().Serialize(w)
	if err != nil {
		return nil, fmt.Errorf("calculation %s: %w", c.Tag(), err)
	}
	return w.unary("calculation", c, map[string]any{
		"tag":        w.WriteColumn(c.Tag()),
		"expression": expression,
	})
}

func (w *DictWriter) VisitExtension(e *relation.Extension) (map[string]any, error) {
	payload, err := e.Op().Serialize(w)
	if err != nil {
		return nil, fmt.Errorf("extension %s: %w", e.Op().Name(), err)
	}
	for _, reserved := range []string{"type", "name", "base"} {
		if _, ok := payload[reserved]; ok {
			return nil, relation.NewSerializationError(reserved, "extension %s writes reserved field %q", e.Op().Name(), reserved)
		}
	}
	payload["name"] = e.Op().Name()
	return w.unary("extension", e, payload)
}

func (w *DictWriter) unary(kind string, r relation.UnaryOperation, fields map[string]any) (map[string]any, error) {
	base, err := w.Write(r.Base())
	if err != nil {
		return nil, err
	}
	fields["type"] = kind
	fields["base"] = base
	return fields, nil
}

func (w *DictWriter) writeRelations(members []relation.Relation) ([]any, error) {
	out := make([]any, 0, len(members))
	for _, m := range members {
		doc, err := w.Write(m)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	sortWritten(out)
	return out, nil
}

// sortWritten orders written items by their canonical JSON form.
func sortWritten(items []any) {
	keys := make(map[int]string, len(items))
	idx := make([]int, len(items))
	for i, item := range items {
		idx[i] = i
		keys[i] = writtenKey(item)
	}
	slices.SortStableFunc(idx, func(a, b int) int { return strings.Compare(keys[a], keys[b]) })
	sorted := make([]any, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
}

func writtenKey(item any) string {
	if s, ok := item.(string); ok {
		return s
	}
	key, err := value.CanonicalString(item)
	if err != nil {
		return fmt.Sprint(item)
	}
	return key
}
