package relation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kr/text"
)

// Diagnostics explains whether a relation is doomed to have no rows.
// Messages form an indented outline: each operation contributes a header
// line and nests the messages of its operands beneath it.
type Diagnostics struct {
	IsDoomed bool
	Messages []string
	// Relation is the input with doomed branches pruned, or a zero
	// relation carrying Messages if the whole input is doomed.
	Relation Relation
}

// Diagnose walks r and reports why it, or any part of it, is doomed.
func Diagnose(r Relation) (Diagnostics, error) {
	return Visit[Diagnostics](r, diagnosticsVisitor{})
}

// Text joins the messages into one block.
func (d Diagnostics) Text() string {
	return strings.Join(d.Messages, "\n")
}

type diagnosticsVisitor struct{}

func indent(messages []string) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = text.Indent(m, "  ")
	}
	return out
}

func doomedPlaceholder(r Relation, messages []string) Relation {
	return MakeZero(r.Engine().Destination(), r.Columns(), messages...)
}

func (diagnosticsVisitor) VisitLeaf(l *Leaf) (Diagnostics, error) {
	if msgs := l.DoomedBy(); len(msgs) > 0 {
		return Diagnostics{IsDoomed: true, Messages: msgs, Relation: doomedPlaceholder(l, msgs)}, nil
	}
	return Diagnostics{Relation: l}, nil
}

func (v diagnosticsVisitor) VisitJoin(j *Join) (Diagnostics, error) {
	results, err := v.visitMembers(j.relations)
	if err != nil {
		return Diagnostics{}, err
	}
	conds := make([]string, len(j.conditions))
	for i, c := range j.conditions {
		conds[i] = c.String()
	}
	header := fmt.Sprintf("Join (on conditions {%s})", strings.Join(conds, ", "))

	doomed := doomedIndices(results)
	var messages []string
	switch {
	case len(doomed) > 0:
		messages = append(messages, header+" is doomed because "+describeDoomedOperands(doomed, len(results))+":")
	case hasMessages(results):
		messages = append(messages, header+" is not doomed, but some contributions were:")
	}
	for _, r := range results {
		messages = append(messages, indent(r.Messages)...)
	}
	if len(doomed) > 0 {
		return Diagnostics{IsDoomed: true, Messages: messages, Relation: doomedPlaceholder(j, messages)}, nil
	}
	rel, err := rebuildMembers(j, j.relations, results, j.WithRelations)
	if err != nil {
		return Diagnostics{}, err
	}
	return Diagnostics{Messages: messages, Relation: rel}, nil
}

func (v diagnosticsVisitor) VisitUnion(u *Union) (Diagnostics, error) {
	if len(u.relations) == 0 {
		msgs := u.DoomedBy()
		return Diagnostics{IsDoomed: true, Messages: msgs, Relation: u}, nil
	}
	results, err := v.visitMembers(u.relations)
	if err != nil {
		return Diagnostics{}, err
	}
	header := fmt.Sprintf("Union (with unique keys %s)", u.uniqueKeys)

	doomed := doomedIndices(results)
	var survivors []Relation
	for _, r := range results {
		if !r.IsDoomed {
			survivors = append(survivors, r.Relation)
		}
	}
	var messages []string
	switch {
	case len(survivors) == 0:
		messages = append(messages, header+" is doomed because "+describeDoomedOperands(doomed, len(results))+":")
	case len(doomed) > 0 && len(results) == 2 && doomed[0] == 0:
		messages = append(messages, header+" collapses to the RHS because the LHS is doomed:")
	case len(doomed) > 0 && len(results) == 2:
		messages = append(messages, header+" collapses to the LHS because the RHS is doomed:")
	case len(doomed) > 0:
		messages = append(messages, header+" is not doomed, but "+describeDoomedOperands(doomed, len(results))+":")
	case hasMessages(results) || len(u.extraDoomedBy) > 0:
		messages = append(messages, header+" is not doomed, but some contributions were:")
	}
	messages = append(messages, indent(u.extraDoomedBy)...)
	for _, r := range results {
		messages = append(messages, indent(r.Messages)...)
	}

	if len(survivors) == 0 {
		return Diagnostics{IsDoomed: true, Messages: messages, Relation: doomedPlaceholder(u, messages)}, nil
	}
	if len(survivors) == 1 {
		return Diagnostics{Messages: messages, Relation: survivors[0]}, nil
	}
	var rel Relation = u
	if len(doomed) > 0 {
		if rel, err = u.WithRelations(survivors); err != nil {
			return Diagnostics{}, err
		}
	} else if rel, err = rebuildMembers(u, u.relations, results, u.WithRelations); err != nil {
		return Diagnostics{}, err
	}
	return Diagnostics{Messages: messages, Relation: rel}, nil
}

func (v diagnosticsVisitor) VisitProjection(p *Projection) (Diagnostics, error) {
	return v.visitUnary(fmt.Sprintf("Projection (to columns %s)", p.columns), p)
}

func (v diagnosticsVisitor) VisitSelection(s *Selection) (Diagnostics, error) {
	preds := make([]string, len(s.predicates))
	for i, p := range s.predicates {
		preds[i] = p.String()
	}
	return v.visitUnary(fmt.Sprintf("Selection (with predicates {%s})", strings.Join(preds, ", ")), s)
}

func (v diagnosticsVisitor) VisitDistinct(d *Distinct) (Diagnostics, error) {
	return v.visitUnary(fmt.Sprintf("Distinct operation (with unique keys %s)", d.uniqueKeys), d)
}

func (v diagnosticsVisitor) VisitSlice(s *Slice) (Diagnostics, error) {
	terms := make([]string, len(s.orderBy))
	for i, t := range s.orderBy {
		terms[i] = t.String()
	}
	header := fmt.Sprintf("Slice (ordered by [%s], offset=%d, limit=%s)", strings.Join(terms, ", "), s.offset, formatLimit(s.limit))
	if s.limit != 0 {
		return v.visitUnary(header, s)
	}
	base, err := Visit[Diagnostics](s.base, v)
	if err != nil {
		return Diagnostics{}, err
	}
	messages := append([]string{header + " is doomed because its limit is zero."}, indent(base.Messages)...)
	return Diagnostics{IsDoomed: true, Messages: messages, Relation: doomedPlaceholder(s, messages)}, nil
}

func (v diagnosticsVisitor) VisitTransfer(t *Transfer) (Diagnostics, error) {
	return v.visitUnary(fmt.Sprintf("Transfer (to engine %s)", t.destination), t)
}

func (v diagnosticsVisitor) VisitMaterialization(m *Materialization) (Diagnostics, error) {
	return v.visitUnary(fmt.Sprintf("Materialization (with name %q)", m.name), m)
}

func (v diagnosticsVisitor) VisitCalculation(c *Calculation) (Diagnostics, error) {
	return v.visitUnary(fmt.Sprintf("Calculation operation (column %q)", string(c.tag)), c)
}

func (v diagnosticsVisitor) VisitExtension(e *Extension) (Diagnostics, error) {
	return v.visitUnary(fmt.Sprintf("Extension operation %s", e.op.Name()), e)
}

func (v diagnosticsVisitor) visitUnary(header string, op UnaryOperation) (Diagnostics, error) {
	base, err := Visit[Diagnostics](op.Base(), v)
	if err != nil {
		return Diagnostics{}, err
	}
	var messages []string
	switch {
	case base.IsDoomed:
		messages = append(messages, header+" is doomed because:")
	case len(base.Messages) > 0:
		messages = append(messages, header+" is not doomed, but some contributions were:")
	}
	messages = append(messages, indent(base.Messages)...)
	if base.IsDoomed {
		return Diagnostics{IsDoomed: true, Messages: messages, Relation: doomedPlaceholder(op, messages)}, nil
	}
	var rel Relation = op
	if base.Relation != op.Base() {
		if rel, err = op.Rebased(base.Relation); err != nil {
			return Diagnostics{}, err
		}
	}
	return Diagnostics{Messages: messages, Relation: rel}, nil
}

func (v diagnosticsVisitor) visitMembers(members []Relation) ([]Diagnostics, error) {
	out := make([]Diagnostics, len(members))
	for i, m := range members {
		d, err := Visit[Diagnostics](m, v)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

func rebuildMembers(original Relation, members []Relation, results []Diagnostics, rebuild func([]Relation) (Relation, error)) (Relation, error) {
	changed := false
	rels := make([]Relation, len(results))
	for i, r := range results {
		rels[i] = r.Relation
		changed = changed || r.Relation != members[i]
	}
	if !changed {
		return original, nil
	}
	return rebuild(rels)
}

func doomedIndices(results []Diagnostics) []int {
	var out []int
	for i, r := range results {
		if r.IsDoomed {
			out = append(out, i)
		}
	}
	return out
}

func hasMessages(results []Diagnostics) bool {
	for _, r := range results {
		if len(r.Messages) > 0 {
			return true
		}
	}
	return false
}

func describeDoomedOperands(doomed []int, n int) string {
	if n == 2 {
		switch {
		case len(doomed) == 2:
			return "both operands are doomed"
		case doomed[0] == 0:
			return "the LHS operand is doomed"
		default:
			return "the RHS operand is doomed"
		}
	}
	if len(doomed) == n {
		return "all operands are doomed"
	}
	idx := make([]string, len(doomed))
	for i, d := range doomed {
		idx[i] = strconv.Itoa(d)
	}
	if len(doomed) == 1 {
		return "operand " + idx[0] + " is doomed"
	}
	return "operands " + strings.Join(idx, ", ") + " are doomed"
}
