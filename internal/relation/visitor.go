package relation

// Visitor handles each node kind. Visit dispatches to the method for the
// concrete kind of a relation; traversal order is up to the visitor.
type Visitor[T any] interface {
	VisitLeaf(*Leaf) (T, error)
	VisitJoin(*Join) (T, error)
	VisitUnion(*Union) (T, error)
	VisitProjection(*Projection) (T, error)
	VisitSelection(*Selection) (T, error)
	VisitDistinct(*Distinct) (T, error)
	VisitSlice(*Slice) (T, error)
	VisitTransfer(*Transfer) (T, error)
	VisitMaterialization(*Materialization) (T, error)
	VisitCalculation(*Calculation) (T, error)
	VisitExtension(*Extension) (T, error)
}

// Visit calls the visitor method matching r's kind.
func Visit[T any](r Relation, v Visitor[T]) (T, error) {
	d := &dispatch[T]{visitor: v}
	r.accept(d)
	return d.result, d.err
}

type dispatcher interface {
	leaf(*Leaf)
	join(*Join)
	union(*Union)
	projection(*Projection)
	selection(*Selection)
	distinct(*Distinct)
	slice(*Slice)
	transfer(*Transfer)
	materialization(*Materialization)
	calculation(*Calculation)
	extension(*Extension)
}

type dispatch[T any] struct {
	visitor Visitor[T]
	result  T
	err     error
}

func (d *dispatch[T]) leaf(n *Leaf)             { d.result, d.err = d.visitor.VisitLeaf(n) }
func (d *dispatch[T]) join(n *Join)             { d.result, d.err = d.visitor.VisitJoin(n) }
func (d *dispatch[T]) union(n *Union)           { d.result, d.err = d.visitor.VisitUnion(n) }
func (d *dispatch[T]) projection(n *Projection) { d.result, d.err = d.visitor.VisitProjection(n) }
func (d *dispatch[T]) selection(n *Selection)   { d.result, d.err = d.visitor.VisitSelection(n) }
func (d *dispatch[T]) distinct(n *Distinct)     { d.result, d.err = d.visitor.VisitDistinct(n) }
func (d *dispatch[T]) slice(n *Slice)           { d.result, d.err = d.visitor.VisitSlice(n) }
func (d *dispatch[T]) transfer(n *Transfer)     { d.result, d.err = d.visitor.VisitTransfer(n) }

func (d *dispatch[T]) materialization(n *Materialization) {
	d.result, d.err = d.visitor.VisitMaterialization(n)
}

func (d *dispatch[T]) calculation(n *Calculation) { d.result, d.err = d.visitor.VisitCalculation(n) }
func (d *dispatch[T]) extension(n *Extension)     { d.result, d.err = d.visitor.VisitExtension(n) }
