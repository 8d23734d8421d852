package sqlengine

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/store"
)

// query is a SELECT under construction. Column expressions are written in
// the scope of the FROM clause, so WHERE terms and computed columns can be
// added until DISTINCT, ORDER BY, LIMIT or UNION ALL seal the query.
type query struct {
	cols  []relation.ColumnTag
	exprs map[relation.ColumnTag]sq.Sqlizer
	// from selects from source, which joins name when they read q.
	from     sq.SelectBuilder
	source   sq.Sqlizer
	hasFrom  bool
	joins    []sq.Sqlizer
	where    []sq.Sqlizer
	distinct bool
	orderBy  []sq.Sqlizer
	offset   int
	limit    int
	// compound holds the rendered UNION ALL of the members of a union.
	compound *sq.SelectBuilder
}

func newQuery(cols relation.ColumnSet) *query {
	return &query{
		cols:  cols.Tags(),
		exprs: make(map[relation.ColumnTag]sq.Sqlizer, cols.Len()),
		limit: relation.Unbounded,
	}
}

// sliced reports whether the query orders or windows its rows.
func (q *query) sliced() bool {
	return len(q.orderBy) > 0 || q.offset > 0 || q.limit != relation.Unbounded
}

// sealed reports whether a WHERE term added now would change the meaning
// of the query.
func (q *query) sealed() bool {
	return q.compound != nil || q.distinct || q.sliced()
}

// single reports whether the query reads one source with nothing but
// filters and computed columns on top, so it can take part in a join.
func (q *query) single() bool {
	return q.hasFrom && len(q.joins) == 0 && !q.sealed()
}

func (q *query) builder() sq.SelectBuilder {
	if q.compound != nil {
		return *q.compound
	}
	b := sq.StatementBuilder.PlaceholderFormat(sq.Question).Select()
	if q.hasFrom {
		b = q.from
	}
	if len(q.cols) == 0 {
		// SQLite has no zero-column SELECT.
		b = b.Column(sq.Alias(sq.Expr("1"), store.Quote("_unit")))
	}
	for _, c := range q.cols {
		b = b.Column(sq.Alias(q.exprs[c], store.Quote(string(c))))
	}
	for _, j := range q.joins {
		b = b.JoinClause(j)
	}
	for _, w := range q.where {
		b = b.Where(w)
	}
	if q.distinct {
		b = b.Distinct()
	}
	for _, o := range q.orderBy {
		b = b.OrderByClause(o)
	}
	switch {
	case q.limit != relation.Unbounded:
		b = b.Limit(uint64(q.limit))
		if q.offset > 0 {
			b = b.Offset(uint64(q.offset))
		}
	case q.offset > 0:
		// SQLite only accepts OFFSET after a LIMIT.
		b = b.Suffix("LIMIT -1 OFFSET ?", q.offset)
	}
	return b
}

// columnsOf returns the expressions of cols.
func (q *query) columnsOf(cols relation.ColumnSet) (map[relation.ColumnTag]sq.Sqlizer, error) {
	out := make(map[relation.ColumnTag]sq.Sqlizer, cols.Len())
	for _, c := range cols.Tags() {
		e, ok := q.exprs[c]
		if !ok {
			return nil, fmt.Errorf("column %s is not in scope", c)
		}
		out[c] = e
	}
	return out, nil
}

func columnRef(alias, column string) sq.Sqlizer {
	return sq.Expr(alias + "." + store.Quote(column))
}
