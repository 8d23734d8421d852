package iteration

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/value"
)

// Row maps column tags to values.
type Row map[relation.ColumnTag]value.Value

// Rows is a bag of rows.
type Rows []Row

// NewRow converts plain Go values into a Row.
func NewRow(m map[string]any) (Row, error) {
	row := make(Row, len(m))
	for k, v := range m {
		val, err := value.FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", k, err)
		}
		row[relation.Column(k)] = val
	}
	return row, nil
}

// NewRows converts a list of plain rows.
func NewRows(ms ...map[string]any) (Rows, error) {
	rows := make(Rows, len(ms))
	for i, m := range ms {
		row, err := NewRow(m)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows[i] = row
	}
	return rows, nil
}

// MustRows is NewRows for literals known to be valid.
func MustRows(ms ...map[string]any) Rows {
	rows, err := NewRows(ms...)
	if err != nil {
		panic(err)
	}
	return rows
}

// Project keeps only cols.
func (r Row) Project(cols relation.ColumnSet) Row {
	out := make(Row, cols.Len())
	for _, c := range cols.Tags() {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}

// merged returns the union of two rows' columns. Shared columns take the
// value from r, which the caller has checked equal.
func (r Row) merged(other Row) Row {
	out := make(Row, len(r)+len(other))
	for k, v := range other {
		out[k] = v
	}
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Plain converts the row back into plain Go values.
func (r Row) Plain() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[string(k)] = value.Go(v)
	}
	return out
}

// Plain converts every row.
func (rs Rows) Plain() []map[string]any {
	out := make([]map[string]any, len(rs))
	for i, r := range rs {
		out[i] = r.Plain()
	}
	return out
}

// Sorted returns a copy ordered by the given columns in turn, for
// comparing bags regardless of row order.
func (rs Rows) Sorted(cols relation.ColumnSet) Rows {
	out := slices.Clone(rs)
	tags := cols.Tags()
	slices.SortStableFunc(out, func(a, b Row) int {
		for _, c := range tags {
			if n := value.Compare(a[c], b[c]); n != 0 {
				return n
			}
		}
		return 0
	})
	return out
}

// String formats rows one per line with columns in cols order.
func (rs Rows) String(cols relation.ColumnSet) string {
	var b strings.Builder
	for _, r := range rs {
		parts := make([]string, 0, cols.Len())
		for _, c := range cols.Tags() {
			v := r[c]
			if v == nil {
				v = value.Null{}
			}
			parts = append(parts, fmt.Sprintf("%s=%s", c, v))
		}
		b.WriteString(strings.Join(parts, " "))
		b.WriteByte('\n')
	}
	return b.String()
}

func keyDigest(d *value.Digest, row Row, cols []relation.ColumnTag) uint64 {
	d.Reset()
	for _, c := range cols {
		d.Add(row[c])
	}
	return d.Sum64()
}

func sameOn(a, b Row, cols []relation.ColumnTag) bool {
	for _, c := range cols {
		if !value.Equal(a[c], b[c]) {
			return false
		}
	}
	return true
}
