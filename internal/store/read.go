package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"github.com/roach88/relir/internal/value"
)

// ErrTableNotFound is returned by Catalog for names that are not cataloged.
var ErrTableNotFound = errors.New("table not found")

// Result holds the rows of a query, with values in column order.
type Result struct {
	Columns []string
	Rows    [][]value.Value
}

// Maps returns each row keyed by column name.
func (r *Result) Maps() []map[string]value.Value {
	out := make([]map[string]value.Value, len(r.Rows))
	for i, row := range r.Rows {
		m := make(map[string]value.Value, len(r.Columns))
		for j, c := range r.Columns {
			m[c] = row[j]
		}
		out[i] = m
	}
	return out
}

// Catalog returns the description of the table named name.
func (s *Store) Catalog(ctx context.Context, name string) (Table, error) {
	var cols, keys string
	err := s.stbl.Select("columns", "unique_keys").
		From("relir_tables").
		Where("name = ?", name).
		QueryRowContext(ctx).
		Scan(&cols, &keys)
	if errors.Is(err, sql.ErrNoRows) {
		return Table{}, errors.Wrapf(ErrTableNotFound, "%s", name)
	}
	if err != nil {
		return Table{}, errors.Wrapf(err, "read catalog for %s", name)
	}
	return decodeTable(name, cols, keys)
}

// Tables lists the catalog in creation order.
func (s *Store) Tables(ctx context.Context) ([]Table, error) {
	rows, err := s.stbl.Select("name", "columns", "unique_keys").
		From("relir_tables").
		OrderBy("seq ASC", "name ASC").
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list catalog")
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var name, cols, keys string
		if err := rows.Scan(&name, &cols, &keys); err != nil {
			return nil, errors.Wrap(err, "scan catalog")
		}
		t, err := decodeTable(name, cols, keys)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, errors.Wrap(rows.Err(), "list catalog")
}

// Query runs a SELECT and decodes every row.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "query columns")
	}
	res := &Result{Columns: cols}
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		row := make([]value.Value, len(cols))
		for i, v := range raw {
			if row[i], err = value.FromAny(v); err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", len(res.Rows), cols[i], err)
			}
		}
		res.Rows = append(res.Rows, row)
	}
	return res, errors.Wrap(rows.Err(), "query")
}

func decodeTable(name, cols, keys string) (Table, error) {
	t := Table{Name: name}
	var err error
	if t.Columns, err = unmarshalColumns(cols); err != nil {
		return Table{}, errors.Wrapf(err, "catalog entry %s", name)
	}
	if t.UniqueKeys, err = unmarshalKeys(keys); err != nil {
		return Table{}, errors.Wrapf(err, "catalog entry %s", name)
	}
	return t, nil
}
