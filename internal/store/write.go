package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/roach88/relir/internal/value"
)

// insertBatchSize bounds the rows written by one INSERT statement, keeping
// the parameter count under SQLite's limit for moderately wide tables.
const insertBatchSize = 100

// Table describes a leaf table in the catalog.
type Table struct {
	Name       string
	Columns    []string
	UniqueKeys [][]string
}

// Quote renders name as a SQLite identifier.
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// CreateTable creates the table t and records it in the catalog, in one
// transaction. Creating a table whose name is already cataloged fails.
func (s *Store) CreateTable(ctx context.Context, t Table) error {
	if err := validateTable(t); err != nil {
		return err
	}
	cols, err := marshalColumns(t.Columns)
	if err != nil {
		return errors.Wrapf(err, "create table %s", t.Name)
	}
	keys, err := marshalKeys(t.UniqueKeys)
	if err != nil {
		return errors.Wrapf(err, "create table %s", t.Name)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, createTableSQL(t)); err != nil {
			return errors.Wrapf(err, "create table %s", t.Name)
		}
		_, err := sq.Insert("relir_tables").
			Columns("name", "columns", "unique_keys", "seq").
			Values(t.Name, cols, keys, sq.Expr("(SELECT COALESCE(MAX(seq), 0) + 1 FROM relir_tables)")).
			RunWith(tx).
			ExecContext(ctx)
		return errors.Wrapf(err, "catalog table %s", t.Name)
	})
}

// InsertRows appends rows to a cataloged table. Every row must give a value
// for every column of the table and nothing else.
func (s *Store) InsertRows(ctx context.Context, name string, rows []map[string]value.Value) error {
	t, err := s.Catalog(ctx, name)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if err := checkRow(t, row); err != nil {
			return errors.Wrapf(err, "insert into %s: row %d", name, i)
		}
	}

	quoted := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		quoted[i] = Quote(c)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if len(t.Columns) == 0 {
			for range rows {
				if _, err := tx.ExecContext(ctx, "INSERT INTO "+Quote(name)+" DEFAULT VALUES"); err != nil {
					return errors.Wrapf(err, "insert into %s", name)
				}
			}
			return nil
		}
		for batch := range slices.Chunk(rows, insertBatchSize) {
			ins := sq.Insert(Quote(name)).Columns(quoted...).RunWith(tx)
			for _, row := range batch {
				vals := make([]any, len(t.Columns))
				for i, c := range t.Columns {
					vals[i] = value.Go(row[c])
				}
				ins = ins.Values(vals...)
			}
			if _, err := ins.ExecContext(ctx); err != nil {
				return errors.Wrapf(err, "insert into %s", name)
			}
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func validateTable(t Table) error {
	if t.Name == "" {
		return errors.New("table has no name")
	}
	lower := strings.ToLower(t.Name)
	if strings.HasPrefix(lower, "relir_") || strings.HasPrefix(lower, "sqlite_") {
		return errors.Errorf("table name %q is reserved", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if c == "" {
			return errors.Errorf("table %s has an unnamed column", t.Name)
		}
		if seen[c] {
			return errors.Errorf("table %s has column %s twice", t.Name, c)
		}
		seen[c] = true
	}
	for _, key := range t.UniqueKeys {
		for _, c := range key {
			if !seen[c] {
				return errors.Errorf("table %s: unique key column %s is not a column", t.Name, c)
			}
		}
	}
	return nil
}

// createTableSQL declares no column types, so values keep the storage
// class they are written with.
func createTableSQL(t Table) string {
	parts := make([]string, 0, len(t.Columns)+len(t.UniqueKeys))
	for _, c := range t.Columns {
		parts = append(parts, Quote(c))
	}
	for _, key := range t.UniqueKeys {
		if len(key) == 0 {
			continue
		}
		cols := make([]string, len(key))
		for i, c := range key {
			cols[i] = Quote(c)
		}
		parts = append(parts, fmt.Sprintf("UNIQUE (%s)", strings.Join(cols, ", ")))
	}
	if len(t.Columns) == 0 {
		// SQLite tables need at least one column.
		parts = append([]string{Quote("_rowid")}, parts...)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", Quote(t.Name), strings.Join(parts, ", "))
}

func checkRow(t Table, row map[string]value.Value) error {
	for _, c := range t.Columns {
		if _, ok := row[c]; !ok {
			return errors.Errorf("missing column %s", c)
		}
	}
	if len(row) != len(t.Columns) {
		for c := range row {
			if !slices.Contains(t.Columns, c) {
				return errors.Errorf("unknown column %s", c)
			}
		}
	}
	return nil
}
