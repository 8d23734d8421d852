package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relir/internal/value"
)

func TestCatalog(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createPeople(t, s)
	require.NoError(t, s.CreateTable(ctx, Table{Name: "pets", Columns: []string{"owner", "pet name"}}))

	got, err := s.Catalog(ctx, "people")
	require.NoError(t, err)
	assert.Equal(t, Table{Name: "people", Columns: []string{"id", "name"}, UniqueKeys: [][]string{{"id"}}}, got)

	tables, err := s.Tables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "people", tables[0].Name)
	assert.Equal(t, []string{"owner", "pet name"}, tables[1].Columns)
	assert.Nil(t, tables[1].UniqueKeys)

	_, err = s.Catalog(ctx, "missing")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestCreateTableErrors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createPeople(t, s)

	tests := []struct {
		name  string
		table Table
	}{
		{"no name", Table{Columns: []string{"a"}}},
		{"reserved name", Table{Name: "relir_tables", Columns: []string{"a"}}},
		{"duplicate column", Table{Name: "t", Columns: []string{"a", "a"}}},
		{"key outside columns", Table{Name: "t", Columns: []string{"a"}, UniqueKeys: [][]string{{"b"}}}},
		{"existing table", Table{Name: "people", Columns: []string{"id"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, s.CreateTable(ctx, tt.table))
		})
	}

	// A failed create leaves the catalog unchanged.
	tables, err := s.Tables(ctx)
	require.NoError(t, err)
	assert.Len(t, tables, 1)
}

func TestQuery(t *testing.T) {
	s := createTestStore(t)
	createPeople(t, s)

	res, err := s.Query(context.Background(), `SELECT "id", "name" FROM "people" WHERE "id" >= ? ORDER BY "id"`, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, res.Columns)
	assert.Equal(t, []map[string]value.Value{
		{"id": value.Int(2), "name": value.String("grace")},
		{"id": value.Int(3), "name": value.Null{}},
	}, res.Maps())
}

func TestInsertRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createPeople(t, s)

	t.Run("batches", func(t *testing.T) {
		require.NoError(t, s.CreateTable(ctx, Table{Name: "numbers", Columns: []string{"n", "half"}}))
		rows := make([]map[string]value.Value, 2*insertBatchSize+7)
		for i := range rows {
			rows[i] = map[string]value.Value{"n": value.Int(i), "half": value.Float(float64(i) / 2)}
		}
		require.NoError(t, s.InsertRows(ctx, "numbers", rows))

		res, err := s.Query(ctx, `SELECT COUNT(*), SUM("half") FROM "numbers"`)
		require.NoError(t, err)
		assert.Equal(t, value.Int(len(rows)), res.Rows[0][0])
	})

	t.Run("no columns", func(t *testing.T) {
		require.NoError(t, s.CreateTable(ctx, Table{Name: "unit"}))
		require.NoError(t, s.InsertRows(ctx, "unit", []map[string]value.Value{{}, {}}))
		res, err := s.Query(ctx, `SELECT COUNT(*) FROM "unit"`)
		require.NoError(t, err)
		assert.Equal(t, value.Int(2), res.Rows[0][0])
	})

	errs := []struct {
		name  string
		table string
		row   map[string]value.Value
	}{
		{"unknown table", "missing", map[string]value.Value{"id": value.Int(9)}},
		{"missing column", "people", map[string]value.Value{"id": value.Int(9)}},
		{"unknown column", "people", map[string]value.Value{"id": value.Int(9), "name": value.Null{}, "age": value.Int(3)}},
		{"duplicate key", "people", map[string]value.Value{"id": value.Int(1), "name": value.String("again")}},
	}
	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, s.InsertRows(ctx, tt.table, []map[string]value.Value{tt.row}))
		})
	}

	res, err := s.Query(ctx, `SELECT COUNT(*) FROM "people"`)
	require.NoError(t, err)
	assert.Equal(t, value.Int(3), res.Rows[0][0], fmt.Sprintf("rows: %v", res.Rows))
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"plain"`, Quote("plain"))
	assert.Equal(t, `"say ""hi"""`, Quote(`say "hi"`))
}
