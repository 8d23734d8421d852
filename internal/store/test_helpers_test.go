package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/relir/internal/value"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createPeople creates and fills a small people(id, name) table.
func createPeople(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	err := s.CreateTable(ctx, Table{Name: "people", Columns: []string{"id", "name"}, UniqueKeys: [][]string{{"id"}}})
	if err != nil {
		t.Fatalf("CreateTable() failed: %v", err)
	}
	err = s.InsertRows(ctx, "people", []map[string]value.Value{
		{"id": value.Int(1), "name": value.String("ada")},
		{"id": value.Int(2), "name": value.String("grace")},
		{"id": value.Int(3), "name": value.Null{}},
	})
	if err != nil {
		t.Fatalf("InsertRows() failed: %v", err)
	}
}
