// Package store keeps the rows of SQL-engine leaves in SQLite.
//
// Every leaf table is an ordinary SQLite table whose columns carry no
// declared type, so values keep the storage class they were written with.
// A catalog table, relir_tables, records for each leaf table its column
// names and unique keys, which is enough to rebuild the leaf.
//
// Connections open in WAL mode with synchronous=NORMAL, so readers do not
// block the single writer. Statements wait up to five seconds on a locked
// database unless Open is given WithBusyTimeout. Schema changes are
// versioned through PRAGMA user_version.
//
// Catalog listings are ordered by creation sequence, then name, so that
// repeated runs see tables in the same order.
package store
