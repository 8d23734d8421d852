// Package harness runs conformance scenarios that evaluate one serialized
// relation in every engine and check that they agree.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: join_on_shared_column
//	description: "Leaves sharing a column join on it"
//	engine: main          # engine name used in the relation document
//	leaves:
//	  - name: r
//	    columns: [a, b]
//	    unique_keys: [[a]]
//	    rows:
//	      - {a: 1, b: x}
//	relation:
//	  type: join
//	  engine: main
//	  relations:
//	    - {type: leaf, name: r, engine: main, columns: [a, b]}
//	expect:
//	  columns: [a, b]
//	  unique_keys: [[a]]
//	  rows:
//	    - {a: 1, b: x}
//
// An expectation may instead name the error kind reading the document
// must fail with (column, engine, relational_algebra, serialization), or
// mark the relation doomed and list substrings of its diagnostics.
//
// # Engines
//
// Each scenario is read twice: once against an iteration engine whose
// leaves hold the fixture rows, and once against a SQL engine whose leaves
// are tables in a fresh in-memory SQLite store. Rows are compared without
// regard to order, and both engines must produce the expected rows.
//
// # Golden Snapshots
//
// RunWithGolden writes the result as canonical JSON to
// testdata/golden/{name}.golden, including the SQL the SQL engine ran.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
