// Package serialization converts relation trees to and from plain nested
// maps, and those maps to and from YAML or JSON text.
//
// DictWriter writes a tree with every collection sorted, so equivalent trees
// give identical documents. Reader rebuilds a tree node by node, validating
// each node's shape against an embedded CUE schema and delegating columns,
// engines, leaves and helper objects to Hooks. BasicHooks covers trees whose
// engines are known by name and whose helpers are expressions or named
// predicates.
package serialization
