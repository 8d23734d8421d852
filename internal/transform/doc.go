// Package transform rewrites relation trees: placing transfers between
// engines along a merge path, pushing predicates toward the leaves, and
// inserting joins or selections where an engine can evaluate them.
//
// Every pass returns a new tree built through the relation factories and
// leaves its input untouched. Subtrees a pass does not need to change are
// returned as the same values.
package transform
