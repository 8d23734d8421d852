// Package relation defines the relational algebra tree.
//
// A tree is built bottom-up from Leaf nodes with the NewX factories. Every
// factory validates the node it builds and returns its canonical form, so
// callers never hold an unsimplified tree unless they construct one by hand.
//
// Nodes are immutable and may be shared between trees. Engines are opaque
// identities compared by pointer; the EngineTree of a relation records
// which engines hold its inputs and where they must be transferred.
//
// Key invariants:
//   - CheckedAndSimplified on a canonical node returns the same node
//   - joining with MakeUnit and unioning with MakeZero are no-ops
//   - a doomed relation (non-empty DoomedBy) is a normal state, not an error
package relation
