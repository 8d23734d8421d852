// Package value provides the scalar value model shared by every backend.
//
// Rows produced by engines are maps from column tag to Value. This package
// imports nothing internal; relation, expr, and the engines all build on it.
//
// Key design constraints:
//   - Value is sealed: Null, String, Int, Float, Bool
//   - Compare is a total order so Slice sorting is deterministic
//   - Canonical JSON (MarshalCanonical) is the only encoding used for identity
package value
