// Package expr is the column-expression language used inside Selection,
// Slice and Calculation nodes.
//
// Expressions, predicates and containers are small immutable value types.
// Whether an engine supports one is decided by whether the engine resolves
// every function name it uses through Engine.ColumnFunction; literals and
// column references are supported everywhere.
package expr
