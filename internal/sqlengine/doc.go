// Package sqlengine lowers relation trees to SQLite SELECT statements with
// squirrel and runs them against a store.
//
// Every relation becomes one SELECT whose result columns are named by the
// relation's column tags. Unary operations are folded into the SELECT of
// their base while that stays equivalent; otherwise the base becomes an
// aliased subquery. Leaves name their table through a Table payload.
package sqlengine
