// Package testutil provides reflect-based structural comparison and
// pretty-printing helpers for the property-based tests in this module: a
// simplified reflect.DeepEqual that lets a type opt out of comparison via
// a `deepequal:"ignore"` struct tag and gives a human-readable Diff on
// mismatch, rather than a bare boolean.
package testutil

// comparable types have an equality-testing method.
type comparable interface {
	Equal(other interface{}) bool
}

// DeepEqual reports whether a and b are structurally equal. It handles the
// map/slice/struct/pointer shapes this module's property tests compare
// (migration oracles, tick records, DNA fingerprints); Diff records each
// visited pointer pair, so a cyclic pointer graph is compared once rather
// than recursed into forever.
func DeepEqual(a, b interface{}) bool {
	return Diff(a, b) == ""
}
