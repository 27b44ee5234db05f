//go:build debugassert

package aggregator

// AssertionsEnabled reports whether protocol violations panic.
const AssertionsEnabled = true

// assertViolation panics so invariant breaches surface during development.
func assertViolation(err error) {
	panic(err)
}
