//go:build !debugassert

package aggregator

// AssertionsEnabled reports whether protocol violations panic.
const AssertionsEnabled = false

// assertViolation is a no-op in production builds: the already recorded
// violation is dropped so a finalized report stays intact.
func assertViolation(error) {}
