//go:build genartdebug

package genart

// debugChecks enables invariant checks in the evaluation kernel.
const debugChecks = true
