//go:build !genartdebug

package genart

const debugChecks = false
