// Package lifecycle tracks the process-wide boot/ready/shutting-down state as
// an explicit object with a fixed transition table, injected into components
// that need it rather than read from global flags.
package lifecycle
