// Package fslock wraps advisory file locking. The per-node status files live
// on a shared filesystem, so file locks, not in-process mutexes, are the
// correctness mechanism between a node's reconciler and external readers.
package fslock
