// Package types defines the shared data model for midplane: cluster-wide
// service specs, per-node service observations, and reconciliation results.
//
// ServiceSpec is cluster-wide desired state, shared across nodes and read-only
// from the reconciler's perspective. ServiceObservation is per-node actual
// state, owned exclusively by the reconciler instance running on that node and
// fully rewritten on every monitoring tick.
package types
