/*
Package hooks implements the clustering daemon's event hook contract.

The daemon invokes one hook at a time: init and startup while it boots,
monitor on every health-check tick, and informational hooks around database
recovery and IP reallocation. Hooks never retry; a propagated error surfaces
through the daemon's own failure handling, which re-invokes per its policy.

Monitor is the interesting one. It fails closed when the shared volume is
unavailable: the tick aborts before any service is touched, the failure is
reported with the shared_volume pseudo-service as the offender, and the
per-node status file is left untouched.
*/
package hooks
