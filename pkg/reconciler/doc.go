/*
Package reconciler implements the per-tick node health reconciliation at the
heart of midplane.

Each monitoring tick reads the cluster-wide desired state, queries the actual
state of every monitored service on the local node, and converges the two:

  - desired enabled + not running: start the service; a start failure is
    recorded against the service and degrades the whole tick to FAILURE, but
    the remaining services are still processed.
  - desired enabled + running: record healthy; sync the boot-time enable
    flag to true as best-effort.
  - desired disabled: disable then stop. Whether stop-path failures degrade
    the tick is governed by StopFailurePolicy.

Services with monitoring disabled are left completely untouched; their prior
observations pass through byte-for-byte. Running the same tick twice with no
external change produces identical observations and no change event.

The reconciler performs no retries and owns no schedule; the clustering
daemon invokes one tick at a time and applies its own retry cadence.
*/
package reconciler
