package types

// ReconcileStatus is the outcome of a reconciliation tick or lifecycle hook.
type ReconcileStatus string

const (
	StatusSuccess ReconcileStatus = "SUCCESS"
	StatusFailure ReconcileStatus = "FAILURE"
)

// SharedVolumeService is the pseudo-service reported as the offender when the
// shared state volume itself is unavailable and reconciliation cannot run.
const SharedVolumeService = "shared_volume"

// Service run states as reported by the control plane.
const (
	StateRunning = "RUNNING"
	StateStopped = "STOPPED"
)

// ServiceSpec is the cluster-wide desired configuration for one managed
// service. It is written by configuration tooling and read-only here.
type ServiceSpec struct {
	Name          string `json:"name"`
	ServiceEnable bool   `json:"service_enable"`
	MonitorEnable bool   `json:"monitor_enable"`
}

// ServiceObservation is the node-local last-known state of one managed
// service, refreshed on every monitoring tick. LastCheck is seconds since the
// Unix epoch, fractional, matching the on-disk status file format.
type ServiceObservation struct {
	Running   bool    `json:"running"`
	LastCheck float64 `json:"last_check"`
	Error     *string `json:"error"`
}

// ServiceState is the actual state of a service as returned by the control
// plane's service query.
type ServiceState struct {
	State   string `json:"state"`
	Enabled bool   `json:"enable"`
}

// ReconcileResult summarizes a single reconciliation tick. Service names the
// offending service when Status is FAILURE; if multiple services failed during
// the tick, the last failure wins.
type ReconcileResult struct {
	Status  ReconcileStatus
	Reason  string
	Service string
}

// Failed reports whether the tick degraded to FAILURE.
func (r ReconcileResult) Failed() bool {
	return r.Status == StatusFailure
}

// VolumeInfo identifies the shared state volume backing cluster-wide
// configuration and per-node status files.
type VolumeInfo struct {
	VolumeName string `json:"volume_name"`
	Mountpoint string `json:"mountpoint"`
}
