package events

import (
	"github.com/google/uuid"

	"github.com/clusterfleet/midplane/pkg/types"
)

// Type identifies which lifecycle event a cluster event record belongs to.
type Type string

const (
	EventStartup       Type = "STARTUP"
	EventMonitor       Type = "MONITOR"
	EventStartRecovery Type = "STARTRECOVERY"
	EventRecovered     Type = "RECOVERED"
	EventIPReallocated Type = "IPREALLOCATED"
)

// Record is the payload relayed to the control plane's cluster event
// processor. Reason and Service are set only on failure or when a specific
// service is implicated.
type Record struct {
	ID      string                `json:"id"`
	Event   Type                  `json:"event"`
	Status  types.ReconcileStatus `json:"status"`
	Reason  string                `json:"reason,omitempty"`
	Service string                `json:"service,omitempty"`
}

// NewRecord creates an event record with a fresh ID.
func NewRecord(event Type, status types.ReconcileStatus) Record {
	return Record{
		ID:     uuid.NewString(),
		Event:  event,
		Status: status,
	}
}

// NewFailure creates a FAILURE record carrying the reason and the offending
// service.
func NewFailure(event Type, reason, service string) Record {
	r := NewRecord(event, types.StatusFailure)
	r.Reason = reason
	r.Service = service
	return r
}

// FromResult maps a reconciliation result onto an event record.
func FromResult(event Type, res types.ReconcileResult) Record {
	r := NewRecord(event, res.Status)
	r.Reason = res.Reason
	r.Service = res.Service
	return r
}
