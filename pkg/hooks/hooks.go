package hooks

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/clusterfleet/midplane/pkg/events"
	"github.com/clusterfleet/midplane/pkg/lifecycle"
	"github.com/clusterfleet/midplane/pkg/nodestate"
	"github.com/clusterfleet/midplane/pkg/reconciler"
	"github.com/clusterfleet/midplane/pkg/types"
)

// ControlPlane is what the hooks need from the control plane client.
type ControlPlane interface {
	reconciler.ControlPlane
	Available() bool
	Ping(ctx context.Context) error
	RestartService(ctx context.Context, name string) error
	EmitClusterEvent(ctx context.Context, record events.Record) error
}

// SpecSource loads cluster-wide desired state from the shared volume.
type SpecSource interface {
	Check(ctx context.Context) error
	SpecFile(ctx context.Context) (string, error)
	SpecFileExists(ctx context.Context) (bool, error)
	LoadSpecs(ctx context.Context) (map[string]types.ServiceSpec, error)
}

// ObservationStore persists per-node observations.
type ObservationStore interface {
	Load(nodeID int) (map[string]types.ServiceObservation, error)
	Save(nodeID int, obs map[string]types.ServiceObservation) error
}

// Config wires a Handler.
type Config struct {
	Control   ControlPlane
	Specs     SpecSource
	Lifecycle *lifecycle.State
	NodeID    int
	Policy    reconciler.StopFailurePolicy
	Logger    zerolog.Logger

	// NewStore builds the observation store once the spec file path is
	// known. Defaults to the shared-volume file store.
	NewStore func(specFile string) ObservationStore
}

// Handler implements the clustering daemon's event hook contract. Every
// method corresponds to one externally triggered event; none retries
// internally, since retry policy belongs to the daemon.
type Handler struct {
	cfg Config
	rec *reconciler.Reconciler
	log zerolog.Logger
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.NewStore == nil {
		cfg.NewStore = func(specFile string) ObservationStore {
			return nodestate.NewStore(specFile, cfg.Logger)
		}
	}
	return &Handler{
		cfg: cfg,
		rec: reconciler.New(cfg.Control, cfg.Policy, cfg.Logger),
		log: cfg.Logger,
	}
}

// Init verifies connectivity to the control plane. An error here halts the
// clustering daemon's startup. No state is mutated.
func (h *Handler) Init(ctx context.Context) error {
	if !h.cfg.Control.Available() {
		return nil
	}
	if err := h.cfg.Control.Ping(ctx); err != nil {
		return err
	}
	if h.cfg.Lifecycle != nil && h.cfg.Lifecycle.Stage() == lifecycle.StageBooting {
		if err := h.cfg.Lifecycle.Advance(lifecycle.StageReady); err != nil {
			return err
		}
	}
	return nil
}

// Setup is a no-op; the daemon's socket becomes available between init and
// startup but nothing is needed here.
func (h *Handler) Setup(ctx context.Context) error { return nil }

// Startup verifies the shared volume and force-restarts every enabled,
// monitored service. A volume failure is reported and propagated; the daemon
// retries startup on its own cadence.
func (h *Handler) Startup(ctx context.Context) error {
	if !h.cfg.Control.Available() {
		return nil
	}

	if err := h.cfg.Specs.Check(ctx); err != nil {
		h.emit(ctx, events.NewFailure(events.EventStartup, err.Error(), ""))
		return err
	}

	exists, err := h.cfg.Specs.SpecFileExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		// First run: no services configured yet.
		return nil
	}

	specs, err := h.cfg.Specs.LoadSpecs(ctx)
	if err != nil {
		h.emit(ctx, events.NewFailure(events.EventStartup, err.Error(), ""))
		return err
	}

	for name, spec := range specs {
		if !spec.MonitorEnable || !spec.ServiceEnable {
			continue
		}
		if err := h.cfg.Control.RestartService(ctx, name); err != nil {
			return err
		}
	}

	return h.cfg.Control.EmitClusterEvent(ctx, events.NewRecord(events.EventStartup, types.StatusSuccess))
}

// Shutdown is a no-op for managed services; the daemon tears them down
// independently. The lifecycle state is advanced so late hooks can tell.
func (h *Handler) Shutdown(ctx context.Context) error {
	if h.cfg.Lifecycle != nil && h.cfg.Lifecycle.Ready() {
		return h.cfg.Lifecycle.Advance(lifecycle.StageShuttingDown)
	}
	return nil
}

// Monitor runs one reconciliation tick. The shared state is loaded fresh;
// per-node observations are loaded, reconciled, and persisted atomically at
// tick end unless the shared volume failed, in which case the tick aborts
// before touching any service and the failure propagates.
func (h *Handler) Monitor(ctx context.Context) error {
	if !h.cfg.Control.Available() {
		h.log.Debug().Msg("control plane is not ready, skipping monitoring")
		return nil
	}
	if h.cfg.Lifecycle != nil && h.cfg.Lifecycle.ShuttingDown() {
		h.log.Debug().Msg("system is shutting down, skipping monitoring")
		return nil
	}

	record := events.NewRecord(events.EventMonitor, types.StatusSuccess)

	var (
		store       ObservationStore
		prior, next map[string]types.ServiceObservation
	)

	volumeErr := h.cfg.Specs.Check(ctx)
	if volumeErr == nil {
		var specs map[string]types.ServiceSpec
		specs, volumeErr = h.cfg.Specs.LoadSpecs(ctx)
		if volumeErr == nil {
			var specFile string
			specFile, volumeErr = h.cfg.Specs.SpecFile(ctx)
			if volumeErr == nil {
				store = h.cfg.NewStore(specFile)
				prior, volumeErr = store.Load(h.cfg.NodeID)
			}
			if volumeErr == nil {
				var result types.ReconcileResult
				next, result = h.rec.Reconcile(ctx, specs, prior)
				if result.Failed() {
					record = events.FromResult(events.EventMonitor, result)
				}
			}
		}
	}

	if volumeErr != nil {
		record = events.NewFailure(events.EventMonitor, volumeErr.Error(), types.SharedVolumeService)
	}

	if reconciler.HealthChanged(prior, next) {
		h.emit(ctx, record)
	}

	if record.Status == types.StatusFailure && record.Service == types.SharedVolumeService {
		h.emit(ctx, record)
		return errors.New(record.Reason)
	}

	return store.Save(h.cfg.NodeID, next)
}

// StartRecovery relays that a recovery process began. Informational only;
// failures are swallowed.
func (h *Handler) StartRecovery(ctx context.Context) error {
	h.relay(ctx, events.EventStartRecovery)
	return nil
}

// Recovered relays that a recovery process completed. Informational only;
// failures are swallowed.
func (h *Handler) Recovered(ctx context.Context) error {
	h.relay(ctx, events.EventRecovered)
	return nil
}

// IPReallocated relays that public addresses moved. Informational only;
// failures are swallowed.
func (h *Handler) IPReallocated(ctx context.Context) error {
	h.relay(ctx, events.EventIPReallocated)
	return nil
}

// TakeIP is a no-op; address assignment is the daemon's business.
func (h *Handler) TakeIP(ctx context.Context, iface, address, netmask string) error { return nil }

// ReleaseIP is a no-op.
func (h *Handler) ReleaseIP(ctx context.Context, iface, address, netmask string) error { return nil }

// UpdateIP is a no-op.
func (h *Handler) UpdateIP(ctx context.Context, oldIface, newIface, address, netmask string) error {
	return nil
}

func (h *Handler) relay(ctx context.Context, event events.Type) {
	if !h.cfg.Control.Available() {
		return
	}
	h.emit(ctx, events.NewRecord(event, types.StatusSuccess))
}

func (h *Handler) emit(ctx context.Context, record events.Record) {
	if err := h.cfg.Control.EmitClusterEvent(ctx, record); err != nil {
		h.log.Warn().Err(err).Str("event", string(record.Event)).Msg("failed to emit cluster event")
	}
}
