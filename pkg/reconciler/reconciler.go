package reconciler

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/clusterfleet/midplane/pkg/types"
)

// ControlPlane is the subset of the control plane client the reconciler
// needs to query and correct service state.
type ControlPlane interface {
	QueryService(ctx context.Context, name string) (types.ServiceState, error)
	StartService(ctx context.Context, name string) error
	StopService(ctx context.Context, name string) error
	SetServiceEnabled(ctx context.Context, name string, enabled bool) error
}

// StopFailurePolicy decides whether failures on the stop/disable path degrade
// the tick the way start failures do. Historically they did not; the
// asymmetry is a named configuration choice rather than an accident.
type StopFailurePolicy int

const (
	// IgnoreStopFailures logs stop and disable failures without degrading
	// the tick. The observation still records the service as not running.
	IgnoreStopFailures StopFailurePolicy = iota

	// EscalateStopFailures treats stop and disable failures like start
	// failures: recorded on the observation and degrading the tick.
	EscalateStopFailures
)

// Reconciler compares desired service state against actual state on the
// local node and issues corrective actions through the control plane.
type Reconciler struct {
	control ControlPlane
	policy  StopFailurePolicy
	log     zerolog.Logger

	// now is replaced in tests.
	now func() time.Time
}

// New creates a reconciler.
func New(control ControlPlane, policy StopFailurePolicy, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		control: control,
		policy:  policy,
		log:     logger,
		now:     time.Now,
	}
}

// Reconcile runs one tick over the given specs. Prior observations pass
// through untouched for services that are not monitored; every monitored
// service is evaluated exactly once and its observation overwritten. A
// failure on one service degrades the tick to FAILURE but never aborts the
// remaining services; when several fail, the last failure wins.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	specs map[string]types.ServiceSpec,
	prior map[string]types.ServiceObservation,
) (map[string]types.ServiceObservation, types.ReconcileResult) {
	next := maps.Clone(prior)
	if next == nil {
		next = make(map[string]types.ServiceObservation)
	}

	result := types.ReconcileResult{Status: types.StatusSuccess}

	for name, spec := range specs {
		if !spec.MonitorEnable {
			continue
		}

		obs, failure := r.reconcileService(ctx, name, spec)
		obs.LastCheck = float64(r.now().UnixNano()) / 1e9
		next[name] = obs

		if failure != nil {
			result = *failure
		}
	}

	return next, result
}

// reconcileService evaluates a single monitored service. The returned result
// is non-nil when the failure should degrade the tick.
func (r *Reconciler) reconcileService(ctx context.Context, name string, spec types.ServiceSpec) (types.ServiceObservation, *types.ReconcileResult) {
	state, err := r.control.QueryService(ctx, name)
	if err != nil {
		r.log.Warn().Err(err).Str("service", name).Msg("failed to query managed service")
		return observationError(err), &types.ReconcileResult{
			Status:  types.StatusFailure,
			Reason:  fmt.Sprintf("%s: failed to query service state: %v", name, err),
			Service: name,
		}
	}

	if spec.ServiceEnable {
		return r.ensureRunning(ctx, name, state)
	}
	return r.ensureStopped(ctx, name, state)
}

// ensureRunning starts the service if needed and syncs its enabled flag to
// true. The flag sync is best-effort desired-state convergence and never
// degrades the tick.
func (r *Reconciler) ensureRunning(ctx context.Context, name string, state types.ServiceState) (types.ServiceObservation, *types.ReconcileResult) {
	obs := types.ServiceObservation{Running: true}
	var failure *types.ReconcileResult

	if state.State != types.StateRunning {
		r.log.Warn().Str("service", name).Msg("managed service is not running, attempting to start")
		if err := r.control.StartService(ctx, name); err != nil {
			r.log.Warn().Err(err).Str("service", name).Msg("failed to start managed service")
			obs = observationError(err)
			failure = &types.ReconcileResult{
				Status:  types.StatusFailure,
				Reason:  fmt.Sprintf("%s: service failed to start: %v", name, err),
				Service: name,
			}
		}
	}

	if !state.Enabled {
		if err := r.control.SetServiceEnabled(ctx, name, true); err != nil {
			r.log.Warn().Err(err).Str("service", name).Msg("failed to enable managed service")
		}
	}

	return obs, failure
}

// ensureStopped disables and stops the service. Under the default policy,
// action failures are logged and the observation still records the service
// as not running.
func (r *Reconciler) ensureStopped(ctx context.Context, name string, state types.ServiceState) (types.ServiceObservation, *types.ReconcileResult) {
	var actionErr *multierror.Error

	if state.Enabled {
		if err := r.control.SetServiceEnabled(ctx, name, false); err != nil {
			r.log.Warn().Err(err).Str("service", name).Msg("failed to disable managed service")
			actionErr = multierror.Append(actionErr, fmt.Errorf("disable: %w", err))
		}
	}

	if state.State == types.StateRunning {
		if err := r.control.StopService(ctx, name); err != nil {
			r.log.Warn().Err(err).Str("service", name).Msg("failed to stop managed service")
			actionErr = multierror.Append(actionErr, fmt.Errorf("stop: %w", err))
		}
	}

	obs := types.ServiceObservation{Running: false}
	if err := actionErr.ErrorOrNil(); err != nil && r.policy == EscalateStopFailures {
		obs = observationError(err)
		return obs, &types.ReconcileResult{
			Status:  types.StatusFailure,
			Reason:  fmt.Sprintf("%s: service failed to stop: %v", name, err),
			Service: name,
		}
	}
	return obs, nil
}

// HealthChanged compares the running projections of two observation sets,
// restricted to services present in both. An empty prior set never reports a
// change, which keeps the very first tick from emitting a notification storm
// while observations are being established.
func HealthChanged(prior, next map[string]types.ServiceObservation) bool {
	if len(prior) == 0 {
		return false
	}
	for name, p := range prior {
		n, ok := next[name]
		if !ok {
			continue
		}
		if p.Running != n.Running {
			return true
		}
	}
	return false
}

func observationError(err error) types.ServiceObservation {
	msg := err.Error()
	return types.ServiceObservation{Running: false, Error: &msg}
}
