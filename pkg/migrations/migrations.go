package migrations

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/clusterfleet/midplane/pkg/log"
)

// Migration is one named, idempotent data migration. Names sort
// lexicographically, so a numeric prefix fixes the run order.
type Migration struct {
	Name string
	Run  func(ctx context.Context) error
}

// Registry holds the known migrations.
type Registry struct {
	migrations map[string]Migration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{migrations: make(map[string]Migration)}
}

// Register adds a migration. Duplicate names are a programming error.
func (r *Registry) Register(m Migration) {
	if _, ok := r.migrations[m.Name]; ok {
		panic(fmt.Sprintf("migrations: duplicate migration %q", m.Name))
	}
	r.migrations[m.Name] = m
}

// All returns the registered migrations sorted by name.
func (r *Registry) All() []Migration {
	out := make([]Migration, 0, len(r.migrations))
	for _, m := range r.migrations {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Default is the registry migrations attach themselves to via init.
var Default = NewRegistry()

// ledgerFile is the on-disk shape of the applied-migrations ledger.
type ledgerFile struct {
	Migrations []string `json:"migrations"`
}

// Ledger records which migrations have been applied, as a flat JSON file.
type Ledger struct {
	path string
	log  zerolog.Logger
}

// NewLedger creates a ledger backed by the given path.
func NewLedger(path string) *Ledger {
	return &Ledger{path: path, log: log.WithComponent("migrations")}
}

// Applied returns the set of applied migration names. A missing or corrupt
// ledger reads as empty; migrations are idempotent so re-running is safe.
func (l *Ledger) Applied() map[string]bool {
	applied := make(map[string]bool)

	raw, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.log.Warn().Err(err).Str("path", l.path).Msg("Failed to read migration ledger, starting fresh")
		}
		return applied
	}

	var lf ledgerFile
	if err := json.Unmarshal(raw, &lf); err != nil {
		l.log.Warn().Err(err).Str("path", l.path).Msg("Corrupt migration ledger, starting fresh")
		return applied
	}

	for _, name := range lf.Migrations {
		applied[name] = true
	}
	return applied
}

// Record appends a migration name to the ledger.
func (l *Ledger) Record(name string) error {
	applied := l.Applied()
	if applied[name] {
		return nil
	}

	names := make([]string, 0, len(applied)+1)
	for n := range applied {
		names = append(names, n)
	}
	names = append(names, name)
	sort.Strings(names)

	raw, err := json.MarshalIndent(ledgerFile{Migrations: names}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode migration ledger: %w", err)
	}
	if err := os.WriteFile(l.path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write migration ledger: %w", err)
	}
	return nil
}

// Runner applies pending migrations from a registry.
type Runner struct {
	registry *Registry
	ledger   *Ledger
	dryRun   bool
	log      zerolog.Logger
}

// NewRunner creates a runner. With dryRun set it only reports what would run.
func NewRunner(registry *Registry, ledger *Ledger, dryRun bool) *Runner {
	return &Runner{
		registry: registry,
		ledger:   ledger,
		dryRun:   dryRun,
		log:      log.WithComponent("migrations"),
	}
}

// Run applies every pending migration in name order. A failing migration is
// logged and skipped so the rest of the sweep still runs; all failures are
// aggregated into the returned error.
func (r *Runner) Run(ctx context.Context) error {
	applied := r.ledger.Applied()

	var result *multierror.Error
	for _, m := range r.registry.All() {
		if applied[m.Name] {
			r.log.Debug().Str("migration", m.Name).Msg("Already applied, skipping")
			continue
		}

		if r.dryRun {
			r.log.Info().Str("migration", m.Name).Msg("Would apply (dry run)")
			continue
		}

		r.log.Info().Str("migration", m.Name).Msg("Applying migration")
		if err := m.Run(ctx); err != nil {
			r.log.Error().Err(err).Str("migration", m.Name).Msg("Migration failed")
			result = multierror.Append(result, fmt.Errorf("migration %q: %w", m.Name, err))
			continue
		}

		if err := r.ledger.Record(m.Name); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		r.log.Info().Str("migration", m.Name).Msg("Migration applied")
	}
	return result.ErrorOrNil()
}
