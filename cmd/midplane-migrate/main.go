package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clusterfleet/midplane/pkg/config"
	"github.com/clusterfleet/midplane/pkg/control"
	"github.com/clusterfleet/midplane/pkg/log"
	"github.com/clusterfleet/midplane/pkg/migrations"
	"github.com/clusterfleet/midplane/pkg/sharedvol"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configPath string
	ledgerPath string
	specFile   string
	dryRun     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "midplane-migrate",
	Short: "Apply pending node-state migrations",
	Long: `midplane-migrate applies data migrations to this node's clustering
state. Applied migrations are recorded in a ledger and skipped on later
runs; a failed migration is retried next time.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		log.Init(log.Config{Level: log.Level(cfg.LogLevel)})

		path := specFile
		if path == "" {
			path, err = resolveSpecFile(cmd, cfg)
			if err != nil {
				return err
			}
		}

		registry := migrations.NewRegistry()
		registry.Register(migrations.SplitNodeStates(path))

		ledger := migrations.NewLedger(ledgerPath)
		return migrations.NewRunner(registry, ledger, dryRun).Run(cmd.Context())
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"midplane-migrate version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.Flags().StringVar(&configPath, "config", "/etc/midplane/events.yaml", "Path to the events config file")
	rootCmd.Flags().StringVar(&ledgerPath, "ledger", "/var/lib/midplane/migrations.json", "Path to the applied-migrations ledger")
	rootCmd.Flags().StringVar(&specFile, "spec-file", "", "Override the shared-volume spec file path")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report pending migrations without applying them")
}

// resolveSpecFile locates the cluster spec file on the shared volume, asking
// the control plane for the volume identity when no local cache exists.
func resolveSpecFile(cmd *cobra.Command, cfg *config.Config) (string, error) {
	ctrlOpts := control.DefaultOptions()
	ctrlOpts.SocketPath = cfg.SocketPath
	ctrlOpts.StartedSentinel = cfg.StartedSentinel
	ctrlOpts.CallTimeout = cfg.CallTimeout()
	client := control.NewSocketClient(ctrlOpts)
	defer client.Close()

	volOpts := sharedvol.DefaultOptions()
	volOpts.ClusterRoot = cfg.ClusterRoot
	volOpts.InfoFile = cfg.VolumeInfoFile
	loader := sharedvol.NewLoader(volOpts, client.SharedVolumeConfig, nil, log.WithComponent("migrate"))

	return loader.SpecFile(cmd.Context())
}
