package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/clusterfleet/midplane/pkg/config"
	"github.com/clusterfleet/midplane/pkg/control"
	"github.com/clusterfleet/midplane/pkg/hooks"
	"github.com/clusterfleet/midplane/pkg/lifecycle"
	"github.com/clusterfleet/midplane/pkg/log"
	"github.com/clusterfleet/midplane/pkg/reconciler"
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
	nodeIDFlag int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "midplane-events",
	Short: "Cluster event hook dispatcher",
	Long: `midplane-events is invoked by the clustering daemon, one process per
event. Each subcommand maps to one hook; a non-zero exit tells the daemon
the hook failed and it applies its own retry policy.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"midplane-events version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/midplane/events.yaml", "Path to the events config file")
	rootCmd.PersistentFlags().IntVar(&nodeIDFlag, "node-id", -1, "Override the node id from the node id file")

	rootCmd.AddCommand(
		hookCmd("init", "Verify control plane connectivity", func(ctx context.Context, h *hooks.Handler) error {
			return h.Init(ctx)
		}),
		hookCmd("setup", "Prepare for service startup", func(ctx context.Context, h *hooks.Handler) error {
			return h.Setup(ctx)
		}),
		hookCmd("startup", "Restart managed services after the node joins", func(ctx context.Context, h *hooks.Handler) error {
			return h.Startup(ctx)
		}),
		hookCmd("shutdown", "Mark the node as shutting down", func(ctx context.Context, h *hooks.Handler) error {
			return h.Shutdown(ctx)
		}),
		hookCmd("monitor", "Run one reconciliation tick", func(ctx context.Context, h *hooks.Handler) error {
			return h.Monitor(ctx)
		}),
		hookCmd("startrecovery", "Relay that cluster recovery began", func(ctx context.Context, h *hooks.Handler) error {
			return h.StartRecovery(ctx)
		}),
		hookCmd("recovered", "Relay that cluster recovery completed", func(ctx context.Context, h *hooks.Handler) error {
			return h.Recovered(ctx)
		}),
		hookCmd("ipreallocated", "Relay that public addresses moved", func(ctx context.Context, h *hooks.Handler) error {
			return h.IPReallocated(ctx)
		}),
		addressCmd("takeip", "Acknowledge a public address assignment", func(ctx context.Context, h *hooks.Handler, args []string) error {
			return h.TakeIP(ctx, args[0], args[1], args[2])
		}),
		addressCmd("releaseip", "Acknowledge a public address release", func(ctx context.Context, h *hooks.Handler, args []string) error {
			return h.ReleaseIP(ctx, args[0], args[1], args[2])
		}),
		updateIPCmd(),
	)
}

func hookCmd(use, short string, run func(context.Context, *hooks.Handler) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, closer, err := buildHandler()
			if err != nil {
				return err
			}
			defer closer()
			return run(cmd.Context(), h)
		},
	}
}

func addressCmd(use, short string, run func(context.Context, *hooks.Handler, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <interface> <address> <netmask>",
		Short: short,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, closer, err := buildHandler()
			if err != nil {
				return err
			}
			defer closer()
			return run(cmd.Context(), h, args)
		},
	}
}

func updateIPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "updateip <old-interface> <new-interface> <address> <netmask>",
		Short: "Acknowledge a public address move between interfaces",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, closer, err := buildHandler()
			if err != nil {
				return err
			}
			defer closer()
			return h.UpdateIP(cmd.Context(), args[0], args[1], args[2], args[3])
		},
	}
}

// buildHandler wires one Handler from the config file. Hook processes are
// one-shot, so everything is constructed per invocation.
func buildHandler() (*hooks.Handler, func() error, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: true})

	nodeID := nodeIDFlag
	if nodeID < 0 {
		nodeID, err = readNodeID(cfg.NodeIDFile)
		if err != nil {
			return nil, nil, err
		}
	}
	logger := log.WithNodeID(nodeID)

	ctrlOpts := control.DefaultOptions()
	ctrlOpts.SocketPath = cfg.SocketPath
	ctrlOpts.StartedSentinel = cfg.StartedSentinel
	ctrlOpts.CallTimeout = cfg.CallTimeout()
	client := control.NewSocketClient(ctrlOpts)

	volOpts := sharedvol.DefaultOptions()
	volOpts.ClusterRoot = cfg.ClusterRoot
	volOpts.InfoFile = cfg.VolumeInfoFile
	loader := sharedvol.NewLoader(volOpts, client.SharedVolumeConfig, nil, logger)

	policy := reconciler.IgnoreStopFailures
	if cfg.EscalateStopFailures {
		policy = reconciler.EscalateStopFailures
	}

	handler := hooks.NewHandler(hooks.Config{
		Control:   client,
		Specs:     loader,
		Lifecycle: lifecycle.New(bootID(), !client.Available()),
		NodeID:    nodeID,
		Policy:    policy,
		Logger:    logger,
	})
	return handler, client.Close, nil
}

func readNodeID(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read node id file %s: %w", path, err)
	}
	id, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("failed to parse node id from %s: %w", path, err)
	}
	return id, nil
}

// bootID identifies the current boot so events from stale processes can be
// told apart. Falls back to a random id outside Linux boots.
func bootID() string {
	raw, err := os.ReadFile("/proc/sys/kernel/random/boot_id")
	if err != nil {
		return uuid.NewString()
	}
	return strings.TrimSpace(string(raw))
}
