package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the hook binaries. Everything has a
// default; the file only needs to exist when a deployment deviates from the
// standard layout.
type Config struct {
	// SocketPath is the control plane's unix domain socket.
	SocketPath string `yaml:"socket_path" default:"/var/run/midplane/midplane.sock"`

	// StartedSentinel exists once the control plane finished booting.
	StartedSentinel string `yaml:"started_sentinel" default:"/var/run/midplane/.started"`

	// ClusterRoot is the directory under which shared volumes are mounted.
	ClusterRoot string `yaml:"cluster_root" default:"/cluster"`

	// VolumeInfoFile caches the shared volume identity locally.
	VolumeInfoFile string `yaml:"volume_info_file" default:"/var/run/midplane/shared_volume.json"`

	// NodeIDFile holds this node's cluster-assigned numeric id.
	NodeIDFile string `yaml:"node_id_file" default:"/var/run/midplane/nodeid"`

	// CallTimeoutSeconds bounds each control plane call.
	CallTimeoutSeconds int `yaml:"call_timeout_seconds" default:"50"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" default:"info"`

	// EscalateStopFailures makes stop/disable failures degrade the
	// monitoring tick the way start failures do.
	EscalateStopFailures bool `yaml:"escalate_stop_failures"`
}

// CallTimeout returns the per-call timeout as a duration.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// Default returns a Config populated with defaults.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to set config defaults: %w", err)
	}
	return cfg, nil
}

// Load reads a YAML config file over the defaults. A missing file yields the
// defaults without error.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}
