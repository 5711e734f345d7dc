package sharedvol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"github.com/creasty/defaults"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/clusterfleet/midplane/pkg/fslock"
	"github.com/clusterfleet/midplane/pkg/types"
)

// ErrVolumeUnavailable indicates the shared volume is unmounted or its fuse
// mount is unhealthy. Reconciliation must not run while this holds.
var ErrVolumeUnavailable = errors.New("shared volume unavailable")

// Options configures the loader.
type Options struct {
	// ClusterRoot is the directory under which shared volumes are mounted.
	ClusterRoot string `default:"/cluster"`

	// InfoFile caches the shared volume identity locally. When absent, the
	// identity is fetched from the control plane instead.
	InfoFile string `default:"/var/run/midplane/shared_volume.json"`

	// SpecFileName is the cluster-wide service configuration file, relative
	// to the volume mountpoint.
	SpecFileName string `default:".clustered_services"`

	// RootInode is the inode number of the volume root when genuinely
	// mounted. A placeholder directory at the mountpoint has an ordinary
	// inode and fails the check.
	RootInode uint64 `default:"1"`
}

// DefaultOptions returns Options populated with defaults.
func DefaultOptions() (o Options) {
	if err := defaults.Set(&o); err != nil {
		panic(err)
	}
	return
}

// InfoFunc fetches the shared volume identity when the local info file is
// absent.
type InfoFunc func(ctx context.Context) (types.VolumeInfo, error)

// Loader reads the cluster-wide service configuration from the shared
// volume. Specs are loaded fresh on every tick; configuration may change
// out-of-band, so nothing is cached across ticks except the volume identity.
type Loader struct {
	opts      Options
	fetchInfo InfoFunc
	defaults  map[string]types.ServiceSpec
	log       zerolog.Logger

	info *types.VolumeInfo

	// stat probes an inode number; replaced in tests.
	stat func(path string) (uint64, error)
}

// NewLoader creates a loader. fetchInfo may be nil if the info file is
// guaranteed to exist. defaultSpecs is returned when no configuration file
// has been written yet; nil means an empty mapping.
func NewLoader(opts Options, fetchInfo InfoFunc, defaultSpecs map[string]types.ServiceSpec, logger zerolog.Logger) *Loader {
	if opts.ClusterRoot == "" {
		opts = DefaultOptions()
	}
	return &Loader{
		opts:      opts,
		fetchInfo: fetchInfo,
		defaults:  defaultSpecs,
		log:       logger,
		stat:      statInode,
	}
}

func statInode(path string) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, &os.PathError{Op: "stat", Path: path, Err: err}
	}
	return st.Ino, nil
}

// Info returns the shared volume identity, reading the local info file first
// and falling back to the control plane. The identity is cached for the
// lifetime of the loader; a hook process lives for a single tick.
func (l *Loader) Info(ctx context.Context) (types.VolumeInfo, error) {
	if l.info != nil {
		return *l.info, nil
	}

	var info types.VolumeInfo
	raw, err := os.ReadFile(l.opts.InfoFile)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &info); err != nil {
			return info, fmt.Errorf("failed to parse volume info file %s: %w", l.opts.InfoFile, err)
		}
	case os.IsNotExist(err) && l.fetchInfo != nil:
		if info, err = l.fetchInfo(ctx); err != nil {
			return info, fmt.Errorf("failed to fetch shared volume config: %w", err)
		}
	default:
		return info, fmt.Errorf("failed to read volume info file %s: %w", l.opts.InfoFile, err)
	}

	l.info = &info
	return info, nil
}

// SpecFile returns the path of the cluster-wide service configuration file.
func (l *Loader) SpecFile(ctx context.Context) (string, error) {
	info, err := l.Info(ctx)
	if err != nil {
		return "", err
	}
	return filepath.Join(info.Mountpoint, l.opts.SpecFileName), nil
}

// Check verifies the shared volume is genuinely mounted. The path existing
// is not enough: the volume root's inode must match the filesystem identity
// a real mount carries.
func (l *Loader) Check(ctx context.Context) error {
	info, err := l.Info(ctx)
	if err != nil {
		return err
	}

	root := filepath.Join(l.opts.ClusterRoot, info.VolumeName)
	ino, err := l.stat(root)
	if err != nil {
		return fmt.Errorf("%w: failed to stat %s: %v", ErrVolumeUnavailable, root, err)
	}
	if ino != l.opts.RootInode {
		return fmt.Errorf("%w: %s is not a mounted volume root", ErrVolumeUnavailable, root)
	}
	return nil
}

// SpecFileExists reports whether a service configuration file has been
// written to the shared volume yet.
func (l *Loader) SpecFileExists(ctx context.Context) (bool, error) {
	path, err := l.SpecFile(ctx)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// LoadSpecs reads the cluster-wide service configuration under a shared
// advisory lock. A missing file means no configuration has been written yet
// and yields the default mapping. An ENOTCONN-class failure means the fuse
// mount is unhealthy and fails the whole tick.
func (l *Loader) LoadSpecs(ctx context.Context) (map[string]types.ServiceSpec, error) {
	path, err := l.SpecFile(ctx)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l.defaultSpecs(), nil
		}
		if errors.Is(err, unix.ENOTCONN) {
			return nil, fmt.Errorf(
				"%w: IO on the fuse mount holding cluster metadata failed with ENOTCONN; "+
					"the volume may be unmounted or the mountpoint unhealthy", ErrVolumeUnavailable)
		}
		l.log.Warn().Err(err).Str("path", path).Msg("failed to open clustered services file")
		return l.defaultSpecs(), nil
	}
	defer f.Close()

	specs := make(map[string]types.ServiceSpec)
	err = fslock.WithShared(f, func() error {
		return json.NewDecoder(f).Decode(&specs)
	})
	if err != nil {
		if errors.Is(err, unix.ENOTCONN) {
			return nil, fmt.Errorf("%w: reading %s failed with ENOTCONN", ErrVolumeUnavailable, path)
		}
		l.log.Warn().Err(err).Str("path", path).Msg("failed to load clustered services file")
		return l.defaultSpecs(), nil
	}
	return specs, nil
}

func (l *Loader) defaultSpecs() map[string]types.ServiceSpec {
	if l.defaults == nil {
		return make(map[string]types.ServiceSpec)
	}
	return maps.Clone(l.defaults)
}
