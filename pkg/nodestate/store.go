package nodestate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/clusterfleet/midplane/pkg/fslock"
	"github.com/clusterfleet/midplane/pkg/sharedvol"
	"github.com/clusterfleet/midplane/pkg/types"
)

// Store persists the per-node service observations. Each node owns exactly
// one file, suffixed with its cluster-assigned id, on the shared volume;
// other nodes and external tooling read it under a shared lock.
type Store struct {
	specFile string
	log      zerolog.Logger
}

// NewStore creates a store rooted at the cluster-wide spec file path. The
// per-node status file lives next to it as <specFile>.<nodeID>.
func NewStore(specFile string, logger zerolog.Logger) *Store {
	return &Store{specFile: specFile, log: logger}
}

// Path returns the status file path for a node.
func (s *Store) Path(nodeID int) string {
	return s.specFile + "." + strconv.Itoa(nodeID)
}

// Load reads the node's observations under a shared advisory lock. A missing
// or corrupt file yields an empty mapping; only an ENOTCONN-class failure,
// meaning the shared volume itself is gone, is an error.
func (s *Store) Load(nodeID int) (map[string]types.ServiceObservation, error) {
	path := s.Path(nodeID)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]types.ServiceObservation), nil
		}
		if errors.Is(err, unix.ENOTCONN) {
			return nil, fmt.Errorf("%w: opening %s failed with ENOTCONN", sharedvol.ErrVolumeUnavailable, path)
		}
		s.log.Warn().Err(err).Str("path", path).Msg("failed to open node status file")
		return make(map[string]types.ServiceObservation), nil
	}
	defer f.Close()

	obs := make(map[string]types.ServiceObservation)
	err = fslock.WithShared(f, func() error {
		return json.NewDecoder(f).Decode(&obs)
	})
	if err != nil {
		if errors.Is(err, unix.ENOTCONN) {
			return nil, fmt.Errorf("%w: reading %s failed with ENOTCONN", sharedvol.ErrVolumeUnavailable, path)
		}
		s.log.Warn().Err(err).Str("path", path).Msg("failed to parse node status file")
		return make(map[string]types.ServiceObservation), nil
	}
	return obs, nil
}

// Save rewrites the node's observations in full under an exclusive advisory
// lock and forces the data to durable storage before the lock is released.
func (s *Store) Save(nodeID int, obs map[string]types.ServiceObservation) error {
	path := s.Path(nodeID)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open node status file %s: %w", path, err)
	}
	defer f.Close()

	err = fslock.WithExclusive(f, func() error {
		if err := f.Truncate(0); err != nil {
			return fmt.Errorf("failed to truncate: %w", err)
		}
		if _, err := f.Seek(0, 0); err != nil {
			return fmt.Errorf("failed to seek: %w", err)
		}
		if err := json.NewEncoder(f).Encode(obs); err != nil {
			return fmt.Errorf("failed to encode observations: %w", err)
		}
		return f.Sync()
	})
	if err != nil {
		return fmt.Errorf("failed to save node status file %s: %w", path, err)
	}
	return nil
}
