package migrations

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/clusterfleet/midplane/pkg/log"
	"github.com/clusterfleet/midplane/pkg/nodestate"
	"github.com/clusterfleet/midplane/pkg/types"
)

// SplitNodeStates converts the legacy combined state file, which held every
// node's observations keyed by node id, into the per-node observation files
// the monitor writes today. The legacy file is left in place for rollback.
func SplitNodeStates(specFile string) Migration {
	return Migration{
		Name: "0001_split_node_states",
		Run: func(ctx context.Context) error {
			legacyPath := specFile + ".state"

			raw, err := os.ReadFile(legacyPath)
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return fmt.Errorf("failed to read legacy state file %q: %w", legacyPath, err)
			}

			var combined map[string]map[string]types.ServiceObservation
			if err := json.Unmarshal(raw, &combined); err != nil {
				return fmt.Errorf("failed to decode legacy state file %q: %w", legacyPath, err)
			}

			store := nodestate.NewStore(specFile, log.WithComponent("migrations"))
			for nodeKey, observations := range combined {
				nodeID, err := strconv.Atoi(nodeKey)
				if err != nil {
					return fmt.Errorf("legacy state file has non-numeric node id %q", nodeKey)
				}

				existing, err := store.Load(nodeID)
				if err != nil {
					return err
				}
				if len(existing) > 0 {
					continue
				}
				if err := store.Save(nodeID, observations); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
