// Package genesis maintains access to the genesis configuration that seeds
// a fresh ledger with its chain id, consensus parameters, and initial
// account balances.
package genesis

import (
	"encoding/json"
	"os"
	"time"
)

// Genesis represents the genesis configuration file.
type Genesis struct {
	Date           time.Time         `json:"date"`
	ChainID        uint16            `json:"chain_id"`
	ViewTimeoutMS  uint64            `json:"view_timeout_ms"`
	CheckpointSize uint64            `json:"checkpoint_size"`
	Balances       map[string]uint64 `json:"balances"`
}

// DefaultPath is the conventional location of the genesis file within a
// node's data directory.
const DefaultPath = "genesis.json"

// Default returns a genesis configuration with sane defaults and no
// pre-funded accounts, suitable for a fresh single-node deployment or as
// a starting point before adding balances.
func Default() Genesis {
	return Genesis{
		Date:           time.Unix(0, 0).UTC(),
		ChainID:        1,
		ViewTimeoutMS:  4000,
		CheckpointSize: 1024,
		Balances:       map[string]uint64{},
	}
}

// Load reads and decodes the genesis file at path.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var g Genesis
	if err := json.Unmarshal(content, &g); err != nil {
		return Genesis{}, err
	}

	return g, nil
}

// Save writes the genesis configuration to path as indented JSON.
func Save(path string, g Genesis) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
