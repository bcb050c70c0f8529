// Package nameservice provides a presentation-only lookup from account
// public keys to human-friendly names. It never touches private keys or
// ledger state; it exists purely so a CLI or explorer can show "alice"
// instead of a 64-character hex public key.
package nameservice

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
)

// NameService maintains a map of accounts to display names.
type NameService struct {
	mu    sync.RWMutex
	names map[database.AccountID]string
	path  string
}

// New constructs a NameService, loading any existing mapping from path. A
// missing file is not an error; the service simply starts empty.
func New(path string) (*NameService, error) {
	ns := NameService{
		names: make(map[database.AccountID]string),
		path:  path,
	}

	if path == "" {
		return &ns, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ns, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, &ns.names); err != nil {
		return nil, err
	}

	return &ns, nil
}

// Register associates a display name with an account and persists the
// mapping if the service was constructed with a backing path.
func (ns *NameService) Register(account database.AccountID, name string) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	ns.names[account] = name

	if ns.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(ns.names, "", "  ")
	if err != nil {
		return err
	}

	tmp := ns.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, ns.path)
}

// Lookup returns the display name for account, or the account id itself if
// no name has been registered.
func (ns *NameService) Lookup(account database.AccountID) string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	name, exists := ns.names[account]
	if !exists {
		return string(account)
	}
	return name
}

// Copy returns a snapshot of the account-to-name mapping.
func (ns *NameService) Copy() map[database.AccountID]string {
	ns.mu.RLock()
	defer ns.mu.RUnlock()

	cpy := make(map[database.AccountID]string, len(ns.names))
	for account, name := range ns.names {
		cpy[account] = name
	}
	return cpy
}
