// Package sdk constructs and wires the identity registry, ledger engine,
// skill marketplace, and optionally the PBFT consensus engine and the
// governance oracle stub, all sharing a single on-disk data directory.
// It is the facade an embedder (the HTTP node, the wallet CLI, or a test
// harness) binds against instead of wiring each subsystem by hand.
package sdk

import (
	"crypto/ed25519"
	"fmt"
	"path/filepath"
	"time"

	"github.com/clawrrency/clawrrency/foundation/blockchain/consensus"
	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
	"github.com/clawrrency/clawrrency/foundation/blockchain/genesis"
	"github.com/clawrrency/clawrrency/foundation/blockchain/governance"
	"github.com/clawrrency/clawrrency/foundation/blockchain/identity"
	"github.com/clawrrency/clawrrency/foundation/blockchain/skills"
	"github.com/clawrrency/clawrrency/foundation/nameservice"
)

// EventHandler defines a function called when events occur in any wired
// subsystem, matching the logging convention used across the foundation
// packages. Every subsystem's events funnel through the same handler,
// tagged by the subsystem's own log line prefix.
type EventHandler func(v string, args ...any)

// Config controls which optional subsystems are constructed and how they
// are parameterized.
type Config struct {
	// DataDir is the directory every subsystem persists its JSON state
	// under. It is created if it does not already exist.
	DataDir string

	// Genesis seeds the ledger's initial account balances and consensus
	// parameters. If zero-valued, genesis.Default() is used.
	Genesis genesis.Genesis

	// EventHandler receives every subsystem's log events. May be nil.
	EventHandler EventHandler

	// Consensus, if non-nil, causes SDK to construct a consensus engine
	// for this process as a validator.
	Consensus *ConsensusConfig

	// Governance, if true, causes SDK to construct the governance oracle
	// stub.
	Governance bool
}

// ConsensusConfig parameterizes the optional PBFT consensus engine.
type ConsensusConfig struct {
	Members     []consensus.Member
	SelfIndex   int
	PrivateKey  ed25519.PrivateKey
	Broadcaster consensus.Broadcaster
	ViewTimeout time.Duration
}

// SDK bundles the constructed subsystems. Optional fields are nil when
// their Config entry was not supplied.
type SDK struct {
	Identity    *identity.Registry
	Ledger      *database.Ledger
	NameService *nameservice.NameService
	Marketplace *skills.Market
	Consensus   *consensus.Engine
	Governance  *governance.Oracle
}

// New constructs every configured subsystem in dependency order: ledger
// engine, identity registry, name service, marketplace, then the optional
// consensus engine and governance oracle. A subsystem earlier in this
// order never depends on one that comes later.
func New(cfg Config) (*SDK, error) {
	ev := func(v string, args ...any) {
		if cfg.EventHandler != nil {
			cfg.EventHandler(v, args...)
		}
	}

	gen := cfg.Genesis
	if gen.ChainID == 0 {
		gen = genesis.Default()
	}

	store, err := database.NewJSONStore(filepath.Join(cfg.DataDir, "ledger.json"))
	if err != nil {
		return nil, fmt.Errorf("constructing ledger store: %w", err)
	}

	ledger, err := database.New(gen, store, database.EventHandler(ev))
	if err != nil {
		return nil, fmt.Errorf("constructing ledger: %w", err)
	}

	idRegistry, err := identity.New(filepath.Join(cfg.DataDir, "identity.json"), ledger, identity.EventHandler(ev))
	if err != nil {
		return nil, fmt.Errorf("constructing identity registry: %w", err)
	}

	names, err := nameservice.New(filepath.Join(cfg.DataDir, "names.json"))
	if err != nil {
		return nil, fmt.Errorf("constructing name service: %w", err)
	}

	market, err := skills.New(filepath.Join(cfg.DataDir, "marketplace.json"), ledger, idRegistry, skills.EventHandler(ev))
	if err != nil {
		return nil, fmt.Errorf("constructing marketplace: %w", err)
	}

	s := SDK{
		Identity:    idRegistry,
		Ledger:      ledger,
		NameService: names,
		Marketplace: market,
	}

	if cfg.Consensus != nil {
		cc := cfg.Consensus
		viewTimeout := cc.ViewTimeout
		if viewTimeout == 0 {
			viewTimeout = time.Duration(gen.ViewTimeoutMS) * time.Millisecond
		}

		engine, err := consensus.New(cc.Members, cc.SelfIndex, cc.PrivateKey, ledger, cc.Broadcaster, viewTimeout, consensus.EventHandler(ev))
		if err != nil {
			return nil, fmt.Errorf("constructing consensus engine: %w", err)
		}
		s.Consensus = engine
	}

	if cfg.Governance {
		oracle, err := governance.New(filepath.Join(cfg.DataDir, "governance.json"), governance.EventHandler(ev))
		if err != nil {
			return nil, fmt.Errorf("constructing governance oracle: %w", err)
		}
		s.Governance = oracle
	}

	return &s, nil
}

// Close stops any background goroutines (the consensus engine's
// view-timeout checker, if consensus was configured and started).
func (s *SDK) Close() {
	if s.Consensus != nil {
		s.Consensus.Stop()
	}
}
