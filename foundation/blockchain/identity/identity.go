// Package identity maintains the registry of bot identities: their
// keypairs, metadata, stake state, attestations, and reputation derived
// from activity counters reported by the caller.
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
	"github.com/clawrrency/clawrrency/foundation/blockchain/economics"
	"github.com/clawrrency/clawrrency/foundation/blockchain/errs"
	"github.com/clawrrency/clawrrency/foundation/blockchain/signature"
)

// EventHandler defines a function called when events occur in the
// registry, matching the logging convention used across the package.
type EventHandler func(v string, args ...any)

// Ledger is the subset of the ledger engine the identity registry needs to
// move shells for stake locking and registration minting.
type Ledger interface {
	GetAccount(accountID database.AccountID) (database.Account, bool)
	CreateAccount(accountID database.AccountID, initialBalance uint64) error
	CreditReward(accountID database.AccountID, amount uint64) error
	SetStake(accountID database.AccountID, lockedAmount uint64, unlockAt time.Time) error
	SetReputation(accountID database.AccountID, reputation float64) error
}

// =============================================================================

// Identity is the registry's record for a single bot.
type Identity struct {
	PublicKey   string   `json:"public_key"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	CreatedAt   int64    `json:"created_at"`
	Registered  bool     `json:"registered"`
	SkillCount  uint64   `json:"skill_count"`
	Attestors   []string `json:"attestors,omitempty"`
	Attested    []string `json:"attested,omitempty"`
}

// walletRecord pairs an Identity with its private key, kept only inside
// the registry's authoritative store and never serialized to the wire
// format used by transactions or consensus messages.
type walletRecord struct {
	Identity
	PrivateKey string `json:"private_key"`
}

// =============================================================================

// Registry manages identities, their stake state, and attestations.
type Registry struct {
	mu sync.RWMutex

	bots         map[string]walletRecord
	attestations map[string][]string

	path      string
	ledger    Ledger
	evHandler EventHandler
}

// persistedState is the logical shape of the identity state file.
type persistedState struct {
	Version      int                     `json:"version"`
	Bots         map[string]walletRecord `json:"bots"`
	Attestations map[string][]string     `json:"attestations"`
}

// New constructs a Registry backed by ledger for stake/reward movement and
// persisted as JSON at path. If path already exists it is loaded.
func New(path string, ledger Ledger, evHandler EventHandler) (*Registry, error) {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	r := Registry{
		bots:         make(map[string]walletRecord),
		attestations: make(map[string][]string),
		path:         path,
		ledger:       ledger,
		evHandler:    ev,
	}

	if err := r.load(); err != nil {
		return nil, fmt.Errorf("loading identity state: %w", err)
	}

	return &r, nil
}

// =============================================================================

// CreateWallet generates a fresh Ed25519 keypair, registers it in the
// registry (unregistered/unstaked), opens a zero-balance ledger account
// for it, and returns the keypair so the caller can persist the private
// key themselves.
func (r *Registry) CreateWallet(name, description string) (signature.KeyPair, error) {
	kp, err := signature.GenerateKeyPair()
	if err != nil {
		return signature.KeyPair{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pk := kp.PublicKeyHex()
	r.bots[pk] = walletRecord{
		Identity: Identity{
			PublicKey:   pk,
			Name:        name,
			Description: description,
			CreatedAt:   time.Now().UnixMilli(),
		},
		PrivateKey: kp.PrivateKeyHex(),
	}

	if r.ledger != nil {
		if err := r.ledger.CreateAccount(database.AccountID(pk), 0); err != nil {
			delete(r.bots, pk)
			return signature.KeyPair{}, err
		}
	}

	r.evHandler("identity: CreateWallet: created: pk[%s] name[%s]", pk, name)

	return kp, r.save()
}

// RegisterBot enforces the stake minimum (with attestation discount), locks
// the stake for StakeLockDays, mints the registration reward, and records
// the attestation relationship both ways if an attester is supplied.
func (r *Registry) RegisterBot(pk string, stake uint64, attesterPK string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bot, exists := r.bots[pk]
	if !exists {
		return errs.Newf(errs.UnknownSender, "unknown bot %s", pk)
	}

	attested := false
	if attesterPK != "" {
		if _, ok := r.bots[attesterPK]; !ok {
			return errs.Newf(errs.UnknownSender, "unknown attester %s", attesterPK)
		}

		attesterRep := 0.0
		if r.ledger != nil {
			if acc, ok := r.ledger.GetAccount(database.AccountID(attesterPK)); ok {
				attesterRep = acc.Reputation
			}
		}

		if attesterRep < economics.AttesterMinReputation {
			return errs.Newf(errs.ReputationTooLow, "attester reputation %.2f below required %.2f", attesterRep, economics.AttesterMinReputation)
		}

		attested = true
	}

	required := economics.RequiredStake(attested)
	if stake < required {
		return errs.Newf(errs.StakeRequired, "stake %d below required %d", stake, required)
	}

	unlockAt := time.Now().Add(economics.StakeLockDays * 24 * time.Hour)
	if r.ledger != nil {
		if err := r.ledger.SetStake(database.AccountID(pk), stake, unlockAt); err != nil {
			return err
		}

		mint := economics.RegistrationMintUnattested
		if attested {
			mint = economics.RegistrationMintAttested
		}
		if err := r.ledger.CreditReward(database.AccountID(pk), mint); err != nil {
			return err
		}
	}

	bot.Registered = true
	r.bots[pk] = bot

	if attested {
		attester := r.bots[attesterPK]
		attester.Attested = appendUnique(attester.Attested, pk)
		r.bots[attesterPK] = attester

		bot = r.bots[pk]
		bot.Attestors = appendUnique(bot.Attestors, attesterPK)
		r.bots[pk] = bot

		r.attestations[attesterPK] = appendUnique(r.attestations[attesterPK], pk)
	}

	r.evHandler("identity: RegisterBot: registered: pk[%s] stake[%d] attested[%t]", pk, stake, attested)

	return r.save()
}

// IsRegistered reports whether pk's stake is locked at or above the
// required minimum and the lock has not yet expired.
func (r *Registry) IsRegistered(pk string) bool {
	if r.ledger == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		bot, exists := r.bots[pk]
		return exists && bot.Registered
	}

	acc, exists := r.ledger.GetAccount(database.AccountID(pk))
	if !exists {
		return false
	}

	return acc.StakeLocked >= economics.StakeRequired &&
		acc.StakeUnlockAt > time.Now().UnixMilli()
}

// UpdateReputation recomputes R from the supplied activity counters and the
// account's age (derived from now - created_at, in months) and stores it
// on the ledger account. The identity record has no reputation field.
func (r *Registry) UpdateReputation(pk string, counters economics.ReputationCounters) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bot, exists := r.bots[pk]
	if !exists {
		return 0, errs.Newf(errs.UnknownSender, "unknown bot %s", pk)
	}

	ageMonths := float64(time.Now().UnixMilli()-bot.CreatedAt) / float64(30*24*time.Hour.Milliseconds())
	counters.AccountAgeMos = ageMonths
	counters.Skills = bot.SkillCount

	rep := economics.Reputation(counters)

	if r.ledger != nil {
		if err := r.ledger.SetReputation(database.AccountID(pk), rep); err != nil {
			return 0, err
		}
	}

	r.evHandler("identity: UpdateReputation: pk[%s] reputation[%.4f]", pk, rep)

	return rep, r.save()
}

// IncrementSkillCount bumps pk's published-skill count by one, feeding the
// reputation formula's skills term. Called by the marketplace on every
// successful create_skill.
func (r *Registry) IncrementSkillCount(pk string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bot, exists := r.bots[pk]
	if !exists {
		return errs.Newf(errs.UnknownSender, "unknown bot %s", pk)
	}

	bot.SkillCount++
	r.bots[pk] = bot

	return r.save()
}

// Get returns the public Identity record for pk.
func (r *Registry) Get(pk string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bot, exists := r.bots[pk]
	return bot.Identity, exists
}

// List returns every known identity, sorted by public key.
func (r *Registry) List() []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Identity, 0, len(r.bots))
	for _, bot := range r.bots {
		out = append(out, bot.Identity)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].PublicKey < out[j].PublicKey })

	return out
}

// PrivateKey returns the hex-encoded private key for pk, for use by a CLI
// or embedder that created the wallet through this registry and now needs
// to sign a transaction. Production deployments with external key custody
// should not route through this path.
func (r *Registry) PrivateKey(pk string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bot, exists := r.bots[pk]
	return bot.PrivateKey, exists
}

// =============================================================================

func appendUnique(list []string, v string) []string {
	for _, e := range list {
		if e == v {
			return list
		}
	}
	return append(list, v)
}

func (r *Registry) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}

	r.bots = state.Bots
	r.attestations = state.Attestations
	if r.bots == nil {
		r.bots = make(map[string]walletRecord)
	}
	if r.attestations == nil {
		r.attestations = make(map[string][]string)
	}

	return nil
}

func (r *Registry) save() error {
	if r.path == "" {
		return nil
	}

	state := persistedState{
		Version:      1,
		Bots:         r.bots,
		Attestations: r.attestations,
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, r.path)
}
