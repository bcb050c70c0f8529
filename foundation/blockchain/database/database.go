// Package database implements the ledger engine: account state, nonce-based
// replay protection, signed transaction application, and the durable JSON
// persistence of that state. It is the authoritative owner of account
// records and the applied-transaction log.
package database

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/clawrrency/clawrrency/foundation/blockchain/economics"
	"github.com/clawrrency/clawrrency/foundation/blockchain/errs"
	"github.com/clawrrency/clawrrency/foundation/blockchain/genesis"
)

// EventHandler defines a function that is called when events occur during
// ledger processing. It never blocks the caller on a consumer that isn't
// ready, matching the other foundation packages' logging convention.
type EventHandler func(v string, args ...any)

// =============================================================================

// Ledger is the ledger engine's in-memory representation, matching the
// persistent ledger state file's logical shape: version, block height, the
// account map, the global transaction log keyed by digest, and a per
// account index of digests in insertion order.
type Ledger struct {
	mu sync.Mutex

	version             int
	blockHeight         uint64
	accounts            map[AccountID]Account
	transactions        map[string]StoredTx
	accountTransactions map[AccountID][]string
	txOrder             []string

	store     Store
	evHandler EventHandler
}

// Store is the durable persistence contract the ledger writes its full
// state to after every mutation. A production deployment may substitute a
// transactional KV store or SQL database as long as it preserves this
// logical read/write shape.
type Store interface {
	Save(Snapshot) error
	Load() (Snapshot, bool, error)
}

// Snapshot is the logical shape of the persisted ledger state file.
type Snapshot struct {
	Version             int                    `json:"version"`
	BlockHeight         uint64                 `json:"block_height"`
	Accounts            map[AccountID]Account  `json:"accounts"`
	Transactions        map[string]StoredTx    `json:"transactions"`
	AccountTransactions map[AccountID][]string `json:"account_transactions"`
	TxOrder             []string               `json:"tx_order"`
}

// New constructs a ledger engine, seeding it from genesis balances and then
// loading and replaying any previously persisted state on top.
func New(gen genesis.Genesis, store Store, evHandler EventHandler) (*Ledger, error) {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	l := Ledger{
		version:             CurrentVersion,
		accounts:            make(map[AccountID]Account),
		transactions:        make(map[string]StoredTx),
		accountTransactions: make(map[AccountID][]string),
		txOrder:             make([]string, 0),
		store:               store,
		evHandler:           ev,
	}

	now := time.Now()
	for accountStr, balance := range gen.Balances {
		accountID, err := ToAccountID(accountStr)
		if err != nil {
			return nil, fmt.Errorf("genesis account %q: %w", accountStr, err)
		}
		l.accounts[accountID] = newAccount(accountID, balance, now)
	}

	snap, found, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading persisted ledger state: %w", err)
	}

	if found {
		ev("database: New: restoring persisted state: height[%d] accounts[%d]", snap.BlockHeight, len(snap.Accounts))
		l.version = snap.Version
		l.blockHeight = snap.BlockHeight
		l.accounts = snap.Accounts
		l.transactions = snap.Transactions
		l.accountTransactions = snap.AccountTransactions
		l.txOrder = snap.TxOrder
	}

	return &l, nil
}

// =============================================================================
// Account operations

// CreateAccount adds a new account with the given starting balance. It
// fails if the account already exists.
func (l *Ledger) CreateAccount(accountID AccountID, initialBalance uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.accounts[accountID]; exists {
		// The error taxonomy has no code for "duplicate account"; InvalidAmount
		// is the closest existing fit and the message spells out the actual
		// reason rather than leaving a reader to guess from the code alone.
		return errs.Newf(errs.InvalidAmount, "cannot create account %s: an account with this id already exists", accountID)
	}

	l.accounts[accountID] = newAccount(accountID, initialBalance, time.Now())

	return l.persist()
}

// GetAccount returns the account record, if present.
func (l *Ledger) GetAccount(accountID AccountID) (Account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[accountID]
	return acc, ok
}

// GetBalance returns the account's balance, or 0 if the account is absent.
func (l *Ledger) GetBalance(accountID AccountID) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.accounts[accountID].Balance
}

// BlockHeight returns the current block height.
func (l *Ledger) BlockHeight() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.blockHeight
}

// =============================================================================
// Transaction application

// ApplyTransaction is the authoritative state-transition function. Checks
// run in the order specified; on any failure no state has been mutated.
func (l *Ledger) ApplyTransaction(tx SignedTx) (StoredTx, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	digest := tx.Digest()

	// 1. Reject replays of an already-applied digest.
	if _, exists := l.transactions[digest]; exists {
		return StoredTx{}, errs.Newf(errs.DuplicateTransaction, "transaction %s already applied", digest)
	}

	// 2. Sender must exist.
	sender, exists := l.accounts[tx.From]
	if !exists {
		return StoredTx{}, errs.Newf(errs.UnknownSender, "sender %s is not known", tx.From)
	}

	// 3. Nonce must be exactly sender.nonce + 1.
	expected := sender.Nonce + 1
	if tx.Nonce != expected {
		return StoredTx{}, errs.NewInvalidNonce(expected)
	}

	// 4. Signature must verify against the recomputed digest.
	if err := tx.Validate(); err != nil {
		return StoredTx{}, errs.Newf(errs.InvalidSignature, "%s", err)
	}

	// 5. Economic constraint check.
	fee, err := l.economicCheck(tx, sender)
	if err != nil {
		return StoredTx{}, err
	}

	// 6/7. Apply the value movement. transfer and skill_purchase both debit
	// the sender and credit the recipient; the fee is burned.
	var recipient Account
	switch tx.Type {
	case TxTransfer, TxSkillPurchase:
		recipient, exists = l.accounts[tx.To]
		if !exists {
			return StoredTx{}, errs.Newf(errs.UnknownRecipient, "recipient %s is not known", tx.To)
		}

		sender.Balance -= tx.Amount + fee
		recipient.Balance += tx.Amount

	case TxMint:
		sender.Balance += tx.Amount

	case TxBurn:
		sender.Balance -= tx.Amount

	case TxStake:
		sender.Balance -= tx.Amount
		sender.StakeLocked += tx.Amount
	}

	now := time.Now()
	sender.Nonce = tx.Nonce
	sender.LastActiveAt = now.UnixMilli()
	l.accounts[tx.From] = sender

	if tx.Type == TxTransfer || tx.Type == TxSkillPurchase {
		recipient.LastActiveAt = now.UnixMilli()
		l.accounts[tx.To] = recipient
	}

	// 8. Append to the global log and both accounts' indices.
	l.blockHeight++
	stored := StoredTx{
		SignedTx:    tx,
		Digest:      digest,
		BlockHeight: l.blockHeight,
		AppliedAt:   now.UnixMilli(),
	}

	l.transactions[digest] = stored
	l.txOrder = append(l.txOrder, digest)
	l.accountTransactions[tx.From] = append(l.accountTransactions[tx.From], digest)
	if tx.To != "" && tx.To != tx.From {
		l.accountTransactions[tx.To] = append(l.accountTransactions[tx.To], digest)
	}

	l.evHandler("database: ApplyTransaction: applied: digest[%s] type[%s] height[%d]", digest, tx.Type, l.blockHeight)

	if err := l.persist(); err != nil {
		return StoredTx{}, fmt.Errorf("persisting ledger state: %w", err)
	}

	return stored, nil
}

// economicCheck runs the pre-apply economic constraint check from the fee
// schedule: amount bounds, transfer-nonzero, and balance sufficiency. It
// returns the fee that will be burned for fee-bearing transaction types.
func (l *Ledger) economicCheck(tx SignedTx, sender Account) (uint64, error) {
	if tx.Amount > economics.MaxSafeAmount {
		return 0, errs.New(errs.InvalidAmount, "amount exceeds safe integer bound")
	}

	if tx.Type == TxTransfer && tx.Amount == 0 {
		return 0, errs.New(errs.InvalidAmount, "transfer amount must be nonzero")
	}

	var fee uint64
	switch tx.Type {
	case TxTransfer, TxSkillPurchase:
		fee = economics.Fee(economics.PriorityNormal)
	}

	switch tx.Type {
	case TxTransfer, TxSkillPurchase, TxBurn, TxStake:
		if sender.Balance < tx.Amount+fee {
			return 0, errs.Newf(errs.InsufficientBalance, "balance %d insufficient for amount %d plus fee %d", sender.Balance, tx.Amount, fee)
		}
	}

	return fee, nil
}

// =============================================================================
// Queries

// GetTransactionByHash returns the stored transaction with the given
// digest, if it has been applied.
func (l *Ledger) GetTransactionByHash(digest string) (StoredTx, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stx, ok := l.transactions[digest]
	return stx, ok
}

// GetTransactionHistory returns the newest-first history of applied
// transactions touching accountID, truncated to limit (0 means no limit).
func (l *Ledger) GetTransactionHistory(accountID AccountID, limit int) []StoredTx {
	l.mu.Lock()
	defer l.mu.Unlock()

	digests := l.accountTransactions[accountID]
	out := make([]StoredTx, 0, len(digests))
	for _, d := range digests {
		out = append(out, l.transactions[d])
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AppliedAt > out[j].AppliedAt
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out
}

// GetAllTransactions returns every applied transaction, newest-first,
// paginated by offset/limit (limit 0 means no limit).
func (l *Ledger) GetAllTransactions(limit, offset int) []StoredTx {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]StoredTx, 0, len(l.txOrder))
	for _, d := range l.txOrder {
		out = append(out, l.transactions[d])
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AppliedAt > out[j].AppliedAt
	})

	if offset > 0 {
		if offset >= len(out) {
			return nil
		}
		out = out[offset:]
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out
}

// ListAccounts returns every known account, sorted by account id.
func (l *Ledger) ListAccounts() []Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Account, 0, len(l.accounts))
	for _, acc := range l.accounts {
		out = append(out, acc)
	}

	sort.Sort(byAccount(out))

	return out
}

// =============================================================================
// Administrative mutations used by the economics/reward and staking paths.

// CreditReward mints amount directly into accountID's balance, bypassing
// nonce/signature checks, for validator and treasury reward distribution.
func (l *Ledger) CreditReward(accountID AccountID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, exists := l.accounts[accountID]
	if !exists {
		acc = newAccount(accountID, 0, time.Now())
	}

	acc.Balance += amount
	l.accounts[accountID] = acc

	return l.persist()
}

// SetStake updates an account's stake-locked amount and unlock time,
// debiting the corresponding amount from spendable balance. Used by the
// identity registry during bot registration.
func (l *Ledger) SetStake(accountID AccountID, lockedAmount uint64, unlockAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, exists := l.accounts[accountID]
	if !exists {
		return errs.Newf(errs.UnknownSender, "account %s is not known", accountID)
	}

	if acc.Balance < lockedAmount {
		return errs.New(errs.InsufficientBalance, "balance insufficient to stake requested amount")
	}

	acc.Balance -= lockedAmount
	acc.StakeLocked += lockedAmount
	acc.StakeUnlockAt = unlockAt.UnixMilli()
	l.accounts[accountID] = acc

	return l.persist()
}

// SetReputation overwrites an account's reputation score, called by the
// identity registry after recomputing it from activity counters.
func (l *Ledger) SetReputation(accountID AccountID, reputation float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, exists := l.accounts[accountID]
	if !exists {
		return errs.Newf(errs.UnknownSender, "account %s is not known", accountID)
	}

	acc.Reputation = reputation
	l.accounts[accountID] = acc

	return l.persist()
}

// =============================================================================

// persist writes the full ledger state to the durable store. Called while
// l.mu is held so the snapshot taken is always consistent with the mutation
// that triggered it.
func (l *Ledger) persist() error {
	if l.store == nil {
		return nil
	}

	snap := Snapshot{
		Version:             l.version,
		BlockHeight:         l.blockHeight,
		Accounts:            l.accounts,
		Transactions:        l.transactions,
		AccountTransactions: l.accountTransactions,
		TxOrder:             l.txOrder,
	}

	return l.store.Save(snap)
}
