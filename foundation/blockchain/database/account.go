package database

import (
	"errors"
	"time"

	"github.com/clawrrency/clawrrency/foundation/blockchain/signature"
)

// AccountID is the lowercase hex encoding of an Ed25519 public key. It is
// the stable identity of an account on the ledger.
type AccountID string

// ToAccountID validates and converts a hex-encoded string to an AccountID.
func ToAccountID(hexKey string) (AccountID, error) {
	a := AccountID(hexKey)
	if !a.IsAccountID() {
		return "", errors.New("invalid account id format")
	}

	return a, nil
}

// PublicKeyToAccountID converts a decoded public key into its AccountID form.
func PublicKeyToAccountID(pk []byte) AccountID {
	return AccountID(signature.SignatureHex(pk))
}

// IsAccountID reports whether the underlying string is a properly formatted
// hex-encoded Ed25519 public key.
func (a AccountID) IsAccountID() bool {
	_, err := signature.DecodePublicKey(string(a))
	return err == nil
}

// =============================================================================

// Account represents the ledger's record for an individual account.
type Account struct {
	AccountID     AccountID `json:"account_id"`
	Balance       uint64    `json:"balance"`
	Nonce         uint64    `json:"nonce"`
	Reputation    float64   `json:"reputation"`
	CreatedAt     int64     `json:"created_at"`
	LastActiveAt  int64     `json:"last_active_at"`
	StakeLocked   uint64    `json:"stake_locked"`
	StakeUnlockAt int64     `json:"stake_unlock_at,omitempty"`
}

// newAccount constructs a new account record with the given starting
// balance, stamped with the current time.
func newAccount(accountID AccountID, balance uint64, now time.Time) Account {
	return Account{
		AccountID:    accountID,
		Balance:      balance,
		CreatedAt:    now.UnixMilli(),
		LastActiveAt: now.UnixMilli(),
	}
}

// SpendableBalance returns the balance available for ordinary transfers,
// i.e. the account's balance exclusive of stake (stake is tracked and
// debited separately and never double counted against spendable balance).
func (a Account) SpendableBalance() uint64 {
	return a.Balance
}

// =============================================================================

// byAccount sorts accounts by id for deterministic iteration/output.
type byAccount []Account

func (ba byAccount) Len() int           { return len(ba) }
func (ba byAccount) Less(i, j int) bool { return ba[i].AccountID < ba[j].AccountID }
func (ba byAccount) Swap(i, j int)      { ba[i], ba[j] = ba[j], ba[i] }
