package database_test

import (
	"testing"
	"time"

	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
	"github.com/clawrrency/clawrrency/foundation/blockchain/errs"
	"github.com/clawrrency/clawrrency/foundation/blockchain/genesis"
	"github.com/clawrrency/clawrrency/foundation/blockchain/signature"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// memStore is an in-memory Store used so the property and scenario tests
// below don't touch the filesystem.
type memStore struct {
	snap  database.Snapshot
	saved bool
}

func (m *memStore) Save(s database.Snapshot) error {
	m.snap = s
	m.saved = true
	return nil
}

func (m *memStore) Load() (database.Snapshot, bool, error) {
	return m.snap, m.saved, nil
}

func newLedger(t *testing.T, balances map[string]uint64) (*database.Ledger, *memStore) {
	t.Helper()

	gen := genesis.Default()
	gen.Balances = balances

	store := &memStore{}
	ledger, err := database.New(gen, store, nil)
	if err != nil {
		t.Fatalf("%s\tconstructing ledger: %v", failed, err)
	}

	return ledger, store
}

func transfer(t *testing.T, kp signature.KeyPair, to database.AccountID, amount, nonce uint64) database.SignedTx {
	t.Helper()

	tx := database.Tx{
		Version:   database.CurrentVersion,
		Type:      database.TxTransfer,
		From:      database.AccountID(kp.PublicKeyHex()),
		To:        to,
		Amount:    amount,
		Nonce:     nonce,
		Timestamp: time.Now().UnixMilli(),
	}

	signed, err := tx.Sign(kp.PrivateKey)
	if err != nil {
		t.Fatalf("%s\tsigning transaction: %v", failed, err)
	}

	return signed
}

// =============================================================================

// Test_FreshTransfer checks a simple transfer between two funded accounts.
func Test_FreshTransfer(t *testing.T) {
	sender, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("%s\tgenerating sender keypair: %v", failed, err)
	}
	recipient, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("%s\tgenerating recipient keypair: %v", failed, err)
	}

	ledger, _ := newLedger(t, map[string]uint64{
		sender.PublicKeyHex():    1000,
		recipient.PublicKeyHex(): 100,
	})

	tx := transfer(t, sender, database.AccountID(recipient.PublicKeyHex()), 100, 1)

	if _, err := ledger.ApplyTransaction(tx); err != nil {
		t.Fatalf("%s\tapplying fresh transfer: %v", failed, err)
	}
	t.Logf("%s\tapplied fresh transfer", success)

	if got := ledger.GetBalance(database.AccountID(sender.PublicKeyHex())); got != 899 {
		t.Fatalf("%s\tsender balance: got %d, exp 899", failed, got)
	}
	t.Logf("%s\tsender balance is 899", success)

	if got := ledger.GetBalance(database.AccountID(recipient.PublicKeyHex())); got != 200 {
		t.Fatalf("%s\trecipient balance: got %d, exp 200", failed, got)
	}
	t.Logf("%s\trecipient balance is 200", success)

	acc, _ := ledger.GetAccount(database.AccountID(sender.PublicKeyHex()))
	if acc.Nonce != 1 {
		t.Fatalf("%s\tsender nonce: got %d, exp 1", failed, acc.Nonce)
	}
	t.Logf("%s\tsender nonce is 1", success)
}

// Test_ReplayRejection checks that resubmitting an applied transaction is
// rejected and balances are unchanged.
func Test_ReplayRejection(t *testing.T) {
	sender, _ := signature.GenerateKeyPair()
	recipient, _ := signature.GenerateKeyPair()

	ledger, _ := newLedger(t, map[string]uint64{
		sender.PublicKeyHex():    1000,
		recipient.PublicKeyHex(): 100,
	})

	tx := transfer(t, sender, database.AccountID(recipient.PublicKeyHex()), 100, 1)

	if _, err := ledger.ApplyTransaction(tx); err != nil {
		t.Fatalf("%s\tapplying first transfer: %v", failed, err)
	}

	_, err := ledger.ApplyTransaction(tx)
	if err == nil {
		t.Fatalf("%s\texpected DUPLICATE_TRANSACTION, got success", failed)
	}

	e, ok := errs.As(err)
	if !ok || e.Code != errs.DuplicateTransaction {
		t.Fatalf("%s\texpected DUPLICATE_TRANSACTION, got %v", failed, err)
	}
	t.Logf("%s\treplay rejected with DUPLICATE_TRANSACTION", success)

	if got := ledger.GetBalance(database.AccountID(sender.PublicKeyHex())); got != 899 {
		t.Fatalf("%s\tsender balance changed on replay: got %d, exp 899", failed, got)
	}
}

// Test_NonceGap checks that a nonce which skips ahead is rejected with the
// expected next nonce attached.
func Test_NonceGap(t *testing.T) {
	sender, _ := signature.GenerateKeyPair()
	recipient, _ := signature.GenerateKeyPair()

	ledger, _ := newLedger(t, map[string]uint64{
		sender.PublicKeyHex():    1000,
		recipient.PublicKeyHex(): 100,
	})

	first := transfer(t, sender, database.AccountID(recipient.PublicKeyHex()), 100, 1)
	if _, err := ledger.ApplyTransaction(first); err != nil {
		t.Fatalf("%s\tapplying first transfer: %v", failed, err)
	}

	gapped := transfer(t, sender, database.AccountID(recipient.PublicKeyHex()), 10, 5)
	_, err := ledger.ApplyTransaction(gapped)
	if err == nil {
		t.Fatalf("%s\texpected INVALID_NONCE, got success", failed)
	}

	e, ok := errs.As(err)
	if !ok || e.Code != errs.InvalidNonce {
		t.Fatalf("%s\texpected INVALID_NONCE, got %v", failed, err)
	}
	if e.Expected == nil || *e.Expected != 2 {
		t.Fatalf("%s\texpected nonce 2, got %v", failed, e.Expected)
	}
	t.Logf("%s\tnonce gap rejected with expected=2", success)
}

// Test_ForgedSignature checks that a transaction claiming to be from one
// account but signed by an unrelated key is rejected and state is untouched.
func Test_ForgedSignature(t *testing.T) {
	sender, _ := signature.GenerateKeyPair()
	recipient, _ := signature.GenerateKeyPair()
	attacker, _ := signature.GenerateKeyPair()

	ledger, _ := newLedger(t, map[string]uint64{
		sender.PublicKeyHex():    1000,
		recipient.PublicKeyHex(): 100,
	})

	tx := database.Tx{
		Version:   database.CurrentVersion,
		Type:      database.TxTransfer,
		From:      database.AccountID(sender.PublicKeyHex()),
		To:        database.AccountID(recipient.PublicKeyHex()),
		Amount:    50,
		Nonce:     1,
		Timestamp: time.Now().UnixMilli(),
	}

	forged, err := tx.Sign(attacker.PrivateKey)
	if err != nil {
		t.Fatalf("%s\tsigning with attacker key: %v", failed, err)
	}

	_, err = ledger.ApplyTransaction(forged)
	if err == nil {
		t.Fatalf("%s\texpected INVALID_SIGNATURE, got success", failed)
	}

	e, ok := errs.As(err)
	if !ok || e.Code != errs.InvalidSignature {
		t.Fatalf("%s\texpected INVALID_SIGNATURE, got %v", failed, err)
	}

	if got := ledger.GetBalance(database.AccountID(sender.PublicKeyHex())); got != 1000 {
		t.Fatalf("%s\tsender balance changed after forged signature: got %d, exp 1000", failed, got)
	}
	t.Logf("%s\tforged signature rejected, state untouched", success)
}

// Test_BalanceConservation checks that for every accepted transfer, total
// supply decreases by exactly the fee.
func Test_BalanceConservation(t *testing.T) {
	sender, _ := signature.GenerateKeyPair()
	recipient, _ := signature.GenerateKeyPair()

	ledger, _ := newLedger(t, map[string]uint64{
		sender.PublicKeyHex():    1000,
		recipient.PublicKeyHex(): 100,
	})

	before := ledger.GetBalance(database.AccountID(sender.PublicKeyHex())) +
		ledger.GetBalance(database.AccountID(recipient.PublicKeyHex()))

	tx := transfer(t, sender, database.AccountID(recipient.PublicKeyHex()), 100, 1)
	if _, err := ledger.ApplyTransaction(tx); err != nil {
		t.Fatalf("%s\tapplying transfer: %v", failed, err)
	}

	after := ledger.GetBalance(database.AccountID(sender.PublicKeyHex())) +
		ledger.GetBalance(database.AccountID(recipient.PublicKeyHex()))

	if before-after != 1 {
		t.Fatalf("%s\ttotal supply delta: got %d, exp 1 (the base fee)", failed, before-after)
	}
	t.Logf("%s\ttotal supply decreased by exactly the fee", success)
}

// Test_BlockHeightIncrementsPerCommit checks that the block height
// increments once per applied transaction and is attached to the stored
// record.
func Test_BlockHeightIncrementsPerCommit(t *testing.T) {
	sender, _ := signature.GenerateKeyPair()
	recipient, _ := signature.GenerateKeyPair()

	ledger, _ := newLedger(t, map[string]uint64{
		sender.PublicKeyHex():    1000,
		recipient.PublicKeyHex(): 100,
	})

	var lastHeight uint64
	for i := uint64(1); i <= 3; i++ {
		tx := transfer(t, sender, database.AccountID(recipient.PublicKeyHex()), 10, i)
		stored, err := ledger.ApplyTransaction(tx)
		if err != nil {
			t.Fatalf("%s\tapplying transfer %d: %v", failed, i, err)
		}
		if stored.BlockHeight <= lastHeight {
			t.Fatalf("%s\tblock height did not strictly increase: got %d after %d", failed, stored.BlockHeight, lastHeight)
		}
		lastHeight = stored.BlockHeight
	}

	if ledger.BlockHeight() != lastHeight {
		t.Fatalf("%s\tledger block height %d does not match last stored height %d", failed, ledger.BlockHeight(), lastHeight)
	}
}
