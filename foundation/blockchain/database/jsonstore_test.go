package database_test

import (
	"path/filepath"
	"testing"

	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
	"github.com/google/go-cmp/cmp"
)

// Test_JSONStoreRoundTrip checks that a snapshot saved through JSONStore
// reads back byte-for-byte equivalent, field by field, rather than merely
// unmarshaling without error.
func Test_JSONStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := database.NewJSONStore(filepath.Join(dir, "ledger.json"))
	if err != nil {
		t.Fatalf("%s\tconstructing JSONStore: %v", failed, err)
	}

	want := database.Snapshot{
		Version:     database.CurrentVersion,
		BlockHeight: 3,
		Accounts: map[database.AccountID]database.Account{
			"acct-1": {AccountID: "acct-1", Balance: 500, Nonce: 2, Reputation: 12.5},
		},
		Transactions: map[string]database.StoredTx{
			"digest-1": {Digest: "digest-1", BlockHeight: 1},
		},
		AccountTransactions: map[database.AccountID][]string{
			"acct-1": {"digest-1"},
		},
	}

	if err := store.Save(want); err != nil {
		t.Fatalf("%s\tsaving snapshot: %v", failed, err)
	}

	got, found, err := store.Load()
	if err != nil {
		t.Fatalf("%s\tloading snapshot: %v", failed, err)
	}
	if !found {
		t.Fatalf("%s\texpected a persisted snapshot to be found", failed)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("%s\tsnapshot round-trip mismatch (-want +got):\n%s", failed, diff)
	}
	t.Logf("%s\tsnapshot round-trips through JSONStore unchanged", success)
}
