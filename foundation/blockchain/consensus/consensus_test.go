package consensus_test

import (
	"testing"
	"time"

	"github.com/clawrrency/clawrrency/foundation/blockchain/consensus"
	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
	"github.com/clawrrency/clawrrency/foundation/blockchain/genesis"
	"github.com/clawrrency/clawrrency/foundation/blockchain/signature"
)

const (
	success = "✓"
	failed  = "✗"
)

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

type noopBroadcaster struct{}

func (noopBroadcaster) SendPrePrepare(consensus.Message, database.SignedTx)        {}
func (noopBroadcaster) SendBatchPrePrepare(consensus.Message, []database.SignedTx) {}
func (noopBroadcaster) SendPrepare(consensus.Message)                              {}
func (noopBroadcaster) SendCommit(consensus.Message)                              {}


// Test_SingleNodeCommit checks that a lone validator submitting a valid
// transfer commits immediately, the ledger reflects it, pending drains to
// zero, and the message log carries all three phases.
func Test_SingleNodeCommit(t *testing.T) {
	sender, _ := signature.GenerateKeyPair()
	recipient, _ := signature.GenerateKeyPair()

	gen := genesis.Default()
	gen.Balances = map[string]uint64{
		sender.PublicKeyHex():    1000,
		recipient.PublicKeyHex(): 100,
	}

	ledger, err := database.New(gen, &memStore{}, nil)
	if err != nil {
		t.Fatalf("%s\tconstructing ledger: %v", failed, err)
	}

	self := consensus.Member{ID: database.AccountID(sender.PublicKeyHex()), Host: "v1"}
	engine, err := consensus.New([]consensus.Member{self}, 0, sender.PrivateKey, ledger, noopBroadcaster{}, time.Second, nil)
	if err != nil {
		t.Fatalf("%s\tconstructing engine: %v", failed, err)
	}

	var committed database.StoredTx
	engine.OnCommit(func(stored database.StoredTx) { committed = stored })

	tx := database.Tx{
		Version:   database.CurrentVersion,
		Type:      database.TxTransfer,
		From:      database.AccountID(sender.PublicKeyHex()),
		To:        database.AccountID(recipient.PublicKeyHex()),
		Amount:    100,
		Nonce:     1,
		Timestamp: time.Now().UnixMilli(),
	}
	signed, err := tx.Sign(sender.PrivateKey)
	if err != nil {
		t.Fatalf("%s\tsigning transaction: %v", failed, err)
	}

	if err := engine.SubmitTransaction(signed); err != nil {
		t.Fatalf("%s\tsubmitting transaction: %v", failed, err)
	}
	t.Logf("%s\tsubmitted transaction to sole validator", success)

	if engine.PendingCount() != 0 {
		t.Fatalf("%s\texpected pending count 0, got %d", failed, engine.PendingCount())
	}
	t.Logf("%s\tpending count drained to zero", success)

	if committed.Digest != signed.Digest() {
		t.Fatalf("%s\texpected commit callback to fire with the submitted digest", failed)
	}

	if got := ledger.GetBalance(database.AccountID(recipient.PublicKeyHex())); got != 200 {
		t.Fatalf("%s\trecipient balance: got %d, exp 200", failed, got)
	}
	t.Logf("%s\tledger reflects the committed transfer", success)

	log := engine.MessageLog()
	var sawPrePrepare, sawPrepare, sawCommit bool
	for _, msg := range log {
		switch msg.Type {
		case consensus.PhasePrePrepare:
			sawPrePrepare = true
		case consensus.PhasePrepare:
			sawPrepare = true
		case consensus.PhaseCommit:
			sawCommit = true
		}
		if msg.Validator != string(self.ID) {
			t.Fatalf("%s\texpected every message to originate from the sole validator", failed)
		}
	}
	if !sawPrePrepare || !sawPrepare || !sawCommit {
		t.Fatalf("%s\tmessage log missing a phase: pre-prepare[%t] prepare[%t] commit[%t]", failed, sawPrePrepare, sawPrepare, sawCommit)
	}
	t.Logf("%s\tmessage log carries all three phases from the sole validator", success)
}

// Test_Quorum checks the quorum formula: f = floor((n-1)/3), quorum = 2f+1.
func Test_Quorum(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{1, 1},
		{3, 1},
		{4, 3},
		{7, 5},
	}

	for _, c := range cases {
		members := make([]consensus.Member, c.n)
		for i := range members {
			members[i] = consensus.Member{ID: database.AccountID("m"), Host: "h"}
		}

		kp, _ := signature.GenerateKeyPair()
		ledger, _ := database.New(genesis.Default(), &memStore{}, nil)
		engine, err := consensus.New(members, 0, kp.PrivateKey, ledger, noopBroadcaster{}, time.Second, nil)
		if err != nil {
			t.Fatalf("%s\tconstructing engine for n=%d: %v", failed, c.n, err)
		}

		if got := engine.QuorumForTest(); got != c.want {
			t.Fatalf("%s\tn=%d: quorum got %d, exp %d", failed, c.n, got, c.want)
		}
	}
	t.Logf("%s\tquorum formula matches f=floor((n-1)/3), quorum=2f+1", success)
}

// Test_BatchCommit checks that a leader can propose several transactions
// under one merkle-batched PRE-PREPARE and that every transaction in the
// batch lands on the ledger once the batch commits.
func Test_BatchCommit(t *testing.T) {
	sender, _ := signature.GenerateKeyPair()
	other, _ := signature.GenerateKeyPair()
	recipient, _ := signature.GenerateKeyPair()

	gen := genesis.Default()
	gen.Balances = map[string]uint64{
		sender.PublicKeyHex():    1000,
		other.PublicKeyHex():     1000,
		recipient.PublicKeyHex(): 0,
	}

	ledger, err := database.New(gen, &memStore{}, nil)
	if err != nil {
		t.Fatalf("%s\tconstructing ledger: %v", failed, err)
	}

	self := consensus.Member{ID: database.AccountID(sender.PublicKeyHex()), Host: "v1"}
	engine, err := consensus.New([]consensus.Member{self}, 0, sender.PrivateKey, ledger, noopBroadcaster{}, time.Second, nil)
	if err != nil {
		t.Fatalf("%s\tconstructing engine: %v", failed, err)
	}

	var committed []database.StoredTx
	engine.OnCommit(func(stored database.StoredTx) { committed = append(committed, stored) })

	mk := func(kp signature.KeyPair, amount, nonce uint64) database.SignedTx {
		tx := database.Tx{
			Version:   database.CurrentVersion,
			Type:      database.TxTransfer,
			From:      database.AccountID(kp.PublicKeyHex()),
			To:        database.AccountID(recipient.PublicKeyHex()),
			Amount:    amount,
			Nonce:     nonce,
			Timestamp: time.Now().UnixMilli(),
		}
		signed, err := tx.Sign(kp.PrivateKey)
		if err != nil {
			t.Fatalf("%s\tsigning batch transaction: %v", failed, err)
		}
		return signed
	}

	batch := []database.SignedTx{
		mk(sender, 100, 1),
		mk(other, 50, 1),
	}

	if err := engine.SubmitBatch(batch); err != nil {
		t.Fatalf("%s\tsubmitting batch: %v", failed, err)
	}
	t.Logf("%s\tsubmitted a two-transaction batch to sole validator", success)

	if engine.PendingCount() != 0 {
		t.Fatalf("%s\texpected pending count 0 after batch commit, got %d", failed, engine.PendingCount())
	}

	if len(committed) != 2 {
		t.Fatalf("%s\texpected two commit callbacks, got %d", failed, len(committed))
	}
	t.Logf("%s\tboth batched transactions committed", success)

	if got := ledger.GetBalance(database.AccountID(recipient.PublicKeyHex())); got != 150 {
		t.Fatalf("%s\trecipient balance: got %d, exp 150", failed, got)
	}
	t.Logf("%s\tledger reflects both transfers in the batch", success)

	var sawPrePrepare bool
	var batchDigestSeen string
	for _, msg := range engine.MessageLog() {
		if msg.Type == consensus.PhasePrePrepare {
			sawPrePrepare = true
			batchDigestSeen = msg.Digest
		}
	}
	if !sawPrePrepare {
		t.Fatalf("%s\texpected a pre-prepare message for the batch", failed)
	}
	if batchDigestSeen == batch[0].Digest() || batchDigestSeen == batch[1].Digest() {
		t.Fatalf("%s\texpected the batch digest to be a merkle root, not a single transaction digest", failed)
	}
	t.Logf("%s\tpre-prepare carries a merkle root over the batch, not a single tx digest", success)
}
