package skills_test

import (
	"testing"

	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
	"github.com/clawrrency/clawrrency/foundation/blockchain/genesis"
	"github.com/clawrrency/clawrrency/foundation/blockchain/signature"
	"github.com/clawrrency/clawrrency/foundation/blockchain/skills"
)

const (
	success = "✓"
	failed  = "✗"
)

// memStore is an in-memory Store used so these tests don't touch the
// filesystem, mirroring the pattern used across the other foundation
// packages' tests.
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

// fakeIdentity is a minimal stand-in for the identity registry, sufficient
// to exercise the marketplace's skill-count bump without pulling in the
// full registry.
type fakeIdentity struct {
	counts map[string]int
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{counts: make(map[string]int)}
}

func (f *fakeIdentity) IncrementSkillCount(pk string) error {
	f.counts[pk]++
	return nil
}

func newMarket(t *testing.T, balances map[string]uint64) (*skills.Market, *database.Ledger) {
	t.Helper()

	gen := genesis.Default()
	gen.Balances = balances

	ledger, err := database.New(gen, &memStore{}, nil)
	if err != nil {
		t.Fatalf("%s\tconstructing ledger: %v", failed, err)
	}

	market, err := skills.New("", ledger, newFakeIdentity(), nil)
	if err != nil {
		t.Fatalf("%s\tconstructing market: %v", failed, err)
	}

	return market, ledger
}

// =============================================================================

// Test_SkillLifecycle exercises create → list → purchase and checks the
// literal balances that fall out of a 50-shell listing bought by an
// account funded with 1000: price 50 plus the base fee of 1 leaves the
// buyer at 949 and credits the seller, starting from zero, up to 50.
func Test_SkillLifecycle(t *testing.T) {
	creator, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("%s\tgenerating creator keypair: %v", failed, err)
	}
	buyer, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("%s\tgenerating buyer keypair: %v", failed, err)
	}

	market, ledger := newMarket(t, map[string]uint64{
		creator.PublicKeyHex(): 0,
		buyer.PublicKeyHex():   1000,
	})

	files := map[string][]byte{"main.py": []byte("print('hi')")}
	skill, err := market.CreateSkill("greeter", "says hi", "1.0.0", "script", files, []string{"main.py"}, creator.PublicKeyHex(), nil, "MIT", "main.py")
	if err != nil {
		t.Fatalf("%s\tcreating skill: %v", failed, err)
	}
	if skill.ID != skill.Manifest.Hash() {
		t.Fatalf("%s\tskill id does not match hash(manifest)", failed)
	}
	t.Logf("%s\tcreated skill with id matching hash(manifest)", success)

	if _, err := market.ListSkill(skill.ID, 50, creator.PublicKeyHex()); err != nil {
		t.Fatalf("%s\tlisting skill: %v", failed, err)
	}

	purchase, err := market.PurchaseSkill(skill.ID, buyer.PublicKeyHex(), buyer.PrivateKey)
	if err != nil {
		t.Fatalf("%s\tpurchasing skill: %v", failed, err)
	}
	if purchase.Price != 50 {
		t.Fatalf("%s\tpurchase price: got %d, exp 50", failed, purchase.Price)
	}
	t.Logf("%s\tpurchase settled at listed price", success)

	stored, ok := ledger.GetTransactionByHash(purchase.TxDigest)
	if !ok {
		t.Fatalf("%s\texpected the settling transaction to be on the ledger", failed)
	}
	if stored.Type != database.TxSkillPurchase {
		t.Fatalf("%s\texpected transaction type skill_purchase, got %s", failed, stored.Type)
	}

	if got := ledger.GetBalance(database.AccountID(buyer.PublicKeyHex())); got != 949 {
		t.Fatalf("%s\tbuyer balance: got %d, exp 949", failed, got)
	}
	t.Logf("%s\tbuyer balance is 949 after price 50 plus fee 1", success)

	if got := ledger.GetBalance(database.AccountID(creator.PublicKeyHex())); got != 50 {
		t.Fatalf("%s\tseller balance: got %d, exp 50", failed, got)
	}
	t.Logf("%s\tseller balance is 50", success)

	refreshed, _ := market.Get(skill.ID)
	if refreshed.SalesCount != 1 {
		t.Fatalf("%s\tsales count: got %d, exp 1", failed, refreshed.SalesCount)
	}
}

// Test_VerifySkill checks that a freshly created skill verifies valid, and
// that mutating its stored content breaks the hash(content)=f.hash
// invariant, flipping verification to false without an error.
func Test_VerifySkill(t *testing.T) {
	creator, _ := signature.GenerateKeyPair()
	market, _ := newMarket(t, map[string]uint64{creator.PublicKeyHex(): 0})

	files := map[string][]byte{"main.py": []byte("print('hi')")}
	skill, err := market.CreateSkill("greeter", "says hi", "1.0.0", "script", files, []string{"main.py"}, creator.PublicKeyHex(), nil, "MIT", "main.py")
	if err != nil {
		t.Fatalf("%s\tcreating skill: %v", failed, err)
	}

	valid, err := market.VerifySkill(skill.ID)
	if err != nil {
		t.Fatalf("%s\tverifying fresh skill: %v", failed, err)
	}
	if !valid {
		t.Fatalf("%s\texpected a freshly created skill to verify valid", failed)
	}
	t.Logf("%s\tfreshly created skill verifies valid", success)

	stored, _ := market.Get(skill.ID)
	stored.Contents["main.py"][0] = 'X'

	valid, err = market.VerifySkill(skill.ID)
	if err != nil {
		t.Fatalf("%s\tverifying tampered skill: %v", failed, err)
	}
	if valid {
		t.Fatalf("%s\texpected a skill with mutated content to verify invalid", failed)
	}
	t.Logf("%s\tmutated content fails hash(content)=f.hash and verifies invalid", success)
}

// Test_AddReview checks purchase gating, the 1-5 rating range, and that
// the listing's rating is recomputed as the arithmetic mean on every
// review.
func Test_AddReview(t *testing.T) {
	creator, _ := signature.GenerateKeyPair()
	buyer, _ := signature.GenerateKeyPair()
	stranger, _ := signature.GenerateKeyPair()

	market, _ := newMarket(t, map[string]uint64{
		creator.PublicKeyHex():  0,
		buyer.PublicKeyHex():    1000,
		stranger.PublicKeyHex(): 1000,
	})

	files := map[string][]byte{"main.py": []byte("print('hi')")}
	skill, err := market.CreateSkill("greeter", "says hi", "1.0.0", "script", files, []string{"main.py"}, creator.PublicKeyHex(), nil, "MIT", "main.py")
	if err != nil {
		t.Fatalf("%s\tcreating skill: %v", failed, err)
	}
	if _, err := market.ListSkill(skill.ID, 50, creator.PublicKeyHex()); err != nil {
		t.Fatalf("%s\tlisting skill: %v", failed, err)
	}

	if _, err := market.AddReview(skill.ID, stranger.PublicKeyHex(), 5, "never bought it"); err == nil {
		t.Fatalf("%s\texpected review from a non-purchaser to be rejected, got success", failed)
	}
	t.Logf("%s\treview from a non-purchaser rejected", success)

	if _, err := market.PurchaseSkill(skill.ID, buyer.PublicKeyHex(), buyer.PrivateKey); err != nil {
		t.Fatalf("%s\tpurchasing skill: %v", failed, err)
	}

	if _, err := market.AddReview(skill.ID, buyer.PublicKeyHex(), 0, "bad"); err == nil {
		t.Fatalf("%s\texpected rating 0 to be rejected, got success", failed)
	}
	if _, err := market.AddReview(skill.ID, buyer.PublicKeyHex(), 6, "great"); err == nil {
		t.Fatalf("%s\texpected rating 6 to be rejected, got success", failed)
	}
	t.Logf("%s\tratings outside 1-5 rejected", success)

	if _, err := market.AddReview(skill.ID, buyer.PublicKeyHex(), 5, "loved it"); err != nil {
		t.Fatalf("%s\tadding first review: %v", failed, err)
	}

	listing, _ := market.GetListing(skill.ID)
	if listing.Rating != 5 {
		t.Fatalf("%s\trating after one review: got %v, exp 5", failed, listing.Rating)
	}

	if _, err := market.AddReview(skill.ID, buyer.PublicKeyHex(), 3, "actually just okay"); err != nil {
		t.Fatalf("%s\tadding second review: %v", failed, err)
	}

	listing, _ = market.GetListing(skill.ID)
	if listing.Rating != 4 {
		t.Fatalf("%s\trating after two reviews: got %v, exp 4 (arithmetic mean of 5 and 3)", failed, listing.Rating)
	}
	t.Logf("%s\tlisting rating recomputed as the arithmetic mean of all reviews", success)
}
