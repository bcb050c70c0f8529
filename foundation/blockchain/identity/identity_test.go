package identity_test

import (
	"testing"
	"time"

	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
	"github.com/clawrrency/clawrrency/foundation/blockchain/economics"
	"github.com/clawrrency/clawrrency/foundation/blockchain/errs"
	"github.com/clawrrency/clawrrency/foundation/blockchain/identity"
)

const (
	success = "✓"
	failed  = "✗"
)

// fakeLedger is a minimal in-memory stand-in for the ledger engine,
// sufficient to exercise stake locking, reward minting, and reputation
// writes without pulling in the full database package's signature checks.
type fakeLedger struct {
	accounts map[database.AccountID]database.Account
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{accounts: make(map[database.AccountID]database.Account)}
}

func (f *fakeLedger) GetAccount(id database.AccountID) (database.Account, bool) {
	acc, ok := f.accounts[id]
	return acc, ok
}

func (f *fakeLedger) CreateAccount(id database.AccountID, balance uint64) error {
	if _, exists := f.accounts[id]; exists {
		return errs.New(errs.InvalidAmount, "exists")
	}
	f.accounts[id] = database.Account{AccountID: id, Balance: balance}
	return nil
}

func (f *fakeLedger) CreditReward(id database.AccountID, amount uint64) error {
	acc := f.accounts[id]
	acc.Balance += amount
	f.accounts[id] = acc
	return nil
}

func (f *fakeLedger) SetStake(id database.AccountID, locked uint64, unlockAt time.Time) error {
	acc := f.accounts[id]
	if acc.Balance < locked {
		return errs.New(errs.InsufficientBalance, "insufficient")
	}
	acc.Balance -= locked
	acc.StakeLocked += locked
	acc.StakeUnlockAt = unlockAt.UnixMilli()
	f.accounts[id] = acc
	return nil
}

func (f *fakeLedger) SetReputation(id database.AccountID, rep float64) error {
	acc := f.accounts[id]
	acc.Reputation = rep
	f.accounts[id] = acc
	return nil
}

// =============================================================================

func Test_RegisterBot_UnattestedRequiresFullStake(t *testing.T) {
	ledger := newFakeLedger()
	reg, err := identity.New("", ledger, nil)
	if err != nil {
		t.Fatalf("%s\tconstructing registry: %v", failed, err)
	}

	kp, err := reg.CreateWallet("bot-1", "test bot")
	if err != nil {
		t.Fatalf("%s\tcreating wallet: %v", failed, err)
	}
	pk := kp.PublicKeyHex()

	ledger.accounts[database.AccountID(pk)] = database.Account{AccountID: database.AccountID(pk), Balance: 100}

	if err := reg.RegisterBot(pk, 49, ""); err == nil {
		t.Fatalf("%s\texpected STAKE_REQUIRED for understake, got success", failed)
	} else if e, ok := errs.As(err); !ok || e.Code != errs.StakeRequired {
		t.Fatalf("%s\texpected STAKE_REQUIRED, got %v", failed, err)
	}
	t.Logf("%s\tunderstaked registration rejected", success)

	if err := reg.RegisterBot(pk, 50, ""); err != nil {
		t.Fatalf("%s\tregistering with full stake: %v", failed, err)
	}

	if !reg.IsRegistered(pk) {
		t.Fatalf("%s\texpected bot to be registered", failed)
	}
	t.Logf("%s\tbot registered with full stake", success)

	acc, _ := ledger.GetAccount(database.AccountID(pk))
	if acc.Balance != 100-50+economics.RegistrationMintUnattested {
		t.Fatalf("%s\tunexpected balance after registration: %d", failed, acc.Balance)
	}
}

func Test_RegisterBot_AttestedDiscount(t *testing.T) {
	ledger := newFakeLedger()
	reg, err := identity.New("", ledger, nil)
	if err != nil {
		t.Fatalf("%s\tconstructing registry: %v", failed, err)
	}

	attester, _ := reg.CreateWallet("attester", "")
	bot, _ := reg.CreateWallet("bot", "")

	ledger.accounts[database.AccountID(attester.PublicKeyHex())] = database.Account{
		AccountID:  database.AccountID(attester.PublicKeyHex()),
		Balance:    1000,
		Reputation: 150,
	}
	ledger.accounts[database.AccountID(bot.PublicKeyHex())] = database.Account{
		AccountID: database.AccountID(bot.PublicKeyHex()),
		Balance:   25,
	}

	if err := reg.RegisterBot(bot.PublicKeyHex(), 25, attester.PublicKeyHex()); err != nil {
		t.Fatalf("%s\tregistering with attestation: %v", failed, err)
	}
	t.Logf("%s\tattested registration succeeded at discounted stake", success)

	identityRecord, _ := reg.Get(bot.PublicKeyHex())
	if len(identityRecord.Attestors) != 1 || identityRecord.Attestors[0] != attester.PublicKeyHex() {
		t.Fatalf("%s\texpected attestor recorded on bot identity", failed)
	}

	attesterRecord, _ := reg.Get(attester.PublicKeyHex())
	if len(attesterRecord.Attested) != 1 || attesterRecord.Attested[0] != bot.PublicKeyHex() {
		t.Fatalf("%s\texpected attested bot recorded on attester identity", failed)
	}
}

func Test_RegisterBot_AttesterReputationTooLow(t *testing.T) {
	ledger := newFakeLedger()
	reg, _ := identity.New("", ledger, nil)

	attester, _ := reg.CreateWallet("attester", "")
	bot, _ := reg.CreateWallet("bot", "")

	ledger.accounts[database.AccountID(attester.PublicKeyHex())] = database.Account{
		AccountID:  database.AccountID(attester.PublicKeyHex()),
		Reputation: 99,
	}
	ledger.accounts[database.AccountID(bot.PublicKeyHex())] = database.Account{
		AccountID: database.AccountID(bot.PublicKeyHex()),
		Balance:   25,
	}

	err := reg.RegisterBot(bot.PublicKeyHex(), 25, attester.PublicKeyHex())
	if err == nil {
		t.Fatalf("%s\texpected REPUTATION_TOO_LOW, got success", failed)
	}
	if e, ok := errs.As(err); !ok || e.Code != errs.ReputationTooLow {
		t.Fatalf("%s\texpected REPUTATION_TOO_LOW, got %v", failed, err)
	}
}

// Test_ReputationPenalties checks that disputes and spam flags can drive
// the reputation score to its floor.
func Test_ReputationPenalties(t *testing.T) {
	counters := economics.ReputationCounters{
		Trades:        20,
		Skills:        0,
		UptimeHours:   0,
		GovVotes:      0,
		DisputesLost:  5,
		SpamFlags:     2,
		AccountAgeMos: 1,
	}

	got := economics.Reputation(counters)
	want := (200.0 - 250.0 - 200.0) * 0.99
	if want < 0 {
		want = 0
	}

	if got != want {
		t.Fatalf("%s\treputation: got %v, exp %v", failed, got, want)
	}
	t.Logf("%s\tnegative raw reputation clamps to zero", success)
}
