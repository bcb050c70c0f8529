package commands

import (
	"fmt"

	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
)

// Balances prints the ledger's current account set, or a single account
// when one is named on the command line.
func Balances(args []string, ledger *database.Ledger) error {
	var only database.AccountID
	if len(args) == 2 {
		only = database.AccountID(args[1])
	}

	fmt.Printf("BlockHeight: %d\n\n", ledger.BlockHeight())

	for _, acct := range ledger.ListAccounts() {
		if only != "" && acct.AccountID != only {
			continue
		}

		fmt.Printf("Account: %s  Balance: %d  Nonce: %d  Reputation: %.2f  StakeLocked: %d\n",
			acct.AccountID, acct.Balance, acct.Nonce, acct.Reputation, acct.StakeLocked)
	}

	return nil
}
