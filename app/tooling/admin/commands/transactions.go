package commands

import (
	"fmt"

	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
)

// Transactions prints the ledger's full transaction log, or the history
// for a single account when one is named on the command line.
func Transactions(args []string, ledger *database.Ledger) error {
	var acct database.AccountID
	if len(args) == 2 {
		acct = database.AccountID(args[1])
	}

	fmt.Printf("BlockHeight: %d\n\n", ledger.BlockHeight())

	var txs []database.StoredTx
	if acct != "" {
		txs = ledger.GetTransactionHistory(acct, 0)
	} else {
		txs = ledger.GetAllTransactions(0, 0)
	}

	for _, tx := range txs {
		fmt.Printf("Digest: %s  Block: %d  Type: %s  From: %s  To: %s  Amount: %d  Nonce: %d\n",
			tx.Digest, tx.BlockHeight, tx.Type, tx.From, tx.To, tx.Amount, tx.Nonce)
	}

	return nil
}
