package commands

import (
	"fmt"

	blkgenesis "github.com/clawrrency/clawrrency/foundation/blockchain/genesis"
)

// Genesis prints the data directory's genesis configuration.
func Genesis(args []string, dataDir string) error {
	gen, err := blkgenesis.Load(dataDir + "/" + blkgenesis.DefaultPath)
	if err != nil {
		return err
	}

	fmt.Printf("ChainID: %d\n", gen.ChainID)
	fmt.Printf("Date: %s\n", gen.Date)
	fmt.Printf("ViewTimeoutMS: %d\n", gen.ViewTimeoutMS)
	fmt.Printf("CheckpointSize: %d\n", gen.CheckpointSize)
	fmt.Println("Balances:")
	for acct, bal := range gen.Balances {
		fmt.Printf("  %s: %d\n", acct, bal)
	}

	return nil
}
