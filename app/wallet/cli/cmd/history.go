package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the transaction history for a local wallet",
	Run:   historyRun,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Maximum number of transactions to print.")
}

func historyRun(cmd *cobra.Command, args []string) {
	wf, err := loadWallet(walletFilePath())
	if err != nil {
		log.Fatal(err)
	}

	var history []struct {
		Digest      string `json:"digest"`
		Type        string `json:"type"`
		From        string `json:"from"`
		To          string `json:"to,omitempty"`
		Amount      uint64 `json:"amount"`
		BlockHeight uint64 `json:"block_height"`
	}

	path := fmt.Sprintf("/v1/tx/history/%s?limit=%d", wf.PublicKey, historyLimit)
	if err := apiGet(path, &history); err != nil {
		log.Fatal(err)
	}

	for _, tx := range history {
		fmt.Printf("[%d] %s %s -> %s amount=%d digest=%s\n", tx.BlockHeight, tx.Type, tx.From, tx.To, tx.Amount, tx.Digest)
	}
}
