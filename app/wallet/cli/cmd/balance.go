package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the ledger balance for a local wallet",
	Run:   balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) {
	wf, err := loadWallet(walletFilePath())
	if err != nil {
		log.Fatal(err)
	}

	var account struct {
		AccountID string `json:"account_id"`
		Balance   uint64 `json:"balance"`
		Nonce     uint64 `json:"nonce"`
	}

	if err := apiGet("/v1/accounts/"+wf.PublicKey, &account); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Account:", wf.PublicKey)
	fmt.Println("Balance:", account.Balance)
	fmt.Println("Nonce:", account.Nonce)
}
