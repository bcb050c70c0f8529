package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var reputationAccount string

var reputationCmd = &cobra.Command{
	Use:   "reputation",
	Short: "Print the reputation score for an account (own wallet if --account omitted)",
	Run:   reputationRun,
}

func init() {
	rootCmd.AddCommand(reputationCmd)
	reputationCmd.Flags().StringVarP(&reputationAccount, "account", "c", "", "Account to query; defaults to this wallet.")
}

func reputationRun(cmd *cobra.Command, args []string) {
	account := reputationAccount
	if account == "" {
		wf, err := loadWallet(walletFilePath())
		if err != nil {
			log.Fatal(err)
		}
		account = wf.PublicKey
	}

	var acc struct {
		Reputation float64 `json:"reputation"`
	}

	if err := apiGet("/v1/accounts/"+account, &acc); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Reputation:", acc.Reputation)
}
