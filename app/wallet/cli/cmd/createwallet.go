package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var (
	createWalletDescription string
)

var createWalletCmd = &cobra.Command{
	Use:   "create-wallet",
	Short: "Ask the node to mint a new keypair and account, and save it locally",
	Run:   createWalletRun,
}

func init() {
	rootCmd.AddCommand(createWalletCmd)
	createWalletCmd.Flags().StringVarP(&createWalletDescription, "description", "d", "", "Description for the new identity.")
}

func createWalletRun(cmd *cobra.Command, args []string) {
	req := struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}{walletName, createWalletDescription}

	var resp struct {
		PublicKey  string `json:"public_key"`
		PrivateKey string `json:"private_key"`
	}

	if err := apiPost("/v1/identity/wallets", req, &resp); err != nil {
		log.Fatal(err)
	}

	wf := walletFile{
		Name:       walletName,
		PublicKey:  resp.PublicKey,
		PrivateKey: resp.PrivateKey,
	}

	if err := saveWallet(walletFilePath(), wf); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Account:", resp.PublicKey)
	fmt.Println("Saved to:", walletFilePath())
}
