package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var (
	transferTo     string
	transferAmount uint64
	transferNonce  uint64
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Sign and submit a transfer transaction",
	Run:   transferRun,
}

func init() {
	rootCmd.AddCommand(transferCmd)
	transferCmd.Flags().StringVarP(&transferTo, "to", "t", "", "Recipient account id.")
	transferCmd.Flags().Uint64VarP(&transferAmount, "amount", "a", 0, "Amount to send.")
	transferCmd.Flags().Uint64VarP(&transferNonce, "nonce", "n", 0, "Nonce for this transaction; the account's current nonce + 1 if zero.")
	transferCmd.MarkFlagRequired("to")
	transferCmd.MarkFlagRequired("amount")
}

func transferRun(cmd *cobra.Command, args []string) {
	wf, err := loadWallet(walletFilePath())
	if err != nil {
		log.Fatal(err)
	}

	privateKey, err := wf.privateKey()
	if err != nil {
		log.Fatal(err)
	}

	nonce := transferNonce
	if nonce == 0 {
		var account struct {
			Nonce uint64 `json:"nonce"`
		}
		if err := apiGet("/v1/accounts/"+wf.PublicKey, &account); err != nil {
			log.Fatal(err)
		}
		nonce = account.Nonce + 1
	}

	tx := database.Tx{
		Version:   database.CurrentVersion,
		Type:      database.TxTransfer,
		From:      database.AccountID(wf.PublicKey),
		To:        database.AccountID(transferTo),
		Amount:    transferAmount,
		Nonce:     nonce,
		Timestamp: time.Now().UnixMilli(),
	}

	signedTx, err := tx.Sign(privateKey)
	if err != nil {
		log.Fatal(err)
	}

	var resp struct {
		Digest string `json:"digest"`
		Status string `json:"status"`
	}

	if err := apiPost("/v1/tx/submit", signedTx, &resp); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Digest:", resp.Digest)
	fmt.Println("Status:", resp.Status)
}
