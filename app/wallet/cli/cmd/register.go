package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var (
	registerStake    uint64
	registerAttester string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Lock stake and register a local wallet as a bot identity",
	Run:   registerRun,
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().Uint64VarP(&registerStake, "stake", "s", 0, "Amount to lock as stake.")
	registerCmd.Flags().StringVarP(&registerAttester, "attester", "a", "", "Public key of an attesting bot, for the discounted stake requirement.")
	registerCmd.MarkFlagRequired("stake")
}

func registerRun(cmd *cobra.Command, args []string) {
	wf, err := loadWallet(walletFilePath())
	if err != nil {
		log.Fatal(err)
	}

	req := struct {
		PublicKey  string `json:"public_key"`
		Stake      uint64 `json:"stake"`
		AttesterPK string `json:"attester_public_key"`
	}{wf.PublicKey, registerStake, registerAttester}

	var id struct {
		Registered bool `json:"registered"`
	}

	if err := apiPost("/v1/identity/register", req, &id); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Registered:", id.Registered)
}
