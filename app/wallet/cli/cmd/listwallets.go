package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var listWalletsCmd = &cobra.Command{
	Use:   "list-wallets",
	Short: "List the wallet files saved under --wallet-path",
	Run:   listWalletsRun,
}

func init() {
	rootCmd.AddCommand(listWalletsCmd)
}

func listWalletsRun(cmd *cobra.Command, args []string) {
	entries, err := os.ReadDir(walletPath)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		log.Fatal(err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), walletExtension) {
			continue
		}

		wf, err := loadWallet(filepath.Join(walletPath, e.Name()))
		if err != nil {
			log.Println("skipping", e.Name(), ":", err)
			continue
		}

		fmt.Printf("%-20s %s\n", wf.Name, wf.PublicKey)
	}
}
