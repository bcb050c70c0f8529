// Package cmd contains the clawrrency-wallet operator CLI: a thin client
// that holds keys locally and talks to a node's public API for everything
// else (account lookups, registration, the marketplace).
package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	walletName string
	walletPath string
	nodeURL    string
)

const walletExtension = ".json"

func init() {
	rootCmd.PersistentFlags().StringVarP(&walletName, "wallet", "w", "wallet", "Name of the local wallet file.")
	rootCmd.PersistentFlags().StringVarP(&walletPath, "wallet-path", "p", "zblock/accounts/", "Directory holding wallet files.")
	rootCmd.PersistentFlags().StringVarP(&nodeURL, "url", "u", "http://localhost:8080", "Base URL of the node's public API.")
}

var rootCmd = &cobra.Command{
	Use:   "clawrrency-wallet",
	Short: "Operate a clawrrency wallet against a node",
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func walletFilePath() string {
	name := walletName
	if !strings.HasSuffix(name, walletExtension) {
		name += walletExtension
	}

	return filepath.Join(walletPath, name)
}
