// This program performs administrative inspection tasks against a node's
// local data directory, and against a running node's private API for the
// state that only ever lives in memory.
package main

import (
	"fmt"
	"os"

	"github.com/clawrrency/clawrrency/app/tooling/admin/commands"
	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
	"github.com/clawrrency/clawrrency/foundation/blockchain/genesis"
	"github.com/clawrrency/clawrrency/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	dataDir := "zblock"
	nodeURL := "http://localhost:9080"

	args := parseGlobalFlags(os.Args[1:], &dataDir, &nodeURL)
	if len(args) == 0 {
		return fmt.Errorf("usage: clawrrency-admin [--data DIR] [--node-url URL] {genesis|balances|transactions|consensus} ...")
	}

	return processCommands(args, dataDir, nodeURL)
}

// parseGlobalFlags strips the --data and --node-url flags from args,
// wherever they appear, and returns the remaining positional arguments.
func parseGlobalFlags(args []string, dataDir, nodeURL *string) []string {
	var rest []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--data":
			if i+1 < len(args) {
				*dataDir = args[i+1]
				i++
			}
		case "--node-url":
			if i+1 < len(args) {
				*nodeURL = args[i+1]
				i++
			}
		default:
			rest = append(rest, args[i])
		}
	}

	return rest
}

// processCommands handles the execution of the commands specified on the
// command line.
func processCommands(args []string, dataDir string, nodeURL string) error {
	switch args[0] {
	case "genesis":
		if err := commands.Genesis(args, dataDir); err != nil {
			return fmt.Errorf("getting genesis: %w", err)
		}

	case "balances":
		ledger, err := openLedger(dataDir)
		if err != nil {
			return fmt.Errorf("opening ledger: %w", err)
		}

		if err := commands.Balances(args, ledger); err != nil {
			return fmt.Errorf("getting balances: %w", err)
		}

	case "transactions":
		ledger, err := openLedger(dataDir)
		if err != nil {
			return fmt.Errorf("opening ledger: %w", err)
		}

		if err := commands.Transactions(args, ledger); err != nil {
			return fmt.Errorf("getting transactions: %w", err)
		}

	case "consensus":
		if err := commands.Consensus(args, nodeURL); err != nil {
			return fmt.Errorf("getting consensus status: %w", err)
		}

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	return nil
}

// openLedger restores the ledger from its persisted snapshot in dataDir
// without starting consensus or any other live subsystem.
func openLedger(dataDir string) (*database.Ledger, error) {
	gen, err := loadGenesis(dataDir)
	if err != nil {
		return nil, err
	}

	store, err := database.NewJSONStore(dataDir + "/ledger.json")
	if err != nil {
		return nil, err
	}

	return database.New(gen, store, nil)
}

// loadGenesis reads the data directory's genesis file, falling back to
// the default configuration if one was never written.
func loadGenesis(dataDir string) (genesis.Genesis, error) {
	gen, err := genesis.Load(dataDir + "/" + genesis.DefaultPath)
	if err != nil {
		if os.IsNotExist(err) {
			return genesis.Default(), nil
		}
		return genesis.Genesis{}, err
	}

	return gen, nil
}
