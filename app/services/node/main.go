package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/clawrrency/clawrrency/app/services/node/handlers"
	"github.com/clawrrency/clawrrency/foundation/blockchain/consensus"
	"github.com/clawrrency/clawrrency/foundation/blockchain/database"
	"github.com/clawrrency/clawrrency/foundation/blockchain/genesis"
	"github.com/clawrrency/clawrrency/foundation/blockchain/signature"
	"github.com/clawrrency/clawrrency/foundation/events"
	"github.com/clawrrency/clawrrency/foundation/logger"
	"github.com/clawrrency/clawrrency/sdk"
	"github.com/ardanlabs/conf/v3"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
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

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:0.0.0.0:9080"`
		}
		Node struct {
			DataDir      string   `conf:"default:$HOME/.clawrrency"`
			GenesisPath  string   `conf:"default:genesis.json"`
			ValidatorKey string   `conf:"mask"`
			Peers        []string `conf:"default:"`
		}
		NameService struct {
			Path string `conf:"default:names.json"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	fmt.Println(`     _    ____  ____    _    _   _    ____  _     ___   ____ _  ______ _   _    _    ___ _   _  `)
	fmt.Println(`    / \  |  _ \|  _ \  / \  | \ | |  | __ )| |   / _ \ / ___| |/ / ___| | | |  / \  |_ _| \ | | `)
	fmt.Println(`   / _ \ | |_) | | | |/ _ \ |  \| |  |  _ \| |  | | | | |   | ' / |   | |_| | / _ \  | ||  \| | `)
	fmt.Println(`  / ___ \|  _ <| |_| / ___ \| |\  |  | |_) | |__| |_| | |___| . \ |___|  _  |/ ___ \ | || |\  | `)
	fmt.Println(` /_/   \_\_| \_\____/_/   \_\_| \_|  |____/|_____\___/ \____|_|\_\____|_| |_/_/   \_\___|_| \_| `)
	fmt.Print("\n")

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Genesis

	gen, err := genesis.Load(cfg.Node.GenesisPath)
	if err != nil {
		return fmt.Errorf("unable to load genesis: %w", err)
	}

	// =========================================================================
	// Events and Logging

	// The foundation packages accept a function of this signature to allow
	// the application to log. These raw messages are also sent to any
	// websocket client connected through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// =========================================================================
	// SDK: identity, ledger, name service, marketplace, and optionally
	// consensus, all sharing this node's data directory.

	var consensusCfg *sdk.ConsensusConfig
	var broadcaster *httpBroadcaster
	var self consensus.Member

	if cfg.Node.ValidatorKey != "" {
		privateKey, err := signature.DecodePrivateKey(cfg.Node.ValidatorKey)
		if err != nil {
			return fmt.Errorf("unable to decode validator private key: %w", err)
		}

		members, selfIndex, err := buildMemberSet(privateKey, cfg.Web.PrivateHost, cfg.Node.Peers)
		if err != nil {
			return fmt.Errorf("unable to build validator set: %w", err)
		}
		self = members[selfIndex]

		broadcaster = newHTTPBroadcaster(members, selfIndex, log)

		consensusCfg = &sdk.ConsensusConfig{
			Members:     members,
			SelfIndex:   selfIndex,
			PrivateKey:  privateKey,
			Broadcaster: broadcaster,
			ViewTimeout: time.Duration(gen.ViewTimeoutMS) * time.Millisecond,
		}
	}

	system, err := sdk.New(sdk.Config{
		DataDir:      cfg.Node.DataDir,
		Genesis:      gen,
		EventHandler: ev,
		Consensus:    consensusCfg,
		Governance:   true,
	})
	if err != nil {
		return fmt.Errorf("unable to construct sdk: %w", err)
	}
	defer system.Close()

	if system.Consensus != nil {
		system.Consensus.Start()
		log.Infow("startup", "status", "consensus engine started", "self", self.ID, "leader", system.Consensus.Leader())
	}

	// Logging the known names for documentation in the logs.
	for account, name := range system.NameService.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "account", account)
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown:  shutdown,
		Log:       log,
		Gen:       gen,
		Ledger:    system.Ledger,
		Identity:  system.Identity,
		Market:    system.Marketplace,
		Consensus: system.Consensus,
		NS:        system.NameService,
		Evts:      evts,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start Private Service

	log.Infow("startup", "status", "initializing V1 private API support")

	// Construct the mux for the private API calls.
	privateMux := handlers.PrivateMux(handlers.MuxConfig{
		Shutdown:  shutdown,
		Log:       log,
		Consensus: system.Consensus,
	})

	// Construct a server to service the requests against the mux.
	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      privateMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	if broadcaster != nil {
		broadcaster.started()
	}

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown private API started")
		if err := private.Shutdown(ctx); err != nil {
			private.Close()
			return fmt.Errorf("could not stop private service gracefully: %w", err)
		}

		// Give outstanding requests a deadline for completion.
		ctx, cancelPri := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPri()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// buildMemberSet parses the configured peer list ("accountID@host" pairs)
// into the consensus validator set, with self first and peers following
// in the order supplied, matching the convention the consensus package's
// leader rotation relies on.
func buildMemberSet(privateKey ed25519.PrivateKey, selfHost string, peers []string) ([]consensus.Member, int, error) {
	selfID := database.PublicKeyToAccountID(privateKey.Public().(ed25519.PublicKey))

	members := []consensus.Member{{ID: selfID, Host: selfHost}}
	for _, p := range peers {
		parts := strings.SplitN(p, "@", 2)
		if len(parts) != 2 {
			return nil, 0, fmt.Errorf("invalid peer %q, expected accountID@host", p)
		}
		members = append(members, consensus.Member{ID: database.AccountID(parts[0]), Host: parts[1]})
	}

	return members, 0, nil
}
