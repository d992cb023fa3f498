package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"swapvault/config"
	"swapvault/core"
	"swapvault/crypto"
	"swapvault/observability/logging"
	"swapvault/rpc"
	"swapvault/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("SWAPVAULT_ENV"))
	logger := logging.Setup("swapvaultd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	node := core.NewNode(db)
	node.SetEmitter(logging.NewEventEmitter(logger))

	if err := applyGenesis(node, cfg); err != nil {
		logger.Error("Failed to apply genesis", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.NewServer(node)
	if cfg.MetricsEnabled {
		server.EnableMetrics()
	}

	logger.Info("Starting JSON-RPC server",
		slog.String("addr", cfg.RPCAddress),
		slog.String("network", cfg.NetworkName))
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server terminated", slog.Any("error", err))
		os.Exit(1)
	}
}

// applyGenesis registers configured tokens and seeds allocations exactly once
// per data directory.
func applyGenesis(node *core.Node, cfg *config.Config) error {
	applied, err := node.GenesisApplied()
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	for _, token := range cfg.Genesis.Tokens {
		if err := node.RegisterToken(token.Symbol, token.Name, token.Decimals); err != nil {
			return fmt.Errorf("register token %s: %w", token.Symbol, err)
		}
	}
	for _, alloc := range cfg.Genesis.Allocations {
		addr, err := crypto.DecodeAddress(alloc.Address)
		if err != nil {
			return fmt.Errorf("allocation address %s: %w", alloc.Address, err)
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(alloc.Amount), 10)
		if !ok || amount.Sign() <= 0 {
			return fmt.Errorf("allocation amount %q must be a positive integer", alloc.Amount)
		}
		var raw [20]byte
		copy(raw[:], addr.Bytes())
		if err := node.Mint(raw, alloc.Token, amount); err != nil {
			return fmt.Errorf("allocate %s %s to %s: %w", alloc.Amount, alloc.Token, alloc.Address, err)
		}
	}
	return node.MarkGenesisApplied()
}
