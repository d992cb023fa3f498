package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// GenesisToken declares a fungible asset registered when a fresh data
// directory is initialised.
type GenesisToken struct {
	Symbol   string `toml:"Symbol"`
	Name     string `toml:"Name"`
	Decimals uint8  `toml:"Decimals"`
}

// GenesisAllocation seeds a balance for an address at first start. Amount is
// a base-10 integer in the asset's smallest unit.
type GenesisAllocation struct {
	Address string `toml:"Address"`
	Token   string `toml:"Token"`
	Amount  string `toml:"Amount"`
}

// Genesis bundles the first-start ledger contents.
type Genesis struct {
	Tokens      []GenesisToken      `toml:"Tokens"`
	Allocations []GenesisAllocation `toml:"Allocations"`
}

type Config struct {
	RPCAddress     string  `toml:"RPCAddress"`
	MetricsEnabled bool    `toml:"MetricsEnabled"`
	DataDir        string  `toml:"DataDir"`
	NetworkName    string  `toml:"NetworkName"`
	Genesis        Genesis `toml:"Genesis"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if !meta.IsDefined("MetricsEnabled") {
		cfg.MetricsEnabled = true
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8545"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./swapvault-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "swapvault-local"
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:     ":8545",
		MetricsEnabled: true,
		DataDir:        "./swapvault-data",
		NetworkName:    "swapvault-local",
		Genesis: Genesis{
			Tokens: []GenesisToken{
				{Symbol: "USDX", Name: "Test Dollar", Decimals: 6},
				{Symbol: "WBTX", Name: "Test Bitcoin", Decimals: 8},
			},
		},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
