package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config carries the daemon's startup settings. Genesis sections are applied
// once against an empty database; on a populated data directory the stored
// state wins.
type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	NetworkName string `toml:"NetworkName"`

	LogEnvironment string `toml:"LogEnvironment"`
	LogFile        string `toml:"LogFile"`
	LogMaxSizeMB   int    `toml:"LogMaxSizeMB"`
	LogMaxBackups  int    `toml:"LogMaxBackups"`
	LogMaxAgeDays  int    `toml:"LogMaxAgeDays"`

	// PausedModules rejects every mutating operation of the named modules
	// (e.g. "trade") until the daemon restarts without the entry.
	PausedModules []string `toml:"PausedModules"`

	Hub         HubConfig        `toml:"Hub"`
	Genesis     []GenesisAccount `toml:"GenesisAccount"`
	SwapRates   []SwapRate       `toml:"SwapRate"`
	Arbitrators []Arbitrator     `toml:"Arbitrator"`
}

// HubConfig mirrors the hub parameter set with bech32 addresses so operators
// can edit it by hand. Zero values fall back to the stored or default params.
type HubConfig struct {
	AdminAddress          string `toml:"AdminAddress"`
	TreasuryAddress       string `toml:"TreasuryAddress"`
	ChainFeeAddress       string `toml:"ChainFeeAddress"`
	NativeDenom           string `toml:"NativeDenom"`
	FeeDenominator        uint64 `toml:"FeeDenominator"`
	BurnPct               uint64 `toml:"BurnPct"`
	ChainPct              uint64 `toml:"ChainPct"`
	WarchestPct           uint64 `toml:"WarchestPct"`
	ArbitrationFeeDivisor uint64 `toml:"ArbitrationFeeDivisor"`
	TradeExpirationSecs   int64  `toml:"TradeExpirationSecs"`
}

// GenesisAccount is an initial balance credited at first boot.
type GenesisAccount struct {
	Address string `toml:"Address"`
	Denom   string `toml:"Denom"`
	Amount  string `toml:"Amount"`
}

// SwapRate configures the burn-swap pool conversion for a non-native denom.
type SwapRate struct {
	Denom string `toml:"Denom"`
	Num   int64  `toml:"Num"`
	Den   int64  `toml:"Den"`
}

// Arbitrator registers a dispute arbitrator for a fiat currency at boot.
type Arbitrator struct {
	Address      string `toml:"Address"`
	FiatCurrency string `toml:"FiatCurrency"`
}

// ParseAmount converts the account's decimal amount string.
func (g GenesisAccount) ParseAmount() (*big.Int, error) {
	trimmed := strings.TrimSpace(g.Amount)
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("config: invalid genesis amount %q for %s", g.Amount, g.Address)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("config: genesis amount for %s must be positive", g.Address)
	}
	return amount, nil
}

// Load loads the configuration from the given path, writing a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	applyFallbacks(cfg)
	return cfg, nil
}

func applyFallbacks(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./otc-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "otc-local"
	}
	if strings.TrimSpace(cfg.LogEnvironment) == "" {
		cfg.LogEnvironment = "development"
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
	if cfg.Genesis == nil {
		cfg.Genesis = []GenesisAccount{}
	}
	if cfg.SwapRates == nil {
		cfg.SwapRates = []SwapRate{}
	}
	if cfg.Arbitrators == nil {
		cfg.Arbitrators = []Arbitrator{}
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:     ":8080",
		DataDir:        "./otc-data",
		NetworkName:    "otc-local",
		LogEnvironment: "development",
		Hub: HubConfig{
			NativeDenom:           "uotc",
			FeeDenominator:        100,
			BurnPct:               40,
			ChainPct:              30,
			WarchestPct:           30,
			ArbitrationFeeDivisor: 100,
			TradeExpirationSecs:   1200,
		},
		PausedModules: []string{},
		Genesis:       []GenesisAccount{},
		SwapRates:     []SwapRate{},
		Arbitrators:   []Arbitrator{},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
