package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"otcnet/config"
	"otcnet/core"
	"otcnet/crypto"
	"otcnet/native/hub"
	"otcnet/native/trade"
	"otcnet/observability/logging"
	"otcnet/rpc"
	"otcnet/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup(logging.Options{
		Service:     "otcnetd",
		Environment: cfg.LogEnvironment,
		FilePath:    cfg.LogFile,
		MaxSizeMB:   cfg.LogMaxSizeMB,
		MaxBackups:  cfg.LogMaxBackups,
		MaxAgeDays:  cfg.LogMaxAgeDays,
	})

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	node := core.NewNode(db, logger)

	if err := applyGenesis(node, cfg, logger); err != nil {
		logger.Error("Failed to apply genesis configuration", slog.Any("error", err))
		os.Exit(1)
	}
	node.SetPausedModules(cfg.PausedModules)
	if len(cfg.PausedModules) > 0 {
		logger.Warn("Modules paused by configuration", slog.Any("modules", cfg.PausedModules))
	}

	server := rpc.NewServer(node)
	logger.Info("RPC server listening",
		slog.String("address", cfg.RPCAddress),
		slog.String("network", cfg.NetworkName))
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// applyGenesis seeds params, balances, arbitrators and swap rates from the
// config. Balance and arbitrator sections run only against a fresh database,
// detected by the hub admin still being unset; swap rates are in-memory and
// reapply every boot.
func applyGenesis(node *core.Node, cfg *config.Config, logger *slog.Logger) error {
	current, err := node.Params()
	if err != nil {
		return err
	}
	firstBoot := current.AdminAddress == ([20]byte{})

	params, admin, err := hubParams(cfg.Hub, current)
	if err != nil {
		return err
	}

	if firstBoot {
		if err := node.SetParams(admin, params); err != nil {
			return fmt.Errorf("set genesis params: %w", err)
		}
		for _, account := range cfg.Genesis {
			addr, err := parseAddress(account.Address)
			if err != nil {
				return fmt.Errorf("genesis account %s: %w", account.Address, err)
			}
			amount, err := account.ParseAmount()
			if err != nil {
				return err
			}
			if err := node.CreditGenesis(addr, account.Denom, amount); err != nil {
				return fmt.Errorf("credit %s: %w", account.Address, err)
			}
		}
		for _, arb := range cfg.Arbitrators {
			addr, err := parseAddress(arb.Address)
			if err != nil {
				return fmt.Errorf("arbitrator %s: %w", arb.Address, err)
			}
			if err := node.RegisterArbitrator(admin, trade.Arbitrator{
				Address:      addr,
				FiatCurrency: arb.FiatCurrency,
			}); err != nil {
				return fmt.Errorf("register arbitrator %s: %w", arb.Address, err)
			}
		}
		logger.Info("Genesis state applied",
			slog.Int("accounts", len(cfg.Genesis)),
			slog.Int("arbitrators", len(cfg.Arbitrators)))
	}

	for _, rate := range cfg.SwapRates {
		if err := node.SetSwapRate(admin, rate.Denom, rate.Num, rate.Den); err != nil {
			return fmt.Errorf("swap rate %s: %w", rate.Denom, err)
		}
	}
	return nil
}

// hubParams merges the config's hub section over the current parameter set.
// Zero-valued fields keep whatever is already stored.
func hubParams(section config.HubConfig, current hub.Params) (hub.Params, [20]byte, error) {
	params := current
	var admin [20]byte

	if strings.TrimSpace(section.AdminAddress) != "" {
		addr, err := parseAddress(section.AdminAddress)
		if err != nil {
			return hub.Params{}, admin, fmt.Errorf("hub admin: %w", err)
		}
		params.AdminAddress = addr
	}
	if strings.TrimSpace(section.TreasuryAddress) != "" {
		addr, err := parseAddress(section.TreasuryAddress)
		if err != nil {
			return hub.Params{}, admin, fmt.Errorf("hub treasury: %w", err)
		}
		params.TreasuryAddress = addr
	}
	if strings.TrimSpace(section.ChainFeeAddress) != "" {
		addr, err := parseAddress(section.ChainFeeAddress)
		if err != nil {
			return hub.Params{}, admin, fmt.Errorf("hub chain fee: %w", err)
		}
		params.ChainFeeAddress = addr
	}
	if strings.TrimSpace(section.NativeDenom) != "" {
		params.NativeDenom = section.NativeDenom
	}
	if section.FeeDenominator != 0 {
		params.FeeDenominator = section.FeeDenominator
	}
	if section.BurnPct+section.ChainPct+section.WarchestPct != 0 {
		params.BurnPct = section.BurnPct
		params.ChainPct = section.ChainPct
		params.WarchestPct = section.WarchestPct
	}
	if section.ArbitrationFeeDivisor != 0 {
		params.ArbitrationFeeDivisor = section.ArbitrationFeeDivisor
	}
	if section.TradeExpirationSecs != 0 {
		params.TradeExpirationSecs = section.TradeExpirationSecs
	}

	admin = params.AdminAddress
	return params, admin, nil
}

func parseAddress(value string) ([20]byte, error) {
	var out [20]byte
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, err
	}
	if decoded.Prefix() != crypto.OTCPrefix {
		return out, fmt.Errorf("address must use the %q prefix", crypto.OTCPrefix)
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}
