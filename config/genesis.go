package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"gopkg.in/yaml.v3"

	"crucible/native/exchange"
)

// Genesis is the YAML manifest the daemon bootstraps the exchange from: the
// stablecoin identity plus every collateral's curves, prices, pause state, and
// whitelist configuration.
type Genesis struct {
	Stablecoin      string          `yaml:"stablecoin"`
	Attester        string          `yaml:"attester"`
	RedemptionCurve CurveParams     `yaml:"redemption_curve"`
	Collaterals     []GenesisTokens `yaml:"collaterals"`
}

// CurveParams is a fee curve as breakpoint columns.
type CurveParams struct {
	Xs []uint64 `yaml:"xs"`
	Ys []int64  `yaml:"ys"`
}

// GenesisTokens is one collateral entry in the manifest.
type GenesisTokens struct {
	Symbol    string           `yaml:"symbol"`
	Decimals  uint8            `yaml:"decimals"`
	MintFees  CurveParams      `yaml:"mint_fees"`
	BurnFees  CurveParams      `yaml:"burn_fees"`
	Unpause   []string         `yaml:"unpause"`
	Whitelist GenesisWhitelist `yaml:"whitelist"`
	Prices    GenesisPrices    `yaml:"prices"`
}

// GenesisWhitelist configures payout gating for a collateral.
type GenesisWhitelist struct {
	Required    bool   `yaml:"required"`
	Attestation string `yaml:"attestation"`
}

// GenesisPrices seeds the manual price source, decimal strings in the 1e18
// scale. Empty entries leave the identity price in place.
type GenesisPrices struct {
	Mint       string `yaml:"mint"`
	Burn       string `yaml:"burn"`
	Ratio      string `yaml:"ratio"`
	MinRatio   string `yaml:"min_ratio"`
	Redemption string `yaml:"redemption"`
}

// LoadGenesis reads and validates a genesis manifest.
func LoadGenesis(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read genesis %s: %w", path, err)
	}
	gen := &Genesis{}
	if err := yaml.Unmarshal(raw, gen); err != nil {
		return nil, fmt.Errorf("config: parse genesis %s: %w", path, err)
	}
	if err := gen.Validate(); err != nil {
		return nil, err
	}
	return gen, nil
}

// Validate checks the manifest before any of it is applied.
func (g *Genesis) Validate() error {
	if strings.TrimSpace(g.Stablecoin) == "" {
		return fmt.Errorf("config: genesis stablecoin required")
	}
	if attester := strings.TrimSpace(g.Attester); attester != "" && !ethcommon.IsHexAddress(attester) {
		return fmt.Errorf("config: genesis attester must be a hex address")
	}
	seen := make(map[string]bool, len(g.Collaterals))
	for _, entry := range g.Collaterals {
		symbol := strings.ToUpper(strings.TrimSpace(entry.Symbol))
		if symbol == "" {
			return fmt.Errorf("config: genesis collateral symbol required")
		}
		if seen[symbol] {
			return fmt.Errorf("config: genesis collateral %s duplicated", symbol)
		}
		seen[symbol] = true
		for _, action := range entry.Unpause {
			if _, ok := exchange.ParseAction(action); !ok {
				return fmt.Errorf("config: genesis collateral %s: unknown action %q", symbol, action)
			}
		}
		if data := strings.TrimSpace(entry.Whitelist.Attestation); data != "" {
			if _, err := hexutil.Decode(data); err != nil {
				return fmt.Errorf("config: genesis collateral %s: attestation: %w", symbol, err)
			}
		}
	}
	return nil
}

// NewEngine builds an engine from the manifest over the given ledger and bank.
// Curve validation and pause toggling run through the engine's own governance
// methods so the manifest cannot install state governance could not.
func (g *Genesis) NewEngine(ledger exchange.Ledger, bank exchange.TokenBank) (*exchange.Engine, error) {
	registry, err := exchange.NewCollateralRegistry(g.Stablecoin)
	if err != nil {
		return nil, err
	}
	engine, err := exchange.NewEngine(registry, ledger, bank)
	if err != nil {
		return nil, err
	}
	if attester := strings.TrimSpace(g.Attester); attester != "" {
		engine.SetWhitelist(exchange.NewAttestationWhitelist(ethcommon.HexToAddress(attester)))
	}
	if len(g.RedemptionCurve.Xs) > 0 {
		if err := engine.SetRedemptionCurveParams(g.RedemptionCurve.Xs, g.RedemptionCurve.Ys); err != nil {
			return nil, err
		}
	}
	for _, entry := range g.Collaterals {
		if err := applyCollateral(engine, entry); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

func applyCollateral(engine *exchange.Engine, entry GenesisTokens) error {
	symbol := strings.ToUpper(strings.TrimSpace(entry.Symbol))
	if err := engine.AddCollateral(symbol, entry.Decimals); err != nil {
		return err
	}
	if len(entry.MintFees.Xs) > 0 {
		if err := engine.SetFees(symbol, entry.MintFees.Xs, entry.MintFees.Ys, true); err != nil {
			return fmt.Errorf("config: genesis collateral %s: mint fees: %w", symbol, err)
		}
	}
	if len(entry.BurnFees.Xs) > 0 {
		if err := engine.SetFees(symbol, entry.BurnFees.Xs, entry.BurnFees.Ys, false); err != nil {
			return fmt.Errorf("config: genesis collateral %s: burn fees: %w", symbol, err)
		}
	}
	if snapshot, ok, err := entry.Prices.snapshot(); err != nil {
		return fmt.Errorf("config: genesis collateral %s: %w", symbol, err)
	} else if ok {
		oracle := exchange.NewManualPriceSource()
		if err := oracle.Set(symbol, snapshot); err != nil {
			return fmt.Errorf("config: genesis collateral %s: %w", symbol, err)
		}
		if err := engine.SetOracle(symbol, oracle); err != nil {
			return err
		}
	}
	if entry.Whitelist.Required {
		var data []byte
		if trimmed := strings.TrimSpace(entry.Whitelist.Attestation); trimmed != "" {
			decoded, err := hexutil.Decode(trimmed)
			if err != nil {
				return fmt.Errorf("config: genesis collateral %s: attestation: %w", symbol, err)
			}
			data = decoded
		}
		if err := engine.SetWhitelistStatus(symbol, true, data); err != nil {
			return err
		}
	}
	for _, action := range entry.Unpause {
		parsed, ok := exchange.ParseAction(action)
		if !ok {
			return fmt.Errorf("config: genesis collateral %s: unknown action %q", symbol, action)
		}
		if _, err := engine.TogglePause(symbol, parsed); err != nil {
			return err
		}
	}
	return nil
}

func (p GenesisPrices) snapshot() (exchange.OracleSnapshot, bool, error) {
	type priceField struct {
		name  string
		value string
		dst   **big.Int
	}
	snapshot := exchange.IdentitySnapshot()
	fields := []priceField{
		{"mint", p.Mint, &snapshot.Mint},
		{"burn", p.Burn, &snapshot.Burn},
		{"ratio", p.Ratio, &snapshot.Ratio},
		{"min_ratio", p.MinRatio, &snapshot.MinRatio},
		{"redemption", p.Redemption, &snapshot.Redemption},
	}
	any := false
	for _, field := range fields {
		trimmed := strings.TrimSpace(field.value)
		if trimmed == "" {
			continue
		}
		parsed, ok := new(big.Int).SetString(trimmed, 10)
		if !ok || parsed.Sign() <= 0 {
			return exchange.OracleSnapshot{}, false, fmt.Errorf("price %s must be a positive integer", field.name)
		}
		*field.dst = parsed
		any = true
	}
	return snapshot, any, nil
}
