package exchange

import (
	"fmt"
	"strings"
)

// Collateral captures the per-asset configuration consumed by the quoting and
// settlement paths. Pause flags default to paused on first add so a freshly
// onboarded collateral stays unusable until governance unpauses each action.
type Collateral struct {
	Symbol          string
	Decimals        uint8
	MintCurve       FeeCurve
	BurnCurve       FeeCurve
	OnlyWhitelisted bool
	WhitelistData   []byte
	Managed         bool

	paused  map[Action]bool
	oracle  PriceSource
	manager ReserveSource
}

// Paused reports whether the action is disabled for this collateral.
func (c *Collateral) Paused(action Action) bool {
	if c == nil {
		return true
	}
	return c.paused[action]
}

// CollateralRegistry is the configuration store for the engine: the stablecoin
// identifier plus every registered collateral in onboarding order. Writes only
// happen through the governance capability; the hot paths read it.
type CollateralRegistry struct {
	stable      string
	order       []string
	collaterals map[string]*Collateral
	redemption  FeeCurve
}

// NewCollateralRegistry constructs an empty registry for the given stablecoin
// symbol.
func NewCollateralRegistry(stable string) (*CollateralRegistry, error) {
	symbol := normaliseSymbol(stable)
	if symbol == "" {
		return nil, fmt.Errorf("exchange: stablecoin symbol required")
	}
	return &CollateralRegistry{
		stable:      symbol,
		collaterals: make(map[string]*Collateral),
	}, nil
}

// Stablecoin returns the stablecoin symbol the registry classifies against.
func (r *CollateralRegistry) Stablecoin() string { return r.stable }

// AddCollateral registers a new collateral. Both fee curves start empty and
// every action starts paused.
func (r *CollateralRegistry) AddCollateral(symbol string, decimals uint8) error {
	name := normaliseSymbol(symbol)
	if name == "" {
		return fmt.Errorf("exchange: collateral symbol required")
	}
	if name == r.stable {
		return fmt.Errorf("exchange: collateral must differ from the stablecoin")
	}
	if decimals > StableDecimals {
		return fmt.Errorf("exchange: collateral decimals must not exceed %d", StableDecimals)
	}
	if _, exists := r.collaterals[name]; exists {
		return fmt.Errorf("exchange: collateral %s already registered", name)
	}
	r.collaterals[name] = &Collateral{
		Symbol:   name,
		Decimals: decimals,
		paused: map[Action]bool{
			ActionMint:   true,
			ActionBurn:   true,
			ActionRedeem: true,
		},
		oracle: NewManualPriceSource(),
	}
	r.order = append(r.order, name)
	return nil
}

// RevokeCollateral removes a collateral from the registry. Callers are
// responsible for checking the ledger is flat for the asset first.
func (r *CollateralRegistry) RevokeCollateral(symbol string) error {
	name := normaliseSymbol(symbol)
	if _, exists := r.collaterals[name]; !exists {
		return ErrUnknownCollateral
	}
	delete(r.collaterals, name)
	for i, entry := range r.order {
		if entry == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Collateral resolves a registered collateral by symbol.
func (r *CollateralRegistry) Collateral(symbol string) (*Collateral, error) {
	col, ok := r.collaterals[normaliseSymbol(symbol)]
	if !ok {
		return nil, ErrUnknownCollateral
	}
	return col, nil
}

// List returns the registered collateral symbols in onboarding order.
func (r *CollateralRegistry) List() []string {
	return append([]string{}, r.order...)
}

// SetFees installs a validated fee curve for the mint or burn path.
func (r *CollateralRegistry) SetFees(symbol string, xs []uint64, ys []int64, mint bool) error {
	col, err := r.Collateral(symbol)
	if err != nil {
		return err
	}
	if mint {
		curve, err := NewMintCurve(xs, ys)
		if err != nil {
			return err
		}
		col.MintCurve = curve
		return nil
	}
	curve, err := NewBurnCurve(xs, ys)
	if err != nil {
		return err
	}
	col.BurnCurve = curve
	return nil
}

// SetRedemptionCurveParams installs the global redemption fee curve. An empty
// curve disables redemption fees rather than redemption itself.
func (r *CollateralRegistry) SetRedemptionCurveParams(xs []uint64, ys []int64) error {
	curve, err := NewRedemptionCurve(xs, ys)
	if err != nil {
		return err
	}
	r.redemption = curve
	return nil
}

// RedemptionCurve returns the configured global redemption curve.
func (r *CollateralRegistry) RedemptionCurve() FeeCurve { return r.redemption }

// TogglePause flips the pause flag for the collateral action and returns the
// new state.
func (r *CollateralRegistry) TogglePause(symbol string, action Action) (bool, error) {
	col, err := r.Collateral(symbol)
	if err != nil {
		return false, err
	}
	col.paused[action] = !col.paused[action]
	return col.paused[action], nil
}

// IsPaused reports the pause flag for the collateral action. Unregistered
// collateral reports paused so callers fail safe.
func (r *CollateralRegistry) IsPaused(symbol string, action Action) bool {
	col, ok := r.collaterals[normaliseSymbol(symbol)]
	if !ok {
		return true
	}
	return col.Paused(action)
}

// SetOracle wires the price source consumed for the collateral.
func (r *CollateralRegistry) SetOracle(symbol string, source PriceSource) error {
	col, err := r.Collateral(symbol)
	if err != nil {
		return err
	}
	if source == nil {
		return fmt.Errorf("exchange: price source required")
	}
	col.oracle = source
	return nil
}

// SetWhitelistStatus configures whitelist gating for burn and redemption
// payouts of the collateral. The data payload is opaque to the engine and
// handed to the whitelist collaborator on every check.
func (r *CollateralRegistry) SetWhitelistStatus(symbol string, required bool, data []byte) error {
	col, err := r.Collateral(symbol)
	if err != nil {
		return err
	}
	col.OnlyWhitelisted = required
	col.WhitelistData = append([]byte{}, data...)
	return nil
}

// SetCollateralManager marks the collateral as managed and wires the strategy
// reserves are released through. A nil manager reverts to direct reserves.
func (r *CollateralRegistry) SetCollateralManager(symbol string, manager ReserveSource) error {
	col, err := r.Collateral(symbol)
	if err != nil {
		return err
	}
	col.manager = manager
	col.Managed = manager != nil
	return nil
}

// Classify resolves the swap direction for a token pair: exactly one side must
// be the stablecoin and the other a registered collateral.
func (r *CollateralRegistry) Classify(tokenIn, tokenOut string) (collateral string, mint bool, err error) {
	in := normaliseSymbol(tokenIn)
	out := normaliseSymbol(tokenOut)
	if in == "" || out == "" || in == out {
		return "", false, ErrInvalidTokens
	}
	switch {
	case out == r.stable:
		if _, ok := r.collaterals[in]; !ok {
			return "", false, ErrInvalidTokens
		}
		return in, true, nil
	case in == r.stable:
		if _, ok := r.collaterals[out]; !ok {
			return "", false, ErrInvalidTokens
		}
		return out, false, nil
	default:
		return "", false, ErrInvalidTokens
	}
}

func normaliseSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
