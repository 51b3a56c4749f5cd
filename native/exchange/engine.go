package exchange

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Engine is the stablecoin exchange core: it classifies swap requests,
// evaluates the fee curves, and settles mints, burns, and redemptions
// atomically against the issuance ledger. Requests are serialized behind a
// single mutex so no request ever observes another's partial effects.
type Engine struct {
	mu        sync.Mutex
	registry  *CollateralRegistry
	ledger    Ledger
	bank      TokenBank
	whitelist WhitelistSource
	clock     func() time.Time
	newID     func() string
}

// NewEngine constructs an engine over the supplied registry, ledger, and
// token bank.
func NewEngine(registry *CollateralRegistry, ledger Ledger, bank TokenBank) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("exchange: registry required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("exchange: ledger required")
	}
	if bank == nil {
		return nil, fmt.Errorf("exchange: token bank required")
	}
	return &Engine{
		registry: registry,
		ledger:   ledger,
		bank:     bank,
		clock:    time.Now,
		newID:    uuid.NewString,
	}, nil
}

// SetWhitelist wires the collaborator consulted for gated burn and redemption
// payouts. Without one, every gated payout is rejected.
func (e *Engine) SetWhitelist(source WhitelistSource) {
	if e == nil {
		return
	}
	e.mu.Lock()
	e.whitelist = source
	e.mu.Unlock()
}

// SetClock overrides the time source, primarily for deterministic testing.
func (e *Engine) SetClock(clock func() time.Time) {
	if e == nil || clock == nil {
		return
	}
	e.mu.Lock()
	e.clock = clock
	e.mu.Unlock()
}

func (e *Engine) nextReceiptID() string { return e.newID() }

// checkDeadlineLocked rejects requests evaluated past their expiry. A zero
// deadline means the caller opted out of expiry.
func (e *Engine) checkDeadlineLocked(deadline int64) error {
	if deadline == 0 {
		return nil
	}
	if e.clock().UTC().Unix() > deadline {
		return ErrDeadlineExceeded
	}
	return nil
}

func (e *Engine) checkWhitelistLocked(col *Collateral, to ethcommon.Address) error {
	if !col.OnlyWhitelisted {
		return nil
	}
	if e.whitelist == nil {
		return ErrNotWhitelisted
	}
	ok, err := e.whitelist.Check(to, col.WhitelistData)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotWhitelisted
	}
	return nil
}

// SwapExactInput swaps amountIn of tokenIn for at least amountOutMin of
// tokenOut, paying tokenOut to the recipient. Quotes obtained earlier are
// advisory only: correctness depends solely on the bounds supplied here.
func (e *Engine) SwapExactInput(caller ethcommon.Address, amountIn, amountOutMin *big.Int, tokenIn, tokenOut string, to ethcommon.Address, deadline int64) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkDeadlineLocked(deadline); err != nil {
		return nil, err
	}
	q, err := e.quoteLocked(amountIn, tokenIn, tokenOut, true)
	if err != nil {
		return nil, err
	}
	if amountOutMin != nil && q.amountOut.Cmp(amountOutMin) < 0 {
		return nil, ErrTooSmallAmountOut
	}
	if err := e.settleLocked(caller, to, q); err != nil {
		return nil, err
	}
	return q.amountOut, nil
}

// SwapExactOutput swaps at most amountInMax of tokenIn for exactly amountOut
// of tokenOut.
func (e *Engine) SwapExactOutput(caller ethcommon.Address, amountOut, amountInMax *big.Int, tokenIn, tokenOut string, to ethcommon.Address, deadline int64) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkDeadlineLocked(deadline); err != nil {
		return nil, err
	}
	q, err := e.quoteLocked(amountOut, tokenIn, tokenOut, false)
	if err != nil {
		return nil, err
	}
	if amountInMax != nil && q.amountIn.Cmp(amountInMax) > 0 {
		return nil, ErrTooBigAmountIn
	}
	if err := e.settleLocked(caller, to, q); err != nil {
		return nil, err
	}
	return q.amountIn, nil
}

// settleLocked applies a quote atomically: validate whitelist and reserves,
// pull the input leg, commit the issuance bookkeeping, then release the
// output leg. Checks and ledger effects precede the outbound transfer so a
// reentrant call during token movement cannot observe stale state.
func (e *Engine) settleLocked(caller, to ethcommon.Address, q quote) error {
	col, err := e.registry.Collateral(q.collateral)
	if err != nil {
		return err
	}
	if q.mint {
		return e.settleMintLocked(caller, to, col, q)
	}
	return e.settleBurnLocked(caller, to, col, q)
}

func (e *Engine) settleMintLocked(caller, to ethcommon.Address, col *Collateral, q quote) error {
	if err := e.bank.Pull(col.Symbol, caller, q.amountIn); err != nil {
		return err
	}
	// A ledger or receipt failure after the pull returns the collateral so a
	// storage fault cannot strand the caller's funds.
	if err := e.ledger.ApplyMint(col.Symbol, q.amountIn, q.amountOut); err != nil {
		return compensate(err, e.bank.Release(col.Symbol, caller, q.amountIn))
	}
	if err := e.putSwapReceiptLocked(caller, to, col.Symbol, e.registry.Stablecoin(), ActionMint, q); err != nil {
		if unwind := e.ledger.ApplyBurn(col.Symbol, q.amountOut, q.amountIn); unwind != nil {
			return compensate(err, unwind)
		}
		return compensate(err, e.bank.Release(col.Symbol, caller, q.amountIn))
	}
	return e.bank.MintStable(to, q.amountOut)
}

// compensate pairs a settlement failure with its unwind attempt. A failed
// unwind is surfaced alongside the original error so operators can see the
// resulting inconsistency.
func compensate(err, unwindErr error) error {
	if unwindErr != nil {
		return fmt.Errorf("%w (unwind failed: %v)", err, unwindErr)
	}
	return err
}

func (e *Engine) settleBurnLocked(caller, to ethcommon.Address, col *Collateral, q quote) error {
	if err := e.checkWhitelistLocked(col, to); err != nil {
		return err
	}
	if err := e.checkAmountsLocked(col, q.amountOut); err != nil {
		return err
	}
	balance, err := e.ledger.Balance(col.Symbol)
	if err != nil {
		return err
	}
	direct := new(big.Int).Set(q.amountOut)
	managed := big.NewInt(0)
	if balance.Cmp(q.amountOut) < 0 {
		direct = balance
		managed = new(big.Int).Sub(q.amountOut, balance)
	}
	if err := e.bank.BurnStable(caller, q.amountIn); err != nil {
		return err
	}
	// A ledger or receipt failure after the burn re-mints the caller's stable.
	if err := e.ledger.ApplyBurn(col.Symbol, q.amountIn, direct); err != nil {
		return compensate(err, e.bank.MintStable(caller, q.amountIn))
	}
	if err := e.putSwapReceiptLocked(caller, to, e.registry.Stablecoin(), col.Symbol, ActionBurn, q); err != nil {
		if unwind := e.ledger.ApplyMint(col.Symbol, direct, q.amountIn); unwind != nil {
			return compensate(err, unwind)
		}
		return compensate(err, e.bank.MintStable(caller, q.amountIn))
	}
	if direct.Sign() > 0 {
		if err := e.bank.Release(col.Symbol, to, direct); err != nil {
			return err
		}
	}
	if managed.Sign() > 0 {
		if col.manager == nil {
			return ErrInsufficientReserves
		}
		if err := col.manager.Release(col.Symbol, managed, to); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) putSwapReceiptLocked(caller, to ethcommon.Address, tokenIn, tokenOut string, action Action, q quote) error {
	receipt := &SwapReceipt{
		ID:        e.nextReceiptID(),
		Kind:      action.String(),
		TokenIn:   tokenIn,
		AmountIn:  new(big.Int).Set(q.amountIn),
		Outputs:   []ReceiptLeg{{Token: tokenOut, Amount: new(big.Int).Set(q.amountOut)}},
		From:      caller,
		To:        to,
		CreatedAt: e.clock().UTC().Unix(),
	}
	return e.ledger.PutReceipt(receipt)
}

// Receipt fetches a settlement receipt by identifier.
func (e *Engine) Receipt(id string) (*SwapReceipt, bool, error) {
	return e.ledger.Receipt(id)
}

// --- Introspection -------------------------------------------------------

// GetCollateralMintFees returns the mint fee curve breakpoints.
func (e *Engine) GetCollateralMintFees(collateral string) ([]uint64, []int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	col, err := e.registry.Collateral(collateral)
	if err != nil {
		return nil, nil, err
	}
	xs, ys := col.MintCurve.Breakpoints()
	return xs, ys, nil
}

// GetCollateralBurnFees returns the burn fee curve breakpoints.
func (e *Engine) GetCollateralBurnFees(collateral string) ([]uint64, []int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	col, err := e.registry.Collateral(collateral)
	if err != nil {
		return nil, nil, err
	}
	xs, ys := col.BurnCurve.Breakpoints()
	return xs, ys, nil
}

// GetRedemptionFees returns the global redemption curve breakpoints.
func (e *Engine) GetRedemptionFees() ([]uint64, []int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.RedemptionCurve().Breakpoints()
}

// IsPaused reports the pause flag for the collateral action.
func (e *Engine) IsPaused(collateral string, action Action) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.IsPaused(collateral, action)
}

// GetOracleValues reads a fresh snapshot for operational tooling.
func (e *Engine) GetOracleValues(collateral string) (OracleSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	col, err := e.registry.Collateral(collateral)
	if err != nil {
		return OracleSnapshot{}, err
	}
	return col.oracle.Read(col.Symbol)
}

// GetCollateralList returns the registered collateral symbols.
func (e *Engine) GetCollateralList() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.List()
}

// GetCollateralDecimals returns the precision of a registered collateral.
func (e *Engine) GetCollateralDecimals(collateral string) (uint8, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	col, err := e.registry.Collateral(collateral)
	if err != nil {
		return 0, err
	}
	return col.Decimals, nil
}

// Stablecoin returns the stablecoin symbol the engine classifies against.
func (e *Engine) Stablecoin() string { return e.registry.Stablecoin() }

// --- Governance capability -----------------------------------------------
//
// Access control for these lives outside the engine; the methods only enforce
// structural invariants when invoked.

// AddCollateral registers a collateral, fully paused, with empty curves.
func (e *Engine) AddCollateral(symbol string, decimals uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.AddCollateral(symbol, decimals)
}

// RevokeCollateral removes a collateral once its ledger entries are flat.
func (e *Engine) RevokeCollateral(symbol string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	issued, err := e.ledger.Issued(symbol)
	if err != nil {
		return err
	}
	balance, err := e.ledger.Balance(symbol)
	if err != nil {
		return err
	}
	if issued.Sign() != 0 || balance.Sign() != 0 {
		return fmt.Errorf("exchange: collateral %s still carries issuance or reserves", normaliseSymbol(symbol))
	}
	return e.registry.RevokeCollateral(symbol)
}

// SetFees installs a validated fee curve for the mint or burn path.
func (e *Engine) SetFees(collateral string, xs []uint64, ys []int64, mint bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.SetFees(collateral, xs, ys, mint)
}

// SetRedemptionCurveParams installs the global redemption curve.
func (e *Engine) SetRedemptionCurveParams(xs []uint64, ys []int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.SetRedemptionCurveParams(xs, ys)
}

// TogglePause flips the pause flag for the collateral action.
func (e *Engine) TogglePause(collateral string, action Action) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.TogglePause(collateral, action)
}

// SetOracle wires the price source for a collateral.
func (e *Engine) SetOracle(collateral string, source PriceSource) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.SetOracle(collateral, source)
}

// SetWhitelistStatus configures whitelist gating for a collateral.
func (e *Engine) SetWhitelistStatus(collateral string, required bool, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.SetWhitelistStatus(collateral, required, data)
}

// SetCollateralManager wires a managed-collateral strategy.
func (e *Engine) SetCollateralManager(collateral string, manager ReserveSource) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.SetCollateralManager(collateral, manager)
}

// AdjustStablecoins shifts issuance bookkeeping without token movement.
func (e *Engine) AdjustStablecoins(collateral string, delta *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.registry.Collateral(collateral); err != nil {
		return err
	}
	return e.ledger.AdjustStablecoins(collateral, delta)
}
