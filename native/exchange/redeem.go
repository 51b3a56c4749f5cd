package exchange

import (
	"math"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// RedemptionQuote describes the proportional basket paid for burning
// stablecoin across all collateral.
type RedemptionQuote struct {
	Fee         int64
	Collaterals []string
	Amounts     []*big.Int
}

// QuoteRedemption prices a proportional redemption of the stablecoin amount.
// The fee comes from the redemption curve evaluated at the global collateral
// ratio and degrades to zero when the curve is empty. Each collateral pays its
// issuance share of the available reserves; an under-collateralized system
// simply pays out whatever backing exists.
func (e *Engine) QuoteRedemption(amount *big.Int) (RedemptionQuote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quoteRedemptionLocked(amount)
}

func (e *Engine) quoteRedemptionLocked(amount *big.Int) (RedemptionQuote, error) {
	if amount == nil || amount.Sign() <= 0 {
		return RedemptionQuote{}, ErrInvalidAmount
	}
	for _, symbol := range e.registry.List() {
		if e.registry.IsPaused(symbol, ActionRedeem) {
			return RedemptionQuote{}, ErrPaused
		}
	}
	ratio, total, err := e.collateralRatioLocked()
	if err != nil {
		return RedemptionQuote{}, err
	}
	if total.Cmp(amount) < 0 {
		return RedemptionQuote{}, ErrInvalidAmount
	}
	fee := e.registry.RedemptionCurve().Evaluate(ratioToCurveInput(ratio))
	result := RedemptionQuote{Fee: fee, Collaterals: e.registry.List()}
	result.Amounts = make([]*big.Int, len(result.Collaterals))
	numerator := new(big.Int).Mul(amount, feeMultiplier(fee))
	denominator := new(big.Int).Mul(total, baseFeeBig)
	for i, symbol := range result.Collaterals {
		col, err := e.registry.Collateral(symbol)
		if err != nil {
			return RedemptionQuote{}, err
		}
		reserves, err := e.availableReservesLocked(col)
		if err != nil {
			return RedemptionQuote{}, err
		}
		result.Amounts[i] = mulDivFloor(reserves, numerator, denominator)
	}
	return result, nil
}

// ratioToCurveInput rescales a 1e18 collateral ratio onto the 1e9 curve axis.
// The zero-issuance sentinel clamps to the top of the axis.
func ratioToCurveInput(ratio *big.Int) uint64 {
	scaled := mulDivFloor(ratio, baseFeeBig, basePrice)
	if !scaled.IsUint64() {
		return math.MaxUint64
	}
	return scaled.Uint64()
}

// Redeem burns the caller's stablecoin for a proportional basket of all
// collateral. minAmountOuts are positional per the registry's collateral
// order; a shorter slice leaves the remaining legs unbounded.
func (e *Engine) Redeem(caller ethcommon.Address, amount *big.Int, to ethcommon.Address, deadline int64, minAmountOuts []*big.Int) ([]*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkDeadlineLocked(deadline); err != nil {
		return nil, err
	}
	q, err := e.quoteRedemptionLocked(amount)
	if err != nil {
		return nil, err
	}
	for i, leg := range q.Amounts {
		if i < len(minAmountOuts) && minAmountOuts[i] != nil && leg.Cmp(minAmountOuts[i]) < 0 {
			return nil, ErrTooSmallAmountOut
		}
	}
	// Whitelist gating applies to every gated collateral in the basket.
	for i, symbol := range q.Collaterals {
		if q.Amounts[i].Sign() == 0 {
			continue
		}
		col, err := e.registry.Collateral(symbol)
		if err != nil {
			return nil, err
		}
		if err := e.checkWhitelistLocked(col, to); err != nil {
			return nil, err
		}
	}
	if err := e.settleRedeemLocked(caller, to, amount, q); err != nil {
		return nil, err
	}
	return q.Amounts, nil
}

func (e *Engine) settleRedeemLocked(caller, to ethcommon.Address, amount *big.Int, q RedemptionQuote) error {
	direct := make(map[string]*big.Int, len(q.Collaterals))
	managed := make(map[string]*big.Int, len(q.Collaterals))
	for i, symbol := range q.Collaterals {
		leg := q.Amounts[i]
		if leg.Sign() == 0 {
			continue
		}
		col, err := e.registry.Collateral(symbol)
		if err != nil {
			return err
		}
		balance, err := e.ledger.Balance(symbol)
		if err != nil {
			return err
		}
		if balance.Cmp(leg) >= 0 {
			direct[symbol] = leg
			continue
		}
		if !col.Managed || col.manager == nil {
			return ErrInsufficientReserves
		}
		direct[symbol] = balance
		managed[symbol] = new(big.Int).Sub(leg, balance)
	}
	if err := e.bank.BurnStable(caller, amount); err != nil {
		return err
	}
	receipt := &SwapReceipt{
		ID:        e.nextReceiptID(),
		Kind:      ActionRedeem.String(),
		TokenIn:   e.registry.Stablecoin(),
		AmountIn:  new(big.Int).Set(amount),
		From:      caller,
		To:        to,
		CreatedAt: e.clock().UTC().Unix(),
	}
	for i, symbol := range q.Collaterals {
		receipt.Outputs = append(receipt.Outputs, ReceiptLeg{Token: symbol, Amount: new(big.Int).Set(q.Amounts[i])})
	}
	// The receipt lands before the issuance commit; a storage failure in
	// either re-mints the burned stable.
	if err := e.ledger.PutReceipt(receipt); err != nil {
		return compensate(err, e.bank.MintStable(caller, amount))
	}
	if err := e.ledger.ApplyRedeem(amount, direct); err != nil {
		return compensate(err, e.bank.MintStable(caller, amount))
	}
	for symbol, leg := range direct {
		if leg.Sign() == 0 {
			continue
		}
		if err := e.bank.Release(symbol, to, leg); err != nil {
			return err
		}
	}
	for symbol, leg := range managed {
		col, err := e.registry.Collateral(symbol)
		if err != nil {
			return err
		}
		if err := col.manager.Release(symbol, leg, to); err != nil {
			return err
		}
	}
	return nil
}
