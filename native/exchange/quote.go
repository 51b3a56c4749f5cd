package exchange

import (
	"fmt"
	"math/big"
)

// quote carries the resolved pricing for a classified swap request.
type quote struct {
	collateral string
	mint       bool
	amountIn   *big.Int
	amountOut  *big.Int
	fee        int64
}

// QuoteIn prices an exact-input swap: the output paid for amountIn. Pure:
// reads a fresh snapshot, mutates nothing, and deliberately skips the
// reserve-sufficiency check so previews never fail on a condition execution
// alone must enforce.
func (e *Engine) QuoteIn(amountIn *big.Int, tokenIn, tokenOut string) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	q, err := e.quoteLocked(amountIn, tokenIn, tokenOut, true)
	if err != nil {
		return nil, err
	}
	return q.amountOut, nil
}

// QuoteOut prices an exact-output swap: the input required for amountOut.
func (e *Engine) QuoteOut(amountOut *big.Int, tokenIn, tokenOut string) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	q, err := e.quoteLocked(amountOut, tokenIn, tokenOut, false)
	if err != nil {
		return nil, err
	}
	return q.amountIn, nil
}

// CheckAmounts verifies the payout can be fulfilled from direct or managed
// reserves. Execution applies it unconditionally before settling a burn;
// quote calls leave it to the caller as an advisory preview.
func (e *Engine) CheckAmounts(collateral string, amountOut *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	col, err := e.registry.Collateral(collateral)
	if err != nil {
		return err
	}
	return e.checkAmountsLocked(col, amountOut)
}

func (e *Engine) checkAmountsLocked(col *Collateral, amountOut *big.Int) error {
	if amountOut == nil || amountOut.Sign() < 0 {
		return ErrInvalidAmount
	}
	available, err := e.availableReservesLocked(col)
	if err != nil {
		return err
	}
	if available.Cmp(amountOut) < 0 {
		return ErrInsufficientReserves
	}
	return nil
}

// quoteLocked classifies the pair, gates on the pause flag, reads a fresh
// oracle snapshot, evaluates the fee curve at the current exposure, and
// computes both legs with protocol-favoring rounding: outputs round down,
// inputs round up.
func (e *Engine) quoteLocked(amount *big.Int, tokenIn, tokenOut string, exactIn bool) (quote, error) {
	if amount == nil || amount.Sign() <= 0 {
		return quote{}, ErrInvalidAmount
	}
	symbol, mint, err := e.registry.Classify(tokenIn, tokenOut)
	if err != nil {
		return quote{}, err
	}
	col, err := e.registry.Collateral(symbol)
	if err != nil {
		return quote{}, err
	}
	action := ActionBurn
	if mint {
		action = ActionMint
	}
	if col.Paused(action) {
		return quote{}, ErrPaused
	}
	snapshot, err := col.oracle.Read(symbol)
	if err != nil {
		return quote{}, err
	}
	if !snapshot.valid() {
		return quote{}, fmt.Errorf("exchange: oracle snapshot for %s invalid", symbol)
	}
	exposure, err := e.exposureLocked(symbol)
	if err != nil {
		return quote{}, err
	}
	var fee int64
	if mint {
		fee = col.MintCurve.Evaluate(exposure)
	} else {
		fee = col.BurnCurve.Evaluate(exposure)
	}
	if fee >= BaseFee {
		// A 100%+ fee leaves the action unusable at this exposure.
		return quote{}, ErrPaused
	}
	q := quote{collateral: symbol, mint: mint, fee: fee}
	if mint {
		q.amountIn, q.amountOut, err = mintAmounts(amount, exactIn, col.Decimals, snapshot.Mint, fee)
	} else {
		q.amountIn, q.amountOut, err = burnAmounts(amount, exactIn, col.Decimals, snapshot.Burn, fee)
	}
	if err != nil {
		return quote{}, err
	}
	return q, nil
}

// mintAmounts resolves both legs of a mint:
//
//	amountOut = amountIn * mintPrice * (1 - fee)   rounded down
//	amountIn  = exact algebraic inverse            rounded up
//
// amountIn is in collateral base units, amountOut in stablecoin wei.
func mintAmounts(amount *big.Int, exactIn bool, decimals uint8, mintPrice *big.Int, fee int64) (*big.Int, *big.Int, error) {
	scale := pow10(StableDecimals - decimals)
	numerator := new(big.Int).Mul(scale, mintPrice)
	numerator.Mul(numerator, feeMultiplier(fee))
	denominator := new(big.Int).Mul(basePrice, baseFeeBig)
	if numerator.Sign() <= 0 {
		return nil, nil, ErrPaused
	}
	if exactIn {
		out := mulDivFloor(amount, numerator, denominator)
		return new(big.Int).Set(amount), out, nil
	}
	in := mulDivCeil(amount, denominator, numerator)
	return in, new(big.Int).Set(amount), nil
}

// burnAmounts resolves both legs of a burn:
//
//	amountOut = amountIn / burnPrice * (1 - fee)   rounded down
//	amountIn  = exact algebraic inverse            rounded up
//
// amountIn is in stablecoin wei, amountOut in collateral base units.
func burnAmounts(amount *big.Int, exactIn bool, decimals uint8, burnPrice *big.Int, fee int64) (*big.Int, *big.Int, error) {
	numerator := new(big.Int).Mul(pow10(decimals), feeMultiplier(fee))
	denominator := new(big.Int).Mul(burnPrice, baseFeeBig)
	if numerator.Sign() <= 0 {
		return nil, nil, ErrPaused
	}
	if exactIn {
		out := mulDivFloor(amount, numerator, denominator)
		return new(big.Int).Set(amount), out, nil
	}
	in := mulDivCeil(amount, denominator, numerator)
	return in, new(big.Int).Set(amount), nil
}
