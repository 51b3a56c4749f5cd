package exchange

import "math/big"

// CollateralRatio recomputes the global collateral ratio from current reserves
// and a fresh price snapshot per collateral: (sum of reserve value at the
// redemption price) / stablecoins issued, in the 1e18 scale. Nothing is cached
// because oracle prices can change between calls. When no stablecoins are
// issued the sentinel MaxRatio is returned instead of a division fault.
func (e *Engine) CollateralRatio() (*big.Int, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collateralRatioLocked()
}

func (e *Engine) collateralRatioLocked() (*big.Int, *big.Int, error) {
	total, err := e.ledger.TotalIssued()
	if err != nil {
		return nil, nil, err
	}
	if total.Sign() == 0 {
		return new(big.Int).Set(MaxRatio), big.NewInt(0), nil
	}
	value := big.NewInt(0)
	for _, symbol := range e.registry.List() {
		col, err := e.registry.Collateral(symbol)
		if err != nil {
			return nil, nil, err
		}
		reserves, err := e.availableReservesLocked(col)
		if err != nil {
			return nil, nil, err
		}
		if reserves.Sign() == 0 {
			continue
		}
		snapshot, err := col.oracle.Read(symbol)
		if err != nil {
			return nil, nil, err
		}
		if snapshot.Redemption == nil || snapshot.Redemption.Sign() <= 0 {
			continue
		}
		// reserves are in collateral base units; normalise to 1e18 then price.
		scaled := new(big.Int).Mul(reserves, pow10(StableDecimals-col.Decimals))
		value.Add(value, mulDivFloor(scaled, snapshot.Redemption, basePrice))
	}
	ratio := mulDivFloor(value, basePrice, total)
	if ratio.Cmp(MaxRatio) > 0 {
		ratio = new(big.Int).Set(MaxRatio)
	}
	return ratio, total, nil
}

// availableReservesLocked reports the payout capacity for a collateral: the
// directly held balance plus whatever a managed strategy can release.
func (e *Engine) availableReservesLocked(col *Collateral) (*big.Int, error) {
	balance, err := e.ledger.Balance(col.Symbol)
	if err != nil {
		return nil, err
	}
	if !col.Managed || col.manager == nil {
		return balance, nil
	}
	managed, err := col.manager.Available(col.Symbol)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Add(balance, managed), nil
}

// exposureLocked computes the exposure metric a per-collateral fee curve is
// evaluated against: the collateral's share of total issuance in the 1e9
// scale. Zero issuance reads as zero exposure.
func (e *Engine) exposureLocked(collateral string) (uint64, error) {
	total, err := e.ledger.TotalIssued()
	if err != nil {
		return 0, err
	}
	if total.Sign() == 0 {
		return 0, nil
	}
	issued, err := e.ledger.Issued(collateral)
	if err != nil {
		return 0, err
	}
	share := mulDivFloor(issued, baseFeeBig, total)
	if !share.IsUint64() {
		return uint64(BaseFee), nil
	}
	if share.Uint64() > uint64(BaseFee) {
		return uint64(BaseFee), nil
	}
	return share.Uint64(), nil
}
