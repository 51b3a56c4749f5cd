package exchange

import "math/big"

// Fixed-point scales. Fee curves operate in the canonical 1e9 scale while
// oracle prices and stablecoin amounts use 1e18.
const (
	// BaseFee is the 1e9 fee-rate scale; a fee of BaseFee is 100%.
	BaseFee int64 = 1_000_000_000
	// MaxMintFee is the largest admissible mint fee rate. Values above BaseFee
	// act as a soft disable: no mint quote can succeed at that exposure.
	MaxMintFee int64 = 1_000_000_000_000 - 1
	// MaxBurnFee is the exclusive upper bound for burn fee rates; a burn fee
	// must leave the payout strictly positive.
	MaxBurnFee int64 = BaseFee
	// StableDecimals is the stablecoin precision.
	StableDecimals uint8 = 18
)

var (
	basePriceStr = "1000000000000000000" // 1e18
	basePrice    = mustBigInt(basePriceStr)
	baseFeeBig   = big.NewInt(BaseFee)

	// MaxRatio is the sentinel collateral ratio reported when no stablecoins
	// are issued: the maximum representable wire value, never a division fault.
	MaxRatio = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// pow10 returns 10^n.
func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// mulDivFloor computes floor(a*b/den). Protocol-favoring rounding for amounts
// paid out by the engine.
func mulDivFloor(a, b, den *big.Int) *big.Int {
	if a == nil || b == nil || den == nil || den.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, den)
}

// mulDivCeil computes ceil(a*b/den). Protocol-favoring rounding for amounts
// pulled into the engine.
func mulDivCeil(a, b, den *big.Int) *big.Int {
	if a == nil || b == nil || den == nil || den.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	product.Add(product, new(big.Int).Sub(den, big.NewInt(1)))
	return product.Quo(product, den)
}

// feeMultiplier returns BaseFee-fee as a big integer. Callers gate fee <
// BaseFee beforehand so the multiplier stays positive.
func feeMultiplier(fee int64) *big.Int {
	return big.NewInt(BaseFee - fee)
}
