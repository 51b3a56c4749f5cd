package exchange

import (
	"fmt"
	"math/big"
)

// FeeCurve stores the ordered breakpoints of a piecewise-linear fee schedule.
// The x axis is an exposure fraction in the 1e9 scale; the y axis is a signed
// fee rate in the same scale where negative values grant a bonus. An empty
// curve is the valid disabled state and evaluates to zero everywhere.
type FeeCurve struct {
	xs []uint64
	ys []int64
}

// NewMintCurve validates breakpoints for a mint schedule: x strictly
// increasing, fees above -BaseFee and at most MaxMintFee.
func NewMintCurve(xs []uint64, ys []int64) (FeeCurve, error) {
	return newCurve(xs, ys, true, MaxMintFee)
}

// NewBurnCurve validates breakpoints for a burn schedule: x strictly
// decreasing (low exposure is the dangerous end), fees above -BaseFee and
// strictly below MaxBurnFee so payouts stay positive.
func NewBurnCurve(xs []uint64, ys []int64) (FeeCurve, error) {
	return newCurve(xs, ys, false, MaxBurnFee-1)
}

// NewRedemptionCurve validates breakpoints for the global redemption schedule:
// x strictly increasing over the collateral ratio, fees within [0, BaseFee].
func NewRedemptionCurve(xs []uint64, ys []int64) (FeeCurve, error) {
	curve, err := newCurve(xs, ys, true, BaseFee)
	if err != nil {
		return FeeCurve{}, err
	}
	for _, y := range curve.ys {
		if y < 0 {
			return FeeCurve{}, fmt.Errorf("%w: redemption fee must not be negative", ErrInvalidCurve)
		}
	}
	return curve, nil
}

func newCurve(xs []uint64, ys []int64, increasing bool, maxFee int64) (FeeCurve, error) {
	if len(xs) != len(ys) {
		return FeeCurve{}, fmt.Errorf("%w: breakpoint arrays must have equal length", ErrInvalidCurve)
	}
	for i := range xs {
		if i > 0 {
			if increasing && xs[i] <= xs[i-1] {
				return FeeCurve{}, fmt.Errorf("%w: x must be strictly increasing", ErrInvalidCurve)
			}
			if !increasing && xs[i] >= xs[i-1] {
				return FeeCurve{}, fmt.Errorf("%w: x must be strictly decreasing", ErrInvalidCurve)
			}
		}
		if ys[i] <= -BaseFee {
			return FeeCurve{}, fmt.Errorf("%w: fee bonus must stay above -100%%", ErrInvalidCurve)
		}
		if ys[i] > maxFee {
			return FeeCurve{}, fmt.Errorf("%w: fee %d exceeds maximum %d", ErrInvalidCurve, ys[i], maxFee)
		}
	}
	return FeeCurve{xs: append([]uint64{}, xs...), ys: append([]int64{}, ys...)}, nil
}

// Empty reports whether the curve is in the disabled state.
func (c FeeCurve) Empty() bool { return len(c.xs) == 0 }

// Breakpoints returns defensive copies of the stored arrays.
func (c FeeCurve) Breakpoints() ([]uint64, []int64) {
	return append([]uint64{}, c.xs...), append([]int64{}, c.ys...)
}

// Evaluate locates the segment containing input and linearly interpolates the
// fee rate. Inputs beyond the breakpoint range clamp to the nearest endpoint;
// breakpoints themselves evaluate exactly to their configured rate.
func (c FeeCurve) Evaluate(input uint64) int64 {
	n := len(c.xs)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return c.ys[0]
	}
	increasing := c.xs[0] < c.xs[n-1]
	lo, hi := 0, n-1
	if increasing {
		if input <= c.xs[0] {
			return c.ys[0]
		}
		if input >= c.xs[n-1] {
			return c.ys[n-1]
		}
		for hi-lo > 1 {
			mid := (lo + hi) / 2
			if c.xs[mid] <= input {
				lo = mid
			} else {
				hi = mid
			}
		}
	} else {
		if input >= c.xs[0] {
			return c.ys[0]
		}
		if input <= c.xs[n-1] {
			return c.ys[n-1]
		}
		for hi-lo > 1 {
			mid := (lo + hi) / 2
			if c.xs[mid] >= input {
				lo = mid
			} else {
				hi = mid
			}
		}
	}
	return interpolate(c.xs[lo], c.ys[lo], c.xs[hi], c.ys[hi], input)
}

// interpolate computes y0 + (y1-y0)*(input-x0)/(x1-x0) with big integers; the
// slope product can exceed 64 bits when mint fees approach MaxMintFee.
func interpolate(x0 uint64, y0 int64, x1 uint64, y1 int64, input uint64) int64 {
	var run, offset *big.Int
	if x1 >= x0 {
		run = new(big.Int).SetUint64(x1 - x0)
		offset = new(big.Int).SetUint64(input - x0)
	} else {
		run = new(big.Int).SetUint64(x0 - x1)
		offset = new(big.Int).SetUint64(x0 - input)
	}
	rise := big.NewInt(y1 - y0)
	delta := new(big.Int).Mul(rise, offset)
	delta.Quo(delta, run)
	return y0 + delta.Int64()
}
