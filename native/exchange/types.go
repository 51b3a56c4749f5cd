package exchange

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Action enumerates the operations a collateral can be paused for.
type Action uint8

const (
	// ActionMint creates stablecoin against the collateral.
	ActionMint Action = iota
	// ActionBurn destroys stablecoin for the collateral.
	ActionBurn
	// ActionRedeem destroys stablecoin for a proportional basket of all collateral.
	ActionRedeem
)

// String renders the action for logs and RPC payloads.
func (a Action) String() string {
	switch a {
	case ActionMint:
		return "mint"
	case ActionBurn:
		return "burn"
	case ActionRedeem:
		return "redeem"
	default:
		return "unknown"
	}
}

// ParseAction converts a textual action identifier into an Action.
func ParseAction(value string) (Action, bool) {
	switch value {
	case "mint":
		return ActionMint, true
	case "burn":
		return ActionBurn, true
	case "redeem":
		return ActionRedeem, true
	default:
		return 0, false
	}
}

// OracleSnapshot carries the per-collateral price readings consumed by the
// quoting paths. All values are fixed-point in the 1e18 price scale and are
// taken fresh on every call, never cached.
type OracleSnapshot struct {
	Mint       *big.Int
	Burn       *big.Int
	Ratio      *big.Int
	MinRatio   *big.Int
	Redemption *big.Int
}

// IdentitySnapshot returns the snapshot reported for freshly onboarded
// collateral with no recorded price deviation: every field at 1e18.
func IdentitySnapshot() OracleSnapshot {
	return OracleSnapshot{
		Mint:       new(big.Int).Set(basePrice),
		Burn:       new(big.Int).Set(basePrice),
		Ratio:      new(big.Int).Set(basePrice),
		MinRatio:   new(big.Int).Set(basePrice),
		Redemption: new(big.Int).Set(basePrice),
	}
}

// Clone returns a deep copy of the snapshot.
func (s OracleSnapshot) Clone() OracleSnapshot {
	clone := OracleSnapshot{}
	if s.Mint != nil {
		clone.Mint = new(big.Int).Set(s.Mint)
	}
	if s.Burn != nil {
		clone.Burn = new(big.Int).Set(s.Burn)
	}
	if s.Ratio != nil {
		clone.Ratio = new(big.Int).Set(s.Ratio)
	}
	if s.MinRatio != nil {
		clone.MinRatio = new(big.Int).Set(s.MinRatio)
	}
	if s.Redemption != nil {
		clone.Redemption = new(big.Int).Set(s.Redemption)
	}
	return clone
}

// valid reports whether the snapshot carries positive prices on the fields the
// quoting paths divide or multiply by.
func (s OracleSnapshot) valid() bool {
	return s.Mint != nil && s.Mint.Sign() > 0 &&
		s.Burn != nil && s.Burn.Sign() > 0 &&
		s.Redemption != nil && s.Redemption.Sign() > 0
}

// ReceiptLeg records one token movement within a settled swap.
type ReceiptLeg struct {
	Token  string
	Amount *big.Int
}

// SwapReceipt captures a settled mint, burn, or redemption for audit tooling.
type SwapReceipt struct {
	ID        string
	Kind      string
	TokenIn   string
	AmountIn  *big.Int
	Outputs   []ReceiptLeg
	From      common.Address
	To        common.Address
	CreatedAt int64
}

// Copy returns a deep copy of the receipt for defensive use by callers.
func (r *SwapReceipt) Copy() *SwapReceipt {
	if r == nil {
		return nil
	}
	clone := *r
	if r.AmountIn != nil {
		clone.AmountIn = new(big.Int).Set(r.AmountIn)
	}
	clone.Outputs = make([]ReceiptLeg, len(r.Outputs))
	for i, leg := range r.Outputs {
		clone.Outputs[i] = ReceiptLeg{Token: leg.Token}
		if leg.Amount != nil {
			clone.Outputs[i].Amount = new(big.Int).Set(leg.Amount)
		}
	}
	return &clone
}
