package exchange

import (
	"errors"
	"math/big"
	"testing"
)

func TestQuoteMintIdentityPrice(t *testing.T) {
	env := newTestEnv(t)
	// 1 unit of 6-decimal collateral at the identity price, zero fee.
	out, err := env.engine.QuoteIn(big.NewInt(1_000_000), testToken, testStable)
	if err != nil {
		t.Fatalf("quote in: %v", err)
	}
	if out.Cmp(bigInt("1000000000000000000")) != 0 {
		t.Fatalf("unexpected mint output: %s", out)
	}
	in, err := env.engine.QuoteOut(bigInt("1000000000000000000"), testToken, testStable)
	if err != nil {
		t.Fatalf("quote out: %v", err)
	}
	if in.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("unexpected mint input: %s", in)
	}
}

func TestQuoteMintAppliesFee(t *testing.T) {
	env := newTestEnv(t)
	// Flat 1.01% mint fee.
	if err := env.engine.SetFees(testToken, []uint64{0}, []int64{10_100_000}, true); err != nil {
		t.Fatalf("set fees: %v", err)
	}
	out, err := env.engine.QuoteIn(big.NewInt(1_000_000), testToken, testStable)
	if err != nil {
		t.Fatalf("quote in: %v", err)
	}
	want := bigInt("989900000000000000") // 1e18 * (1 - 0.0101)
	if out.Cmp(want) != 0 {
		t.Fatalf("unexpected fee-adjusted output: %s, want %s", out, want)
	}
}

func TestQuoteBurnIdentityPrice(t *testing.T) {
	env := newTestEnv(t)
	out, err := env.engine.QuoteIn(bigInt("1000000000000000000"), testStable, testToken)
	if err != nil {
		t.Fatalf("quote burn in: %v", err)
	}
	if out.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("unexpected burn output: %s", out)
	}
	in, err := env.engine.QuoteOut(big.NewInt(1_000_000), testStable, testToken)
	if err != nil {
		t.Fatalf("quote burn out: %v", err)
	}
	if in.Cmp(bigInt("1000000000000000000")) != 0 {
		t.Fatalf("unexpected burn input: %s", in)
	}
}

func TestQuoteRoundTripNeverFavorsCaller(t *testing.T) {
	env := newTestEnv(t)
	if err := env.engine.SetFees(testToken, []uint64{0, 700_000_000}, []int64{10_100_000, 30_900_000}, true); err != nil {
		t.Fatalf("set mint fees: %v", err)
	}
	if err := env.engine.SetFees(testToken, []uint64{1_000_000_000, 10_000_000}, []int64{10_100_000, 500_000_000}, false); err != nil {
		t.Fatalf("set burn fees: %v", err)
	}
	// Off-peg price makes the rounding paths non-trivial.
	if err := env.oracle.Set(testToken, OracleSnapshot{
		Mint:       bigInt("999170000000000123"),
		Burn:       bigInt("1000330000000000321"),
		Ratio:      bigInt("999170000000000123"),
		MinRatio:   bigInt("999170000000000123"),
		Redemption: bigInt("999170000000000123"),
	}); err != nil {
		t.Fatalf("set oracle: %v", err)
	}
	amounts := []*big.Int{
		big.NewInt(1),
		big.NewInt(7),
		big.NewInt(999_999),
		big.NewInt(123_456_789),
		bigInt("987654321987654321"),
	}
	for _, amountIn := range amounts {
		out, err := env.engine.QuoteIn(amountIn, testToken, testStable)
		if err != nil {
			t.Fatalf("mint quote in %s: %v", amountIn, err)
		}
		if out.Sign() == 0 {
			continue
		}
		back, err := env.engine.QuoteOut(out, testToken, testStable)
		if err != nil {
			t.Fatalf("mint quote out %s: %v", out, err)
		}
		if back.Cmp(amountIn) > 0 {
			t.Fatalf("mint round trip leaks value: in=%s back=%s", amountIn, back)
		}
	}
	for _, amountIn := range amounts {
		out, err := env.engine.QuoteIn(amountIn, testStable, testToken)
		if err != nil {
			t.Fatalf("burn quote in %s: %v", amountIn, err)
		}
		if out.Sign() == 0 {
			continue
		}
		back, err := env.engine.QuoteOut(out, testStable, testToken)
		if err != nil {
			t.Fatalf("burn quote out %s: %v", out, err)
		}
		if back.Cmp(amountIn) > 0 {
			t.Fatalf("burn round trip leaks value: in=%s back=%s", amountIn, back)
		}
	}
}

func TestQuotePausedActionFails(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.TogglePause(testToken, ActionMint); err != nil {
		t.Fatalf("pause mint: %v", err)
	}
	if _, err := env.engine.QuoteIn(big.NewInt(1_000_000), testToken, testStable); !errors.Is(err, ErrPaused) {
		t.Fatalf("paused mint quote: got %v", err)
	}
	// Burn path stays quotable.
	if _, err := env.engine.QuoteIn(bigInt("1000000000000000000"), testStable, testToken); err != nil {
		t.Fatalf("burn quote: %v", err)
	}
}

func TestQuoteMintFeeAtOrAboveHundredPercentIsPaused(t *testing.T) {
	env := newTestEnv(t)
	if err := env.engine.SetFees(testToken, []uint64{0}, []int64{MaxMintFee}, true); err != nil {
		t.Fatalf("set fees: %v", err)
	}
	if _, err := env.engine.QuoteIn(big.NewInt(1_000_000), testToken, testStable); !errors.Is(err, ErrPaused) {
		t.Fatalf("prohibitive fee quote: got %v", err)
	}
	if _, err := env.engine.QuoteOut(bigInt("1000000000000000000"), testToken, testStable); !errors.Is(err, ErrPaused) {
		t.Fatalf("prohibitive fee exact-output quote: got %v", err)
	}
}

func TestQuoteSkipsReserveCheck(t *testing.T) {
	env := newTestEnv(t)
	// No reserves exist, yet the burn preview succeeds.
	out, err := env.engine.QuoteIn(bigInt("1000000000000000000"), testStable, testToken)
	if err != nil {
		t.Fatalf("burn preview without reserves: %v", err)
	}
	if out.Sign() <= 0 {
		t.Fatalf("unexpected preview output: %s", out)
	}
	// The advisory check still reports the shortfall.
	if err := env.engine.CheckAmounts(testToken, out); !errors.Is(err, ErrInsufficientReserves) {
		t.Fatalf("check amounts: got %v", err)
	}
}

func TestQuoteInvalidInputs(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.QuoteIn(nil, testToken, testStable); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("nil amount: got %v", err)
	}
	if _, err := env.engine.QuoteIn(big.NewInt(0), testToken, testStable); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v", err)
	}
	if _, err := env.engine.QuoteIn(big.NewInt(1), testToken, testToken); !errors.Is(err, ErrInvalidTokens) {
		t.Fatalf("same-token pair: got %v", err)
	}
}

func TestQuoteUsesExposureFromIssuanceShare(t *testing.T) {
	env := newTestEnv(t)
	// Fee jumps from 0 to 5% once exposure passes 50%.
	if err := env.engine.SetFees(testToken, []uint64{0, 500_000_000, 500_000_001}, []int64{0, 0, 50_000_000}, true); err != nil {
		t.Fatalf("set fees: %v", err)
	}
	caller := addr(1)
	// First mint sees zero exposure: no fee.
	out := env.mintFor(t, caller, big.NewInt(1_000_000))
	if out.Cmp(bigInt("1000000000000000000")) != 0 {
		t.Fatalf("first mint should be fee-free: %s", out)
	}
	// The collateral now backs 100% of issuance, so the next quote pays 5%.
	quoted, err := env.engine.QuoteIn(big.NewInt(1_000_000), testToken, testStable)
	if err != nil {
		t.Fatalf("second quote: %v", err)
	}
	if quoted.Cmp(bigInt("950000000000000000")) != 0 {
		t.Fatalf("exposure fee not applied: %s", quoted)
	}
}
