package exchange

import (
	"errors"
	"math/big"
	"testing"
)

func TestQuoteRedemptionProportional(t *testing.T) {
	env := newTestEnv(t)
	env.mintFor(t, addr(1), big.NewInt(10_000_000)) // 10 WSTB -> 10 crUSD
	q, err := env.engine.QuoteRedemption(bigInt("5000000000000000000"))
	if err != nil {
		t.Fatalf("quote redemption: %v", err)
	}
	if q.Fee != 0 {
		t.Fatalf("empty redemption curve must charge no fee: %d", q.Fee)
	}
	if len(q.Collaterals) != 1 || q.Collaterals[0] != testToken {
		t.Fatalf("unexpected basket: %v", q.Collaterals)
	}
	if q.Amounts[0].Cmp(big.NewInt(5_000_000)) != 0 {
		t.Fatalf("unexpected leg: %s", q.Amounts[0])
	}
}

func TestQuoteRedemptionAppliesCurveFee(t *testing.T) {
	env := newTestEnv(t)
	env.mintFor(t, addr(1), big.NewInt(10_000_000))
	// Flat 1% redemption fee across the whole ratio axis.
	if err := env.engine.SetRedemptionCurveParams([]uint64{1_000_000_000}, []int64{10_000_000}); err != nil {
		t.Fatalf("set redemption curve: %v", err)
	}
	q, err := env.engine.QuoteRedemption(bigInt("5000000000000000000"))
	if err != nil {
		t.Fatalf("quote redemption: %v", err)
	}
	if q.Fee != 10_000_000 {
		t.Fatalf("unexpected fee: %d", q.Fee)
	}
	if q.Amounts[0].Cmp(big.NewInt(4_950_000)) != 0 {
		t.Fatalf("unexpected fee-adjusted leg: %s", q.Amounts[0])
	}
}

func TestQuoteRedemptionRejectsExcessAmount(t *testing.T) {
	env := newTestEnv(t)
	env.mintFor(t, addr(1), big.NewInt(1_000_000))
	if _, err := env.engine.QuoteRedemption(bigInt("2000000000000000000")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("redeeming above issuance: got %v", err)
	}
	if _, err := env.engine.QuoteRedemption(nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("nil amount: got %v", err)
	}
}

func TestQuoteRedemptionPausedCollateralBlocksBasket(t *testing.T) {
	env := newTestEnv(t)
	env.mintFor(t, addr(1), big.NewInt(1_000_000))
	if _, err := env.engine.TogglePause(testToken, ActionRedeem); err != nil {
		t.Fatalf("pause redeem: %v", err)
	}
	if _, err := env.engine.QuoteRedemption(bigInt("1000000000000000000")); !errors.Is(err, ErrPaused) {
		t.Fatalf("paused collateral must block redemption: got %v", err)
	}
}

func TestRedeemSettles(t *testing.T) {
	env := newTestEnv(t)
	caller := addr(1)
	env.mintFor(t, caller, big.NewInt(10_000_000))
	amount := bigInt("4000000000000000000")
	env.bank.Approve(testStable, caller, amount)
	legs, err := env.engine.Redeem(caller, amount, caller, 0, nil)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if len(legs) != 1 || legs[0].Cmp(big.NewInt(4_000_000)) != 0 {
		t.Fatalf("unexpected legs: %v", legs)
	}
	if got := env.bank.BalanceOf(testToken, caller); got.Cmp(big.NewInt(4_000_000)) != 0 {
		t.Fatalf("collateral payout: %s", got)
	}
	if got := env.bank.BalanceOf(testStable, caller); got.Cmp(bigInt("6000000000000000000")) != 0 {
		t.Fatalf("remaining stablecoin: %s", got)
	}
	total, err := env.ledger.TotalIssued()
	if err != nil {
		t.Fatalf("total issued: %v", err)
	}
	if total.Cmp(bigInt("6000000000000000000")) != 0 {
		t.Fatalf("issuance after redeem: %s", total)
	}
	receipt, ok, err := env.engine.Receipt("receipt-2")
	if err != nil || !ok {
		t.Fatalf("receipt lookup: ok=%v err=%v", ok, err)
	}
	if receipt.Kind != "redeem" || receipt.TokenIn != testStable {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if len(receipt.Outputs) != 1 || receipt.Outputs[0].Token != testToken {
		t.Fatalf("unexpected receipt outputs: %v", receipt.Outputs)
	}
}

func TestRedeemEnforcesPerLegMinimums(t *testing.T) {
	env := newTestEnv(t)
	caller := addr(1)
	env.mintFor(t, caller, big.NewInt(10_000_000))
	amount := bigInt("4000000000000000000")
	env.bank.Approve(testStable, caller, amount)
	mins := []*big.Int{big.NewInt(4_000_001)}
	if _, err := env.engine.Redeem(caller, amount, caller, 0, mins); !errors.Is(err, ErrTooSmallAmountOut) {
		t.Fatalf("leg below minimum: got %v", err)
	}
}

func TestRedeemDrawsManagedReserves(t *testing.T) {
	env := newTestEnv(t)
	caller := addr(1)
	env.mintFor(t, caller, big.NewInt(2_000_000))
	// Move most of the direct reserve into a managed strategy.
	manager := NewMemoryReserve()
	if err := manager.Deposit(testToken, big.NewInt(1_500_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := env.engine.SetCollateralManager(testToken, manager); err != nil {
		t.Fatalf("set manager: %v", err)
	}
	if err := env.engine.AdjustStablecoins(testToken, bigInt("1500000000000000000")); err != nil {
		t.Fatalf("adjust issuance: %v", err)
	}
	// Basket now pays 3.5 WSTB for the full 3.5 crUSD: 2.0 direct, 1.5 managed.
	amount := bigInt("3500000000000000000")
	env.bank.Approve(testStable, caller, amount)
	// Mint the extra stable the adjustment accounted for so the caller can burn it.
	if err := env.bank.MintStable(caller, bigInt("1500000000000000000")); err != nil {
		t.Fatalf("mint stable: %v", err)
	}
	legs, err := env.engine.Redeem(caller, amount, caller, 0, nil)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if legs[0].Cmp(big.NewInt(3_500_000)) != 0 {
		t.Fatalf("unexpected leg: %s", legs[0])
	}
	remaining, err := manager.Available(testToken)
	if err != nil {
		t.Fatalf("manager available: %v", err)
	}
	if remaining.Sign() != 0 {
		t.Fatalf("manager must be drained: %s", remaining)
	}
	balance, err := env.ledger.Balance(testToken)
	if err != nil {
		t.Fatalf("ledger balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("direct reserve must be drained: %s", balance)
	}
}

func TestRedeemReducesIssuanceOfZeroLegCollateral(t *testing.T) {
	env := newTestEnv(t)
	caller := addr(1)
	env.mintFor(t, caller, big.NewInt(1_000_000)) // 1 crUSD against WSTB
	// Second collateral with issuance on the books but no reserves: it pays
	// nothing into the basket yet must still shed its share of the burn.
	if err := env.engine.AddCollateral("AAA", 6); err != nil {
		t.Fatalf("add collateral: %v", err)
	}
	if _, err := env.engine.TogglePause("AAA", ActionRedeem); err != nil {
		t.Fatalf("unpause redeem: %v", err)
	}
	if err := env.engine.AdjustStablecoins("AAA", bigInt("1000000000000000000")); err != nil {
		t.Fatalf("adjust issuance: %v", err)
	}
	amount := bigInt("1000000000000000000")
	env.bank.Approve(testStable, caller, amount)
	legs, err := env.engine.Redeem(caller, amount, caller, 0, nil)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if len(legs) != 2 || legs[1].Sign() != 0 {
		t.Fatalf("unexpected legs: %v", legs)
	}
	issuedWSTB, err := env.ledger.Issued(testToken)
	if err != nil {
		t.Fatalf("issued %s: %v", testToken, err)
	}
	issuedAAA, err := env.ledger.Issued("AAA")
	if err != nil {
		t.Fatalf("issued AAA: %v", err)
	}
	if issuedAAA.Cmp(bigInt("500000000000000000")) != 0 {
		t.Fatalf("zero-leg collateral issuance after redeem: %s", issuedAAA)
	}
	total, err := env.ledger.TotalIssued()
	if err != nil {
		t.Fatalf("total issued: %v", err)
	}
	sum := new(big.Int).Add(issuedWSTB, issuedAAA)
	if sum.Cmp(total) > 0 {
		t.Fatalf("per-collateral issuance %s exceeds total %s", sum, total)
	}
}

func TestRedeemWhitelistGate(t *testing.T) {
	env := newTestEnv(t)
	caller := addr(1)
	env.mintFor(t, caller, big.NewInt(1_000_000))
	if err := env.engine.SetWhitelistStatus(testToken, true, nil); err != nil {
		t.Fatalf("set whitelist status: %v", err)
	}
	amount := bigInt("1000000000000000000")
	env.bank.Approve(testStable, caller, amount)
	if _, err := env.engine.Redeem(caller, amount, caller, 0, nil); !errors.Is(err, ErrNotWhitelisted) {
		t.Fatalf("gated redeem without whitelist: got %v", err)
	}
	env.engine.SetWhitelist(OpenWhitelist{})
	if _, err := env.engine.Redeem(caller, amount, caller, 0, nil); err != nil {
		t.Fatalf("redeem with open whitelist: %v", err)
	}
}
