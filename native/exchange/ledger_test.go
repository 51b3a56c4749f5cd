package exchange

import (
	"errors"
	"math/big"
	"testing"
)

func TestMemoryLedgerMintBurnCycle(t *testing.T) {
	ledger := NewMemoryLedger()
	if err := ledger.ApplyMint("usdx", big.NewInt(1_000_000), big.NewInt(2_000_000)); err != nil {
		t.Fatalf("apply mint: %v", err)
	}
	balance, _ := ledger.Balance("USDX")
	if balance.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("balance after mint: %s", balance)
	}
	if err := ledger.ApplyBurn("USDX", big.NewInt(2_000_000), big.NewInt(1_000_000)); err != nil {
		t.Fatalf("apply burn: %v", err)
	}
	total, _ := ledger.TotalIssued()
	if total.Sign() != 0 {
		t.Fatalf("total after burn: %s", total)
	}
}

func TestMemoryLedgerBurnValidation(t *testing.T) {
	ledger := NewMemoryLedger()
	if err := ledger.ApplyMint("USDX", big.NewInt(100), big.NewInt(100)); err != nil {
		t.Fatalf("apply mint: %v", err)
	}
	if err := ledger.ApplyBurn("USDX", big.NewInt(200), big.NewInt(0)); err == nil {
		t.Fatalf("burn above issuance must fail")
	}
	if err := ledger.ApplyBurn("USDX", big.NewInt(50), big.NewInt(200)); !errors.Is(err, ErrInsufficientReserves) {
		t.Fatalf("release above reserve: got %v", err)
	}
	total, _ := ledger.TotalIssued()
	if total.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("total after failed burns: %s", total)
	}
}

func TestMemoryLedgerRedeemReducesUnreleasedIssuance(t *testing.T) {
	ledger := NewMemoryLedger()
	if err := ledger.ApplyMint("AAA", big.NewInt(600), big.NewInt(600)); err != nil {
		t.Fatalf("mint AAA: %v", err)
	}
	if err := ledger.ApplyMint("BBB", big.NewInt(400), big.NewInt(400)); err != nil {
		t.Fatalf("mint BBB: %v", err)
	}
	// BBB pays no leg but its issuance still shrinks with the burn.
	released := map[string]*big.Int{"AAA": big.NewInt(300)}
	if err := ledger.ApplyRedeem(big.NewInt(500), released); err != nil {
		t.Fatalf("apply redeem: %v", err)
	}
	issuedA, _ := ledger.Issued("AAA")
	if issuedA.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("AAA issuance after redeem: %s", issuedA)
	}
	issuedB, _ := ledger.Issued("BBB")
	if issuedB.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("BBB issuance after redeem: %s", issuedB)
	}
	total, _ := ledger.TotalIssued()
	sum := new(big.Int).Add(issuedA, issuedB)
	if sum.Cmp(total) > 0 {
		t.Fatalf("per-collateral issuance %s exceeds total %s", sum, total)
	}
	balanceB, _ := ledger.Balance("BBB")
	if balanceB.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("BBB balance must be untouched: %s", balanceB)
	}
}
