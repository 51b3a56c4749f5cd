package exchange

import (
	"fmt"
	"math/big"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

const (
	testStable = "CRUSD"
	testToken  = "WSTB" // 6-decimal test collateral
)

func addr(b byte) ethcommon.Address {
	var a ethcommon.Address
	a[19] = b
	return a
}

type testEnv struct {
	engine *Engine
	ledger *MemoryLedger
	bank   *MemoryBank
	oracle *ManualPriceSource
}

// newTestEnv wires an engine with one unpaused 6-decimal collateral, an
// identity oracle, and a deterministic clock and receipt sequence.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	registry, err := NewCollateralRegistry(testStable)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	ledger := NewMemoryLedger()
	bank := NewMemoryBank(testStable)
	engine, err := NewEngine(registry, ledger, bank)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.SetClock(func() time.Time { return time.Unix(1_900_000_000, 0) })
	seq := 0
	engine.newID = func() string {
		seq++
		return fmt.Sprintf("receipt-%d", seq)
	}
	if err := engine.AddCollateral(testToken, 6); err != nil {
		t.Fatalf("add collateral: %v", err)
	}
	oracle := NewManualPriceSource()
	if err := engine.SetOracle(testToken, oracle); err != nil {
		t.Fatalf("set oracle: %v", err)
	}
	for _, action := range []Action{ActionMint, ActionBurn, ActionRedeem} {
		if _, err := engine.TogglePause(testToken, action); err != nil {
			t.Fatalf("unpause %s: %v", action, err)
		}
	}
	return &testEnv{engine: engine, ledger: ledger, bank: bank, oracle: oracle}
}

// fundAndApprove seeds the holder with collateral and grants the engine an
// allowance over it.
func (env *testEnv) fundAndApprove(token string, holder ethcommon.Address, amount *big.Int) {
	env.bank.Credit(token, holder, amount)
	env.bank.Approve(token, holder, amount)
}

// mintFor executes a mint and fails the test on error.
func (env *testEnv) mintFor(t *testing.T, caller ethcommon.Address, amountIn *big.Int) *big.Int {
	t.Helper()
	env.fundAndApprove(testToken, caller, amountIn)
	out, err := env.engine.SwapExactInput(caller, amountIn, nil, testToken, testStable, caller, 0)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return out
}

func bigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer literal")
	}
	return v
}
