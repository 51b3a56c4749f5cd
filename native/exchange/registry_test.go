package exchange

import (
	"errors"
	"testing"
)

func TestRegistryClassify(t *testing.T) {
	registry, err := NewCollateralRegistry(testStable)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if err := registry.AddCollateral("usdx", 6); err != nil {
		t.Fatalf("add collateral: %v", err)
	}
	symbol, mint, err := registry.Classify("USDX", testStable)
	if err != nil || !mint || symbol != "USDX" {
		t.Fatalf("mint classify: %s mint=%v err=%v", symbol, mint, err)
	}
	symbol, mint, err = registry.Classify(testStable, "usdx")
	if err != nil || mint || symbol != "USDX" {
		t.Fatalf("burn classify: %s mint=%v err=%v", symbol, mint, err)
	}
	cases := [][2]string{
		{"USDX", "USDX"},
		{testStable, testStable},
		{"USDX", "OTHER"},
		{"OTHER", testStable},
		{testStable, "OTHER"},
		{"", testStable},
	}
	for _, pair := range cases {
		if _, _, err := registry.Classify(pair[0], pair[1]); !errors.Is(err, ErrInvalidTokens) {
			t.Fatalf("classify(%q, %q): got %v, want ErrInvalidTokens", pair[0], pair[1], err)
		}
	}
}

func TestRegistryNewCollateralStartsPaused(t *testing.T) {
	registry, err := NewCollateralRegistry(testStable)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if err := registry.AddCollateral("USDX", 6); err != nil {
		t.Fatalf("add collateral: %v", err)
	}
	for _, action := range []Action{ActionMint, ActionBurn, ActionRedeem} {
		if !registry.IsPaused("USDX", action) {
			t.Fatalf("fresh collateral must start paused for %s", action)
		}
	}
	unpaused, err := registry.TogglePause("USDX", ActionMint)
	if err != nil || unpaused {
		t.Fatalf("toggle: paused=%v err=%v", unpaused, err)
	}
	if registry.IsPaused("USDX", ActionMint) {
		t.Fatalf("mint should be unpaused after toggle")
	}
	if !registry.IsPaused("USDX", ActionBurn) {
		t.Fatalf("burn must remain paused")
	}
}

func TestRegistryUnknownCollateralReportsPaused(t *testing.T) {
	registry, _ := NewCollateralRegistry(testStable)
	if !registry.IsPaused("GHOST", ActionMint) {
		t.Fatalf("unknown collateral must report paused")
	}
}

func TestRegistryAddValidation(t *testing.T) {
	registry, _ := NewCollateralRegistry(testStable)
	if err := registry.AddCollateral(testStable, 18); err == nil {
		t.Fatalf("stablecoin must not be registrable as collateral")
	}
	if err := registry.AddCollateral("BIG", 19); err == nil {
		t.Fatalf("decimals above 18 must be rejected")
	}
	if err := registry.AddCollateral("USDX", 6); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := registry.AddCollateral("usdx", 6); err == nil {
		t.Fatalf("duplicate symbol must be rejected")
	}
}

func TestRegistrySetFeesValidates(t *testing.T) {
	registry, _ := NewCollateralRegistry(testStable)
	if err := registry.AddCollateral("USDX", 6); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := registry.SetFees("USDX", []uint64{0, 1}, []int64{5}, true); !errors.Is(err, ErrInvalidCurve) {
		t.Fatalf("length mismatch: got %v", err)
	}
	if err := registry.SetFees("USDX", []uint64{0, 500_000_000}, []int64{5, 10}, true); err != nil {
		t.Fatalf("set mint fees: %v", err)
	}
	if err := registry.SetFees("USDX", []uint64{1_000_000_000, 100_000_000}, []int64{5, 10}, false); err != nil {
		t.Fatalf("set burn fees: %v", err)
	}
	if err := registry.SetFees("GHOST", nil, nil, true); !errors.Is(err, ErrUnknownCollateral) {
		t.Fatalf("unknown collateral: got %v", err)
	}
}

func TestRegistryRevokePreservesOrder(t *testing.T) {
	registry, _ := NewCollateralRegistry(testStable)
	for _, symbol := range []string{"AAA", "BBB", "CCC"} {
		if err := registry.AddCollateral(symbol, 6); err != nil {
			t.Fatalf("add %s: %v", symbol, err)
		}
	}
	if err := registry.RevokeCollateral("BBB"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	list := registry.List()
	if len(list) != 2 || list[0] != "AAA" || list[1] != "CCC" {
		t.Fatalf("unexpected order after revoke: %v", list)
	}
	if err := registry.RevokeCollateral("BBB"); !errors.Is(err, ErrUnknownCollateral) {
		t.Fatalf("double revoke: got %v", err)
	}
}
