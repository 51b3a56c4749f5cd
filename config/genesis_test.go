package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crucible/native/exchange"
)

const testGenesis = `
stablecoin: CRUSD
attester: "0x00000000000000000000000000000000000000aa"
redemption_curve:
  xs: [1000000000]
  ys: [10000000]
collaterals:
  - symbol: usdx
    decimals: 6
    mint_fees:
      xs: [0, 700000000]
      ys: [10100000, 30900000]
    burn_fees:
      xs: [1000000000, 10000000]
      ys: [10100000, 500000000]
    unpause: [mint, burn, redeem]
    prices:
      mint: "999000000000000000"
  - symbol: WSTB
    decimals: 18
    whitelist:
      required: true
`

func writeGenesis(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadGenesis(t *testing.T) {
	gen, err := LoadGenesis(writeGenesis(t, testGenesis))
	require.NoError(t, err)
	assert.Equal(t, "CRUSD", gen.Stablecoin)
	require.Len(t, gen.Collaterals, 2)
	assert.Equal(t, uint8(6), gen.Collaterals[0].Decimals)
}

func TestGenesisValidation(t *testing.T) {
	_, err := LoadGenesis(writeGenesis(t, "stablecoin: \"\"\n"))
	assert.Error(t, err)

	_, err = LoadGenesis(writeGenesis(t, "stablecoin: CRUSD\nattester: nope\n"))
	assert.Error(t, err)

	dup := `
stablecoin: CRUSD
collaterals:
  - symbol: USDX
    decimals: 6
  - symbol: usdx
    decimals: 6
`
	_, err = LoadGenesis(writeGenesis(t, dup))
	assert.Error(t, err)

	badAction := `
stablecoin: CRUSD
collaterals:
  - symbol: USDX
    decimals: 6
    unpause: [mint, freeze]
`
	_, err = LoadGenesis(writeGenesis(t, badAction))
	assert.Error(t, err)
}

func TestGenesisNewEngine(t *testing.T) {
	gen, err := LoadGenesis(writeGenesis(t, testGenesis))
	require.NoError(t, err)

	engine, err := gen.NewEngine(exchange.NewMemoryLedger(), exchange.NewMemoryBank(gen.Stablecoin))
	require.NoError(t, err)

	assert.Equal(t, "CRUSD", engine.Stablecoin())
	assert.Equal(t, []string{"USDX", "WSTB"}, engine.GetCollateralList())

	// USDX was unpaused for every action, WSTB stays paused.
	assert.False(t, engine.IsPaused("USDX", exchange.ActionMint))
	assert.True(t, engine.IsPaused("WSTB", exchange.ActionMint))

	xs, ys, err := engine.GetCollateralMintFees("USDX")
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 700000000}, xs)
	assert.Equal(t, []int64{10100000, 30900000}, ys)

	xs, _ = engine.GetRedemptionFees()
	assert.Equal(t, []uint64{1000000000}, xs)

	snapshot, err := engine.GetOracleValues("USDX")
	require.NoError(t, err)
	want, _ := new(big.Int).SetString("999000000000000000", 10)
	assert.Zero(t, snapshot.Mint.Cmp(want))
	// Unset prices keep the identity value.
	identity, _ := new(big.Int).SetString("1000000000000000000", 10)
	assert.Zero(t, snapshot.Burn.Cmp(identity))
}

func TestGenesisRejectsInvalidCurve(t *testing.T) {
	bad := `
stablecoin: CRUSD
collaterals:
  - symbol: USDX
    decimals: 6
    mint_fees:
      xs: [0, 0]
      ys: [1, 2]
`
	gen, err := LoadGenesis(writeGenesis(t, bad))
	require.NoError(t, err)
	_, err = gen.NewEngine(exchange.NewMemoryLedger(), exchange.NewMemoryBank("CRUSD"))
	assert.ErrorIs(t, err, exchange.ErrInvalidCurve)
}
