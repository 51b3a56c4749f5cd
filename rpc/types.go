package rpc

import (
	"fmt"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// parseAmount decodes a decimal string into a big integer.
func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer amount %q", value)
	}
	return amount, nil
}

// parseOptionalAmount decodes a decimal string, treating empty as absent.
func parseOptionalAmount(value string) (*big.Int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	return parseAmount(value)
}

// parseAddress decodes a 0x-prefixed hex account address.
func parseAddress(value string) (ethcommon.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !ethcommon.IsHexAddress(trimmed) {
		return ethcommon.Address{}, fmt.Errorf("invalid address %q", value)
	}
	return ethcommon.HexToAddress(trimmed), nil
}

func formatAmount(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}

// curveResult carries fee curve breakpoints over the wire.
type curveResult struct {
	Xs []uint64 `json:"xs"`
	Ys []int64  `json:"ys"`
}

type quoteResult struct {
	Amount string `json:"amount"`
}

type swapResult struct {
	Amount string `json:"amount"`
}

type redemptionQuoteResult struct {
	Fee         int64    `json:"fee"`
	Collaterals []string `json:"collaterals"`
	Amounts     []string `json:"amounts"`
}

type ratioResult struct {
	Ratio  string `json:"ratio"`
	Issued string `json:"issued"`
}

type oracleResult struct {
	Mint       string `json:"mint"`
	Burn       string `json:"burn"`
	Ratio      string `json:"ratio"`
	MinRatio   string `json:"minRatio"`
	Redemption string `json:"redemption"`
}

type receiptResult struct {
	ID        string             `json:"id"`
	Kind      string             `json:"kind"`
	TokenIn   string             `json:"tokenIn"`
	AmountIn  string             `json:"amountIn"`
	Outputs   []receiptLegResult `json:"outputs"`
	From      string             `json:"from"`
	To        string             `json:"to"`
	CreatedAt int64              `json:"createdAt"`
}

type receiptLegResult struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}
