package exchange

import (
	"fmt"
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// TokenBank is the token movement capability the executor settles through.
// Pull requires the owner to have authorized the engine beforehand; the engine
// never moves funds it was not granted.
type TokenBank interface {
	Pull(token string, from ethcommon.Address, amount *big.Int) error
	Release(token string, to ethcommon.Address, amount *big.Int) error
	MintStable(to ethcommon.Address, amount *big.Int) error
	BurnStable(from ethcommon.Address, amount *big.Int) error
}

// MemoryBank is an in-memory token bank for tests and the development daemon.
// Balances and engine allowances are tracked per token and holder.
type MemoryBank struct {
	mu         sync.Mutex
	stable     string
	balances   map[string]map[ethcommon.Address]*big.Int
	allowances map[string]map[ethcommon.Address]*big.Int
}

// NewMemoryBank constructs a bank that mints and burns the given stablecoin.
func NewMemoryBank(stable string) *MemoryBank {
	return &MemoryBank{
		stable:     normaliseSymbol(stable),
		balances:   make(map[string]map[ethcommon.Address]*big.Int),
		allowances: make(map[string]map[ethcommon.Address]*big.Int),
	}
}

func (b *MemoryBank) bucket(m map[string]map[ethcommon.Address]*big.Int, token string) map[ethcommon.Address]*big.Int {
	key := normaliseSymbol(token)
	inner, ok := m[key]
	if !ok {
		inner = make(map[ethcommon.Address]*big.Int)
		m[key] = inner
	}
	return inner
}

// Credit seeds a holder balance, bypassing transfer rules. Test helper.
func (b *MemoryBank) Credit(token string, holder ethcommon.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	balances := b.bucket(b.balances, token)
	current, ok := balances[holder]
	if !ok {
		current = big.NewInt(0)
	}
	balances[holder] = new(big.Int).Add(current, amount)
}

// Approve grants the engine an allowance to pull the holder's tokens.
func (b *MemoryBank) Approve(token string, holder ethcommon.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bucket(b.allowances, token)[holder] = new(big.Int).Set(amount)
}

// BalanceOf reports the holder balance for a token.
func (b *MemoryBank) BalanceOf(token string, holder ethcommon.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	current, ok := b.bucket(b.balances, token)[holder]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(current)
}

// Pull debits the holder after consuming allowance.
func (b *MemoryBank) Pull(token string, from ethcommon.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	allowances := b.bucket(b.allowances, token)
	granted, ok := allowances[from]
	if !ok || granted.Cmp(amount) < 0 {
		return fmt.Errorf("exchange: bank: transfer not authorized for %s", token)
	}
	balances := b.bucket(b.balances, token)
	current, ok := balances[from]
	if !ok || current.Cmp(amount) < 0 {
		return fmt.Errorf("exchange: bank: insufficient %s balance", token)
	}
	allowances[from] = new(big.Int).Sub(granted, amount)
	balances[from] = new(big.Int).Sub(current, amount)
	return nil
}

// Release credits the recipient with tokens held by the engine.
func (b *MemoryBank) Release(token string, to ethcommon.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	balances := b.bucket(b.balances, token)
	current, ok := balances[to]
	if !ok {
		current = big.NewInt(0)
	}
	balances[to] = new(big.Int).Add(current, amount)
	return nil
}

// MintStable issues new stablecoin to the recipient.
func (b *MemoryBank) MintStable(to ethcommon.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return b.Release(b.stable, to, amount)
}

// BurnStable destroys stablecoin held by the holder. Burns consume allowance
// like pulls so a settlement cannot destroy tokens it was not granted.
func (b *MemoryBank) BurnStable(from ethcommon.Address, amount *big.Int) error {
	return b.Pull(b.stable, from, amount)
}
