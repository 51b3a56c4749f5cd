package exchange

import (
	"fmt"
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// ReserveSource abstracts a managed-collateral strategy: reserves custodied
// outside the engine that can still be drawn on for burn and redemption
// payouts.
type ReserveSource interface {
	// Available reports the reserves the strategy can release right now.
	Available(collateral string) (*big.Int, error)
	// Release withdraws the amount from the strategy to the recipient.
	Release(collateral string, amount *big.Int, to ethcommon.Address) error
}

// MemoryReserve is an in-memory strategy used by tests and the development
// daemon. Deposits are tracked per collateral and releases fail when the
// balance would go negative.
type MemoryReserve struct {
	mu       sync.Mutex
	balances map[string]*big.Int
}

// NewMemoryReserve constructs an empty in-memory strategy.
func NewMemoryReserve() *MemoryReserve {
	return &MemoryReserve{balances: make(map[string]*big.Int)}
}

// Deposit credits the strategy with collateral.
func (m *MemoryReserve) Deposit(collateral string, amount *big.Int) error {
	if m == nil {
		return fmt.Errorf("exchange: reserve not configured")
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	key := normaliseSymbol(collateral)
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.balances[key]
	if !ok {
		current = big.NewInt(0)
	}
	m.balances[key] = new(big.Int).Add(current, amount)
	return nil
}

// Available reports the strategy balance for the collateral.
func (m *MemoryReserve) Available(collateral string) (*big.Int, error) {
	if m == nil {
		return nil, fmt.Errorf("exchange: reserve not configured")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.balances[normaliseSymbol(collateral)]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(current), nil
}

// Release draws the amount out of the strategy.
func (m *MemoryReserve) Release(collateral string, amount *big.Int, _ ethcommon.Address) error {
	if m == nil {
		return fmt.Errorf("exchange: reserve not configured")
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	key := normaliseSymbol(collateral)
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.balances[key]
	if !ok || current.Cmp(amount) < 0 {
		return ErrInsufficientReserves
	}
	m.balances[key] = new(big.Int).Sub(current, amount)
	return nil
}
