package exchange

import (
	"fmt"
	"math/big"
	"sync"
)

// Ledger tracks the engine's issuance bookkeeping: stablecoins issued per
// collateral, the global total, and the reserve balance held directly per
// collateral. Every Apply method commits its mutations atomically with the
// swap that produced them; the total issued never goes negative.
type Ledger interface {
	Issued(collateral string) (*big.Int, error)
	TotalIssued() (*big.Int, error)
	Balance(collateral string) (*big.Int, error)
	// ApplyMint credits the reserve with the pulled collateral and records the
	// freshly issued stablecoins.
	ApplyMint(collateral string, amountIn, issued *big.Int) error
	// ApplyBurn records destroyed stablecoins and debits the reserve by the
	// released payout. The released amount is zero for managed collateral.
	ApplyBurn(collateral string, burned, released *big.Int) error
	// ApplyRedeem records destroyed stablecoins across every collateral in
	// proportion and debits each reserve by its payout leg.
	ApplyRedeem(burned *big.Int, released map[string]*big.Int) error
	// AdjustStablecoins shifts the issuance attributed to a collateral by the
	// signed delta without moving tokens. Governance capability.
	AdjustStablecoins(collateral string, delta *big.Int) error
	PutReceipt(receipt *SwapReceipt) error
	Receipt(id string) (*SwapReceipt, bool, error)
}

// MemoryLedger is the in-memory Ledger used by tests and as a fallback when
// no durable store is configured.
type MemoryLedger struct {
	mu       sync.Mutex
	issued   map[string]*big.Int
	balances map[string]*big.Int
	total    *big.Int
	receipts map[string]*SwapReceipt
}

// NewMemoryLedger constructs an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		issued:   make(map[string]*big.Int),
		balances: make(map[string]*big.Int),
		total:    big.NewInt(0),
		receipts: make(map[string]*SwapReceipt),
	}
}

func get(m map[string]*big.Int, key string) *big.Int {
	if v, ok := m[key]; ok {
		return v
	}
	return big.NewInt(0)
}

// Issued reports the stablecoins issued against the collateral.
func (l *MemoryLedger) Issued(collateral string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(get(l.issued, normaliseSymbol(collateral))), nil
}

// TotalIssued reports the global stablecoin issuance.
func (l *MemoryLedger) TotalIssued() (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.total), nil
}

// Balance reports the reserve held directly for the collateral.
func (l *MemoryLedger) Balance(collateral string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(get(l.balances, normaliseSymbol(collateral))), nil
}

// ApplyMint credits the reserve and issuance counters.
func (l *MemoryLedger) ApplyMint(collateral string, amountIn, issued *big.Int) error {
	if amountIn == nil || issued == nil || amountIn.Sign() < 0 || issued.Sign() < 0 {
		return ErrInvalidAmount
	}
	key := normaliseSymbol(collateral)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[key] = new(big.Int).Add(get(l.balances, key), amountIn)
	l.issued[key] = new(big.Int).Add(get(l.issued, key), issued)
	l.total = new(big.Int).Add(l.total, issued)
	return nil
}

// ApplyBurn debits issuance and the reserve, clamping per-collateral issuance
// at zero so rounding drift cannot underflow the counters.
func (l *MemoryLedger) ApplyBurn(collateral string, burned, released *big.Int) error {
	if burned == nil || released == nil || burned.Sign() < 0 || released.Sign() < 0 {
		return ErrInvalidAmount
	}
	key := normaliseSymbol(collateral)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.total.Cmp(burned) < 0 {
		return fmt.Errorf("exchange: ledger: burn exceeds issuance")
	}
	balance := get(l.balances, key)
	if balance.Cmp(released) < 0 {
		return ErrInsufficientReserves
	}
	issued := new(big.Int).Sub(get(l.issued, key), burned)
	if issued.Sign() < 0 {
		issued = big.NewInt(0)
	}
	l.issued[key] = issued
	l.total = new(big.Int).Sub(l.total, burned)
	l.balances[key] = new(big.Int).Sub(balance, released)
	return nil
}

// ApplyRedeem debits the global issuance once and each reserve leg.
func (l *MemoryLedger) ApplyRedeem(burned *big.Int, released map[string]*big.Int) error {
	if burned == nil || burned.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.total.Cmp(burned) < 0 {
		return fmt.Errorf("exchange: ledger: redeem exceeds issuance")
	}
	for symbol, amount := range released {
		key := normaliseSymbol(symbol)
		if amount == nil || amount.Sign() < 0 {
			return ErrInvalidAmount
		}
		if get(l.balances, key).Cmp(amount) < 0 {
			return ErrInsufficientReserves
		}
	}
	total := new(big.Int).Set(l.total)
	for symbol, amount := range released {
		key := normaliseSymbol(symbol)
		l.balances[key] = new(big.Int).Sub(get(l.balances, key), amount)
	}
	// Issuance drops proportionally for every collateral, not just the ones
	// that paid a leg, so the per-collateral counters keep tracking the total.
	for key, issued := range l.issued {
		share := mulDivFloor(issued, burned, total)
		next := new(big.Int).Sub(issued, share)
		if next.Sign() < 0 {
			next = big.NewInt(0)
		}
		l.issued[key] = next
	}
	l.total = new(big.Int).Sub(l.total, burned)
	return nil
}

// AdjustStablecoins shifts issuance bookkeeping without token movement.
func (l *MemoryLedger) AdjustStablecoins(collateral string, delta *big.Int) error {
	if delta == nil {
		return ErrInvalidAmount
	}
	key := normaliseSymbol(collateral)
	l.mu.Lock()
	defer l.mu.Unlock()
	issued := new(big.Int).Add(get(l.issued, key), delta)
	total := new(big.Int).Add(l.total, delta)
	if issued.Sign() < 0 || total.Sign() < 0 {
		return fmt.Errorf("exchange: ledger: issuance must not go negative")
	}
	l.issued[key] = issued
	l.total = total
	return nil
}

// PutReceipt stores the settlement receipt.
func (l *MemoryLedger) PutReceipt(receipt *SwapReceipt) error {
	if receipt == nil || receipt.ID == "" {
		return fmt.Errorf("exchange: ledger: receipt id required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.receipts[receipt.ID]; exists {
		return fmt.Errorf("exchange: ledger: receipt %s already recorded", receipt.ID)
	}
	l.receipts[receipt.ID] = receipt.Copy()
	return nil
}

// Receipt fetches a settlement receipt by identifier.
func (l *MemoryLedger) Receipt(id string) (*SwapReceipt, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	receipt, ok := l.receipts[id]
	if !ok {
		return nil, false, nil
	}
	return receipt.Copy(), true, nil
}
