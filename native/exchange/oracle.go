package exchange

import (
	"fmt"
	"sync"
)

// PriceSource resolves a fresh oracle snapshot for a collateral. The engine
// reads it once per call and never caches across calls.
type PriceSource interface {
	Read(collateral string) (OracleSnapshot, error)
}

// ManualPriceSource is an in-memory price source used for tests, bootstrap,
// and manual overrides during incident response. Collateral without a stored
// snapshot reads as the 1e18 identity: the behaviour expected of a freshly
// onboarded asset with no recorded deviation.
type ManualPriceSource struct {
	mu        sync.RWMutex
	snapshots map[string]OracleSnapshot
}

// NewManualPriceSource constructs an empty manual price source.
func NewManualPriceSource() *ManualPriceSource {
	return &ManualPriceSource{snapshots: make(map[string]OracleSnapshot)}
}

// Set stores the snapshot for the collateral, replacing any prior reading.
func (m *ManualPriceSource) Set(collateral string, snapshot OracleSnapshot) error {
	if m == nil {
		return fmt.Errorf("exchange: manual price source not configured")
	}
	if !snapshot.valid() {
		return fmt.Errorf("exchange: snapshot prices must be positive")
	}
	key := normaliseSymbol(collateral)
	if key == "" {
		return fmt.Errorf("exchange: collateral symbol required")
	}
	m.mu.Lock()
	m.snapshots[key] = snapshot.Clone()
	m.mu.Unlock()
	return nil
}

// Read returns a defensive copy of the stored snapshot, or the identity
// snapshot when none has been recorded.
func (m *ManualPriceSource) Read(collateral string) (OracleSnapshot, error) {
	if m == nil {
		return OracleSnapshot{}, fmt.Errorf("exchange: manual price source not configured")
	}
	key := normaliseSymbol(collateral)
	m.mu.RLock()
	stored, ok := m.snapshots[key]
	m.mu.RUnlock()
	if !ok {
		return IdentitySnapshot(), nil
	}
	return stored.Clone(), nil
}
