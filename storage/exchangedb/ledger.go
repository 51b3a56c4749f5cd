package exchangedb

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"
	ldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"crucible/native/exchange"
)

// Ledger is the durable issuance ledger backed by LevelDB. Each Apply method
// commits its mutations in a single write batch so a crash mid-settlement
// never leaves the counters half-updated. Amounts are persisted as decimal
// strings inside RLP-encoded records.
type Ledger struct {
	mu sync.Mutex
	db *leveldb.DB
}

var _ exchange.Ledger = (*Ledger)(nil)

// Open creates or opens the ledger database at the given path.
func Open(path string) (*Ledger, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("exchangedb: open %s: %w", path, err)
	}
	return &Ledger{db: db}, nil
}

// OpenMemory opens a ledger over in-memory storage, for tests and the
// development daemon.
func OpenMemory() (*Ledger, error) {
	db, err := leveldb.Open(ldbstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("exchangedb: open memory: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

type storedReceiptLeg struct {
	Token  string
	Amount string
}

type storedReceipt struct {
	ID        string
	Kind      string
	TokenIn   string
	AmountIn  string
	Outputs   []storedReceiptLeg
	From      common.Address
	To        common.Address
	CreatedAt uint64
}

func normaliseSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (l *Ledger) readAmount(key []byte) (*big.Int, error) {
	raw, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	var encoded string
	if err := rlp.DecodeBytes(raw, &encoded); err != nil {
		return nil, fmt.Errorf("exchangedb: corrupted amount at %s: %w", key, err)
	}
	amount, ok := new(big.Int).SetString(encoded, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("exchangedb: corrupted amount at %s", key)
	}
	return amount, nil
}

func putAmount(batch *leveldb.Batch, key []byte, amount *big.Int) error {
	encoded, err := rlp.EncodeToBytes(amount.String())
	if err != nil {
		return err
	}
	batch.Put(key, encoded)
	return nil
}

// Issued reports the stablecoins issued against the collateral.
func (l *Ledger) Issued(collateral string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readAmount(issuedKey(normaliseSymbol(collateral)))
}

// TotalIssued reports the global stablecoin issuance.
func (l *Ledger) TotalIssued() (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readAmount([]byte(totalIssuedKey))
}

// Balance reports the reserve held directly for the collateral.
func (l *Ledger) Balance(collateral string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readAmount(balanceKey(normaliseSymbol(collateral)))
}

// ApplyMint credits the reserve and issuance counters in one batch.
func (l *Ledger) ApplyMint(collateral string, amountIn, issued *big.Int) error {
	if amountIn == nil || issued == nil || amountIn.Sign() < 0 || issued.Sign() < 0 {
		return exchange.ErrInvalidAmount
	}
	key := normaliseSymbol(collateral)
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, err := l.readAmount(balanceKey(key))
	if err != nil {
		return err
	}
	collateralIssued, err := l.readAmount(issuedKey(key))
	if err != nil {
		return err
	}
	total, err := l.readAmount([]byte(totalIssuedKey))
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	if err := putAmount(batch, balanceKey(key), new(big.Int).Add(balance, amountIn)); err != nil {
		return err
	}
	if err := putAmount(batch, issuedKey(key), new(big.Int).Add(collateralIssued, issued)); err != nil {
		return err
	}
	if err := putAmount(batch, []byte(totalIssuedKey), new(big.Int).Add(total, issued)); err != nil {
		return err
	}
	return l.db.Write(batch, nil)
}

// ApplyBurn debits issuance and the reserve, clamping per-collateral issuance
// at zero so rounding drift cannot underflow the counters.
func (l *Ledger) ApplyBurn(collateral string, burned, released *big.Int) error {
	if burned == nil || released == nil || burned.Sign() < 0 || released.Sign() < 0 {
		return exchange.ErrInvalidAmount
	}
	key := normaliseSymbol(collateral)
	l.mu.Lock()
	defer l.mu.Unlock()
	total, err := l.readAmount([]byte(totalIssuedKey))
	if err != nil {
		return err
	}
	if total.Cmp(burned) < 0 {
		return fmt.Errorf("exchangedb: burn exceeds issuance")
	}
	balance, err := l.readAmount(balanceKey(key))
	if err != nil {
		return err
	}
	if balance.Cmp(released) < 0 {
		return exchange.ErrInsufficientReserves
	}
	collateralIssued, err := l.readAmount(issuedKey(key))
	if err != nil {
		return err
	}
	issued := new(big.Int).Sub(collateralIssued, burned)
	if issued.Sign() < 0 {
		issued = big.NewInt(0)
	}
	batch := new(leveldb.Batch)
	if err := putAmount(batch, issuedKey(key), issued); err != nil {
		return err
	}
	if err := putAmount(batch, []byte(totalIssuedKey), new(big.Int).Sub(total, burned)); err != nil {
		return err
	}
	if err := putAmount(batch, balanceKey(key), new(big.Int).Sub(balance, released)); err != nil {
		return err
	}
	return l.db.Write(batch, nil)
}

// ApplyRedeem debits the global issuance once and every reserve leg, reducing
// each collateral's issuance in proportion to the burn. All legs are validated
// before anything is written.
func (l *Ledger) ApplyRedeem(burned *big.Int, released map[string]*big.Int) error {
	if burned == nil || burned.Sign() < 0 {
		return exchange.ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	total, err := l.readAmount([]byte(totalIssuedKey))
	if err != nil {
		return err
	}
	if total.Cmp(burned) < 0 {
		return fmt.Errorf("exchangedb: redeem exceeds issuance")
	}
	balances := make(map[string]*big.Int, len(released))
	for symbol, amount := range released {
		key := normaliseSymbol(symbol)
		if amount == nil || amount.Sign() < 0 {
			return exchange.ErrInvalidAmount
		}
		balance, err := l.readAmount(balanceKey(key))
		if err != nil {
			return err
		}
		if balance.Cmp(amount) < 0 {
			return exchange.ErrInsufficientReserves
		}
		balances[key] = balance
	}
	batch := new(leveldb.Batch)
	for symbol, amount := range released {
		key := normaliseSymbol(symbol)
		if err := putAmount(batch, balanceKey(key), new(big.Int).Sub(balances[key], amount)); err != nil {
			return err
		}
	}
	// Issuance drops proportionally for every collateral, not just the ones
	// that paid a leg, so the per-collateral counters keep tracking the total.
	iter := l.db.NewIterator(util.BytesPrefix([]byte(issuedKeyPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		var encoded string
		if err := rlp.DecodeBytes(iter.Value(), &encoded); err != nil {
			return fmt.Errorf("exchangedb: corrupted amount at %s: %w", iter.Key(), err)
		}
		collateralIssued, ok := new(big.Int).SetString(encoded, 10)
		if !ok || collateralIssued.Sign() < 0 {
			return fmt.Errorf("exchangedb: corrupted amount at %s", iter.Key())
		}
		share := new(big.Int).Mul(collateralIssued, burned)
		share.Quo(share, total)
		issued := new(big.Int).Sub(collateralIssued, share)
		if issued.Sign() < 0 {
			issued = big.NewInt(0)
		}
		if err := putAmount(batch, append([]byte{}, iter.Key()...), issued); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return err
	}
	if err := putAmount(batch, []byte(totalIssuedKey), new(big.Int).Sub(total, burned)); err != nil {
		return err
	}
	return l.db.Write(batch, nil)
}

// AdjustStablecoins shifts issuance bookkeeping without token movement.
func (l *Ledger) AdjustStablecoins(collateral string, delta *big.Int) error {
	if delta == nil {
		return exchange.ErrInvalidAmount
	}
	key := normaliseSymbol(collateral)
	l.mu.Lock()
	defer l.mu.Unlock()
	collateralIssued, err := l.readAmount(issuedKey(key))
	if err != nil {
		return err
	}
	total, err := l.readAmount([]byte(totalIssuedKey))
	if err != nil {
		return err
	}
	issued := new(big.Int).Add(collateralIssued, delta)
	newTotal := new(big.Int).Add(total, delta)
	if issued.Sign() < 0 || newTotal.Sign() < 0 {
		return fmt.Errorf("exchangedb: issuance must not go negative")
	}
	batch := new(leveldb.Batch)
	if err := putAmount(batch, issuedKey(key), issued); err != nil {
		return err
	}
	if err := putAmount(batch, []byte(totalIssuedKey), newTotal); err != nil {
		return err
	}
	return l.db.Write(batch, nil)
}

// PutReceipt stores a settlement receipt. Identifiers are write-once.
func (l *Ledger) PutReceipt(receipt *exchange.SwapReceipt) error {
	if receipt == nil || strings.TrimSpace(receipt.ID) == "" {
		return fmt.Errorf("exchangedb: receipt id required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := receiptKey(receipt.ID)
	if _, err := l.db.Get(key, nil); err == nil {
		return fmt.Errorf("exchangedb: receipt %s already recorded", receipt.ID)
	} else if err != leveldb.ErrNotFound {
		return err
	}
	stored := storedReceipt{
		ID:        receipt.ID,
		Kind:      receipt.Kind,
		TokenIn:   receipt.TokenIn,
		AmountIn:  amountString(receipt.AmountIn),
		From:      receipt.From,
		To:        receipt.To,
		CreatedAt: sanitizeUnix(receipt.CreatedAt),
	}
	for _, leg := range receipt.Outputs {
		stored.Outputs = append(stored.Outputs, storedReceiptLeg{Token: leg.Token, Amount: amountString(leg.Amount)})
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return l.db.Put(key, encoded, nil)
}

// Receipt fetches a settlement receipt by identifier.
func (l *Ledger) Receipt(id string) (*exchange.SwapReceipt, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	raw, err := l.db.Get(receiptKey(id), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var stored storedReceipt
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, false, fmt.Errorf("exchangedb: corrupted receipt %s: %w", id, err)
	}
	amountIn, err := parseAmount(stored.AmountIn)
	if err != nil {
		return nil, false, fmt.Errorf("exchangedb: corrupted receipt %s: %w", id, err)
	}
	receipt := &exchange.SwapReceipt{
		ID:        stored.ID,
		Kind:      stored.Kind,
		TokenIn:   stored.TokenIn,
		AmountIn:  amountIn,
		From:      stored.From,
		To:        stored.To,
		CreatedAt: int64(stored.CreatedAt),
	}
	for _, leg := range stored.Outputs {
		amount, err := parseAmount(leg.Amount)
		if err != nil {
			return nil, false, fmt.Errorf("exchangedb: corrupted receipt %s: %w", id, err)
		}
		receipt.Outputs = append(receipt.Outputs, exchange.ReceiptLeg{Token: leg.Token, Amount: amount})
	}
	return receipt, true, nil
}

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid integer amount %q", value)
	}
	return amount, nil
}

func sanitizeUnix(value int64) uint64 {
	if value < 0 {
		return 0
	}
	return uint64(value)
}
