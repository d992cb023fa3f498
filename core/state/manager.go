package state

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"swapvault/native/escrow"
	"swapvault/storage"
)

var (
	// ErrUnknownToken is returned for transfers referencing an unregistered
	// asset symbol.
	ErrUnknownToken = errors.New("state: unknown token")
	// ErrPrecisionMismatch is returned when a caller-supplied decimal
	// precision does not match the asset's canonical precision.
	ErrPrecisionMismatch = errors.New("state: decimal precision mismatch")
	// ErrInsufficientBalance is returned when a debit exceeds the available
	// balance.
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	// ErrInvalidAmount rejects nil, zero or negative transfer amounts.
	ErrInvalidAmount = errors.New("state: amount must be positive")
)

// Manager provides the ledger surface backing the escrow engine: a token
// registry with canonical decimals, per-address balances and derived vault
// accounts. Keys are keccak256 hashes of prefixed byte strings and values are
// RLP encoded.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided key-value
// store.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// TokenMetadata describes a registered fungible asset.
type TokenMetadata struct {
	Symbol   string
	Name     string
	Decimals uint8
}

var (
	tokenPrefix   = []byte("token:")
	tokenListKey  = ethcrypto.Keccak256([]byte("token-list"))
	balancePrefix = []byte("balance:")
	vaultPrefix   = []byte("vault:")
	escrowPrefix  = []byte("escrow:")
	kvPrefix      = []byte("kv:")
)

func tokenMetadataKey(symbol string) []byte {
	buf := make([]byte, len(tokenPrefix)+len(symbol))
	copy(buf, tokenPrefix)
	copy(buf[len(tokenPrefix):], symbol)
	return ethcrypto.Keccak256(buf)
}

func balanceKey(addr [20]byte, symbol string) []byte {
	buf := make([]byte, len(balancePrefix)+len(symbol)+1+len(addr))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], symbol)
	buf[len(balancePrefix)+len(symbol)] = ':'
	copy(buf[len(balancePrefix)+len(symbol)+1:], addr[:])
	return ethcrypto.Keccak256(buf)
}

func vaultKey(addr [20]byte) []byte {
	buf := make([]byte, len(vaultPrefix)+len(addr))
	copy(buf, vaultPrefix)
	copy(buf[len(vaultPrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

func escrowKey(addr [20]byte) []byte {
	buf := make([]byte, len(escrowPrefix)+len(addr))
	copy(buf, escrowPrefix)
	copy(buf[len(escrowPrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

func kvKey(key string) []byte {
	buf := make([]byte, len(kvPrefix)+len(key))
	copy(buf, kvPrefix)
	copy(buf[len(kvPrefix):], key)
	return ethcrypto.Keccak256(buf)
}

func (m *Manager) get(key []byte) ([]byte, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	return data, err
}

func (m *Manager) loadTokenList() ([]string, error) {
	data, err := m.get(tokenListKey)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []string{}, nil
	}
	var list []string
	if err := rlp.DecodeBytes(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *Manager) writeTokenList(list []string) error {
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return m.db.Put(tokenListKey, encoded)
}

// RegisterToken stores the metadata for a fungible asset and records it in
// the token index.
func (m *Manager) RegisterToken(symbol, name string, decimals uint8) error {
	normalized, err := escrow.NormalizeAsset(symbol)
	if err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("token %s: name must not be empty", normalized)
	}
	if existing, ok := m.Token(normalized); ok && existing != nil {
		return fmt.Errorf("token %s already registered", normalized)
	}
	list, err := m.loadTokenList()
	if err != nil {
		return err
	}
	list = append(list, normalized)
	sort.Strings(list)
	if err := m.writeTokenList(list); err != nil {
		return err
	}
	meta := &TokenMetadata{Symbol: normalized, Name: strings.TrimSpace(name), Decimals: decimals}
	encoded, err := rlp.EncodeToBytes(meta)
	if err != nil {
		return err
	}
	return m.db.Put(tokenMetadataKey(normalized), encoded)
}

// Token returns the metadata for a registered asset.
func (m *Manager) Token(symbol string) (*TokenMetadata, bool) {
	normalized, err := escrow.NormalizeAsset(symbol)
	if err != nil {
		return nil, false
	}
	data, err := m.get(tokenMetadataKey(normalized))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	meta := new(TokenMetadata)
	if err := rlp.DecodeBytes(data, meta); err != nil {
		return nil, false
	}
	return meta, true
}

// TokenDecimals returns the canonical decimal precision for an asset.
func (m *Manager) TokenDecimals(symbol string) (uint8, bool) {
	meta, ok := m.Token(symbol)
	if !ok {
		return 0, false
	}
	return meta.Decimals, true
}

// Tokens lists all registered asset symbols in sorted order.
func (m *Manager) Tokens() ([]string, error) {
	return m.loadTokenList()
}

// BalanceOf returns the balance held by addr in the given asset. Unknown
// accounts hold zero.
func (m *Manager) BalanceOf(addr [20]byte, symbol string) (*big.Int, error) {
	normalized, err := escrow.NormalizeAsset(symbol)
	if err != nil {
		return nil, err
	}
	return m.readBalance(balanceKey(addr, normalized))
}

func (m *Manager) readBalance(key []byte) (*big.Int, error) {
	data, err := m.get(key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	value := new(big.Int)
	if err := rlp.DecodeBytes(data, value); err != nil {
		return nil, err
	}
	return value, nil
}

func (m *Manager) writeBalance(key []byte, value *big.Int) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

// Mint credits newly issued units of an asset to an address. Used for
// genesis allocations.
func (m *Manager) Mint(addr [20]byte, symbol string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	normalized, err := escrow.NormalizeAsset(symbol)
	if err != nil {
		return err
	}
	if _, ok := m.Token(normalized); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, normalized)
	}
	key := balanceKey(addr, normalized)
	balance, err := m.readBalance(key)
	if err != nil {
		return err
	}
	return m.writeBalance(key, new(big.Int).Add(balance, amount))
}

// TransferChecked moves amount of the asset from one address to another,
// rejecting the transfer when the caller-supplied decimals disagree with the
// asset's canonical precision.
func (m *Manager) TransferChecked(from, to [20]byte, symbol string, amount *big.Int, decimals uint8) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	normalized, err := escrow.NormalizeAsset(symbol)
	if err != nil {
		return err
	}
	meta, ok := m.Token(normalized)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, normalized)
	}
	if meta.Decimals != decimals {
		return fmt.Errorf("%w: %s has %d decimals (got %d)", ErrPrecisionMismatch, normalized, meta.Decimals, decimals)
	}
	fromKey := balanceKey(from, normalized)
	fromBalance, err := m.readBalance(fromKey)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s", ErrInsufficientBalance, normalized)
	}
	// A self-transfer is balance neutral once the checks pass.
	if from == to {
		return nil
	}
	toKey := balanceKey(to, normalized)
	toBalance, err := m.readBalance(toKey)
	if err != nil {
		return err
	}
	if err := m.writeBalance(fromKey, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	if err := m.writeBalance(toKey, new(big.Int).Add(toBalance, amount)); err != nil {
		// Restore the debit so a storage failure cannot destroy funds.
		if restoreErr := m.writeBalance(fromKey, fromBalance); restoreErr != nil {
			return errors.Join(err, fmt.Errorf("state: rollback sender balance: %w", restoreErr))
		}
		return err
	}
	return nil
}

// SetKV stores an arbitrary service-level flag.
func (m *Manager) SetKV(key string, value []byte) error {
	return m.db.Put(kvKey(key), value)
}

// GetKV reads a service-level flag, returning nil when absent.
func (m *Manager) GetKV(key string) ([]byte, error) {
	return m.get(kvKey(key))
}
