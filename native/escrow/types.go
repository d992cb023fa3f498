package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	// ErrNotFound is returned when no escrow record exists at the supplied
	// address, including records already retired by Fulfill or Cancel.
	ErrNotFound = errors.New("escrow: record not found")
	// ErrInvalidAmount rejects zero or negative deposit/receive amounts.
	ErrInvalidAmount = errors.New("escrow: amount must be positive")
	// ErrInvalidAsset rejects unregistered assets, identical asset pairs and
	// stored-vs-supplied asset mismatches.
	ErrInvalidAsset = errors.New("escrow: invalid asset")
	// ErrInvalidMaker rejects callers or references that do not match the
	// record's stored maker.
	ErrInvalidMaker = errors.New("escrow: maker mismatch")
	// ErrInsufficientFunds rejects transfers exceeding the payer's balance.
	ErrInsufficientFunds = errors.New("escrow: insufficient funds")
	// ErrAuthorityMismatch rejects derivations that do not reproduce the
	// record or vault address. It is the sole gate on vault custody.
	ErrAuthorityMismatch = errors.New("escrow: authority mismatch")
	// ErrDuplicateEscrow rejects a Create against a (maker, seed) pair whose
	// record is still open.
	ErrDuplicateEscrow = errors.New("escrow: record already exists")
)

// Escrow captures the immutable metadata of a single open offer. The record
// address and the vault custody account are both deterministically derived;
// AuthorityTag stores the derivation tag proving the addresses were computed,
// not chosen. Records are never mutated after Create and are deleted by
// exactly one of Fulfill or Cancel.
type Escrow struct {
	Address       [20]byte
	Seed          uint64
	Maker         [20]byte
	AssetA        string
	AssetB        string
	ReceiveAmount *big.Int
	AuthorityTag  uint8
	CreatedAt     int64
}

// Clone returns a deep copy of the escrow so callers can safely hold the
// result without aliasing the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.ReceiveAmount != nil {
		clone.ReceiveAmount = new(big.Int).Set(e.ReceiveAmount)
	} else {
		clone.ReceiveAmount = big.NewInt(0)
	}
	return &clone
}

// NormalizeAsset canonicalises an asset symbol to its uppercase form and
// validates the character set.
func NormalizeAsset(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty symbol", ErrInvalidAsset)
	}
	for _, r := range trimmed {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("%w: symbol %q", ErrInvalidAsset, symbol)
		}
	}
	return trimmed, nil
}

// SanitizeEscrow validates and normalises the supplied record, returning a
// cloned instance with canonical asset casing and a non-nil amount field. The
// function does not mutate the original value.
func SanitizeEscrow(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("escrow: nil record")
	}
	clone := e.Clone()
	assetA, err := NormalizeAsset(clone.AssetA)
	if err != nil {
		return nil, err
	}
	assetB, err := NormalizeAsset(clone.AssetB)
	if err != nil {
		return nil, err
	}
	if assetA == assetB {
		return nil, fmt.Errorf("%w: asset pair must differ", ErrInvalidAsset)
	}
	clone.AssetA = assetA
	clone.AssetB = assetB
	if clone.ReceiveAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return clone, nil
}
