package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"swapvault/native/escrow"
)

// storedEscrow is the RLP shadow of an escrow record. Timestamps ride as
// big.Ints so the encoding stays canonical for negative-free integers.
type storedEscrow struct {
	Address       [20]byte
	Seed          uint64
	Maker         [20]byte
	AssetA        string
	AssetB        string
	ReceiveAmount *big.Int
	AuthorityTag  uint8
	CreatedAt     *big.Int
}

func newStoredEscrow(e *escrow.Escrow) *storedEscrow {
	if e == nil {
		return nil
	}
	receive := big.NewInt(0)
	if e.ReceiveAmount != nil {
		receive = new(big.Int).Set(e.ReceiveAmount)
	}
	return &storedEscrow{
		Address:       e.Address,
		Seed:          e.Seed,
		Maker:         e.Maker,
		AssetA:        e.AssetA,
		AssetB:        e.AssetB,
		ReceiveAmount: receive,
		AuthorityTag:  e.AuthorityTag,
		CreatedAt:     big.NewInt(e.CreatedAt),
	}
}

func (s *storedEscrow) toEscrow() (*escrow.Escrow, error) {
	if s == nil {
		return nil, fmt.Errorf("state: nil escrow storage record")
	}
	out := &escrow.Escrow{
		Address:       s.Address,
		Seed:          s.Seed,
		Maker:         s.Maker,
		AssetA:        s.AssetA,
		AssetB:        s.AssetB,
		ReceiveAmount: big.NewInt(0),
		AuthorityTag:  s.AuthorityTag,
	}
	if s.ReceiveAmount != nil {
		out.ReceiveAmount = new(big.Int).Set(s.ReceiveAmount)
	}
	if s.CreatedAt != nil {
		out.CreatedAt = s.CreatedAt.Int64()
	}
	return escrow.SanitizeEscrow(out)
}

// EscrowPut persists a sanitized copy of the record at its derived address.
func (m *Manager) EscrowPut(e *escrow.Escrow) error {
	sanitized, err := escrow.SanitizeEscrow(e)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(newStoredEscrow(sanitized))
	if err != nil {
		return err
	}
	return m.db.Put(escrowKey(sanitized.Address), encoded)
}

// EscrowGet loads the record stored at the supplied address.
func (m *Manager) EscrowGet(addr [20]byte) (*escrow.Escrow, bool) {
	data, err := m.get(escrowKey(addr))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	stored := new(storedEscrow)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	record, err := stored.toEscrow()
	if err != nil {
		return nil, false
	}
	return record, true
}

// EscrowDelete retires the record, freeing the (maker, seed) derivation for
// reuse.
func (m *Manager) EscrowDelete(addr [20]byte) error {
	return m.db.Delete(escrowKey(addr))
}
