package escrow

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	recordNamespace = "escrow"
	vaultNamespace  = "vault"
)

// deriveAddress computes a deterministic 20-byte address and its authority
// tag from a namespace and ordered components. The tag is drawn from the
// pre-image hash and folded back into the final hash, so a record presenting
// the wrong tag cannot reproduce its own address.
func deriveAddress(namespace string, components ...[]byte) ([20]byte, uint8) {
	pre := []byte(namespace)
	for _, c := range components {
		pre = append(pre, c...)
	}
	tagHash := ethcrypto.Keccak256(pre)
	tag := tagHash[len(tagHash)-1]
	sum := ethcrypto.Keccak256(append(pre, tag))
	var addr [20]byte
	copy(addr[:], sum[12:])
	return addr, tag
}

func seedBytes(seed uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, seed)
	return buf
}

// DeriveRecordAddress computes the escrow record address and authority tag
// for a (maker, seed) pair. The function is pure: identical inputs always
// yield the identical address and tag.
func DeriveRecordAddress(maker [20]byte, seed uint64) ([20]byte, uint8) {
	return deriveAddress(recordNamespace, maker[:], seedBytes(seed))
}

// DeriveVaultAddress computes the custody vault address bound to a record.
func DeriveVaultAddress(record [20]byte) ([20]byte, uint8) {
	return deriveAddress(vaultNamespace, record[:])
}

// Capability authorizes outgoing transfers and closure on behalf of a derived
// record identity. The address field is unexported so a capability can only
// be minted by reproducing a record's exact derivation, never constructed
// from an address alone.
type Capability struct {
	addr [20]byte
}

// Authorizes reports whether the capability speaks for the given authority
// address.
func (c Capability) Authorizes(authority [20]byte) bool {
	return c.addr == authority
}

// VerifyRecordDerivation recomputes the record address from the stored maker,
// seed and tag and rejects any mismatch.
func VerifyRecordDerivation(e *Escrow) error {
	if e == nil {
		return ErrAuthorityMismatch
	}
	addr, tag := DeriveRecordAddress(e.Maker, e.Seed)
	if tag != e.AuthorityTag || addr != e.Address {
		return ErrAuthorityMismatch
	}
	return nil
}

// SignAsRecord mints the capability that moves funds out of the record's
// vault. It succeeds only when the record's stored fields reproduce its own
// derivation, which limits minting to code holding the persisted record.
func SignAsRecord(e *Escrow) (Capability, error) {
	if err := VerifyRecordDerivation(e); err != nil {
		return Capability{}, err
	}
	return Capability{addr: e.Address}, nil
}
