package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"swapvault/native/escrow"
)

func newTestRecord(t *testing.T, maker [20]byte, seed uint64) (*escrow.Escrow, escrow.Capability) {
	t.Helper()
	addr, tag := escrow.DeriveRecordAddress(maker, seed)
	rec := &escrow.Escrow{
		Address:       addr,
		Seed:          seed,
		Maker:         maker,
		AssetA:        "USDX",
		AssetB:        "WBTX",
		ReceiveAmount: big.NewInt(100),
		AuthorityTag:  tag,
		CreatedAt:     1_700_000_000,
	}
	cap, err := escrow.SignAsRecord(rec)
	require.NoError(t, err)
	return rec, cap
}

func TestVaultLifecycle(t *testing.T) {
	manager := newTestManager(t)
	maker := addrOf(0x01)
	taker := addrOf(0x02)
	require.NoError(t, manager.Mint(maker, "USDX", big.NewInt(100)))

	rec, cap := newTestRecord(t, maker, 1)
	vault, _ := escrow.DeriveVaultAddress(rec.Address)

	require.NoError(t, manager.VaultCreate(vault, rec.Address, "USDX"))
	require.NoError(t, manager.VaultDeposit(vault, maker, big.NewInt(100), 6))

	held, err := manager.VaultBalance(vault)
	require.NoError(t, err)
	require.Equal(t, int64(100), held.Int64())

	makerBalance, err := manager.BalanceOf(maker, "USDX")
	require.NoError(t, err)
	require.Zero(t, makerBalance.Sign())

	require.NoError(t, manager.VaultWithdraw(vault, taker, big.NewInt(100), 6, cap))
	takerBalance, err := manager.BalanceOf(taker, "USDX")
	require.NoError(t, err)
	require.Equal(t, int64(100), takerBalance.Int64())

	require.NoError(t, manager.VaultClose(vault, cap, maker))
	_, err = manager.VaultBalance(vault)
	require.ErrorIs(t, err, escrow.ErrNotFound)
}

func TestVaultCreateValidation(t *testing.T) {
	manager := newTestManager(t)
	maker := addrOf(0x01)
	rec, _ := newTestRecord(t, maker, 1)
	vault, _ := escrow.DeriveVaultAddress(rec.Address)

	require.ErrorIs(t, manager.VaultCreate(vault, rec.Address, "DOGE"), ErrUnknownToken)
	require.NoError(t, manager.VaultCreate(vault, rec.Address, "USDX"))
	require.Error(t, manager.VaultCreate(vault, rec.Address, "USDX"))
}

func TestVaultWithdrawRequiresAuthority(t *testing.T) {
	manager := newTestManager(t)
	maker := addrOf(0x01)
	require.NoError(t, manager.Mint(maker, "USDX", big.NewInt(100)))

	rec, _ := newTestRecord(t, maker, 1)
	vault, _ := escrow.DeriveVaultAddress(rec.Address)
	require.NoError(t, manager.VaultCreate(vault, rec.Address, "USDX"))
	require.NoError(t, manager.VaultDeposit(vault, maker, big.NewInt(100), 6))

	_, forged := newTestRecord(t, maker, 2)
	err := manager.VaultWithdraw(vault, maker, big.NewInt(100), 6, forged)
	require.ErrorIs(t, err, escrow.ErrAuthorityMismatch)
	require.ErrorIs(t, manager.VaultClose(vault, forged, maker), escrow.ErrAuthorityMismatch)

	held, err := manager.VaultBalance(vault)
	require.NoError(t, err)
	require.Equal(t, int64(100), held.Int64())
}

func TestVaultWithdrawValidation(t *testing.T) {
	manager := newTestManager(t)
	maker := addrOf(0x01)
	require.NoError(t, manager.Mint(maker, "USDX", big.NewInt(100)))

	rec, cap := newTestRecord(t, maker, 1)
	vault, _ := escrow.DeriveVaultAddress(rec.Address)
	require.NoError(t, manager.VaultCreate(vault, rec.Address, "USDX"))
	require.NoError(t, manager.VaultDeposit(vault, maker, big.NewInt(40), 6))

	require.ErrorIs(t, manager.VaultWithdraw(vault, maker, big.NewInt(41), 6, cap), ErrInsufficientBalance)
	require.ErrorIs(t, manager.VaultWithdraw(vault, maker, big.NewInt(10), 2, cap), ErrPrecisionMismatch)
	require.ErrorIs(t, manager.VaultWithdraw(vault, maker, nil, 6, cap), ErrInvalidAmount)
	require.ErrorIs(t, manager.VaultDeposit(vault, maker, big.NewInt(61), 6), ErrInsufficientBalance)
	require.ErrorIs(t, manager.VaultDeposit(vault, maker, big.NewInt(10), 2), ErrPrecisionMismatch)
}

func TestVaultCloseRequiresEmptyBalance(t *testing.T) {
	manager := newTestManager(t)
	maker := addrOf(0x01)
	require.NoError(t, manager.Mint(maker, "USDX", big.NewInt(100)))

	rec, cap := newTestRecord(t, maker, 1)
	vault, _ := escrow.DeriveVaultAddress(rec.Address)
	require.NoError(t, manager.VaultCreate(vault, rec.Address, "USDX"))
	require.NoError(t, manager.VaultDeposit(vault, maker, big.NewInt(100), 6))

	require.Error(t, manager.VaultClose(vault, cap, maker))
	require.NoError(t, manager.VaultWithdraw(vault, maker, big.NewInt(100), 6, cap))
	require.NoError(t, manager.VaultClose(vault, cap, maker))
}

func TestEscrowRecordRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	maker := addrOf(0x01)
	rec, _ := newTestRecord(t, maker, 9)

	_, ok := manager.EscrowGet(rec.Address)
	require.False(t, ok)

	require.NoError(t, manager.EscrowPut(rec))
	loaded, ok := manager.EscrowGet(rec.Address)
	require.True(t, ok)
	require.Equal(t, rec.Address, loaded.Address)
	require.Equal(t, rec.Maker, loaded.Maker)
	require.Equal(t, rec.Seed, loaded.Seed)
	require.Equal(t, rec.AssetA, loaded.AssetA)
	require.Equal(t, rec.AssetB, loaded.AssetB)
	require.Equal(t, rec.AuthorityTag, loaded.AuthorityTag)
	require.Equal(t, rec.CreatedAt, loaded.CreatedAt)
	require.Zero(t, rec.ReceiveAmount.Cmp(loaded.ReceiveAmount))

	require.NoError(t, manager.EscrowDelete(rec.Address))
	_, ok = manager.EscrowGet(rec.Address)
	require.False(t, ok)
}

func TestEscrowPutRejectsInvalidRecords(t *testing.T) {
	manager := newTestManager(t)
	maker := addrOf(0x01)
	rec, _ := newTestRecord(t, maker, 9)

	broken := rec.Clone()
	broken.ReceiveAmount = big.NewInt(0)
	require.ErrorIs(t, manager.EscrowPut(broken), escrow.ErrInvalidAmount)

	broken = rec.Clone()
	broken.AssetB = broken.AssetA
	require.ErrorIs(t, manager.EscrowPut(broken), escrow.ErrInvalidAsset)

	require.Error(t, manager.EscrowPut(nil))
}
