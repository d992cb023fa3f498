package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"swapvault/core/events"
	"swapvault/core/types"
)

var errNilState = errors.New("escrow engine: state not configured")

// engineState is the ledger surface the engine depends on. The vault methods
// guard custody with derivation capabilities; plain transfers are authorized
// upstream by the caller's own signature.
type engineState interface {
	EscrowPut(*Escrow) error
	EscrowGet(addr [20]byte) (*Escrow, bool)
	EscrowDelete(addr [20]byte) error
	TokenDecimals(symbol string) (uint8, bool)
	BalanceOf(addr [20]byte, symbol string) (*big.Int, error)
	TransferChecked(from, to [20]byte, symbol string, amount *big.Int, decimals uint8) error
	VaultCreate(vault, authority [20]byte, symbol string) error
	VaultBalance(vault [20]byte) (*big.Int, error)
	VaultDeposit(vault, from [20]byte, amount *big.Int, decimals uint8) error
	VaultWithdraw(vault, to [20]byte, amount *big.Int, decimals uint8, cap Capability) error
	VaultClose(vault [20]byte, cap Capability, reserveDest [20]byte) error
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine wires the swap escrow transitions with external state and event
// emitters. Each exported method is a complete transition: every precondition
// is checked before the first ledger mutation, and a storage failure after
// funds have moved triggers compensating writes, so a failed call leaves the
// record and all balances untouched.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates an escrow engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (e *Engine) assetDecimals(symbol string) (uint8, error) {
	decimals, ok := e.state.TokenDecimals(symbol)
	if !ok {
		return 0, fmt.Errorf("%w: asset %s not registered", ErrInvalidAsset, symbol)
	}
	return decimals, nil
}

// Create opens a new escrow offer: it derives the record and vault addresses
// from (maker, seed), moves the deposit of assetA into the vault under the
// record's delegated authority and persists the immutable record.
func (e *Engine) Create(maker [20]byte, seed uint64, assetA, assetB string, deposit, receive *big.Int) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	normalizedA, err := NormalizeAsset(assetA)
	if err != nil {
		return nil, err
	}
	normalizedB, err := NormalizeAsset(assetB)
	if err != nil {
		return nil, err
	}
	if normalizedA == normalizedB {
		return nil, fmt.Errorf("%w: asset pair must differ", ErrInvalidAsset)
	}
	depositAmt := cloneBigInt(deposit)
	receiveAmt := cloneBigInt(receive)
	if depositAmt.Sign() <= 0 || receiveAmt.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	decimalsA, err := e.assetDecimals(normalizedA)
	if err != nil {
		return nil, err
	}
	if _, err := e.assetDecimals(normalizedB); err != nil {
		return nil, err
	}
	recordAddr, tag := DeriveRecordAddress(maker, seed)
	if _, ok := e.state.EscrowGet(recordAddr); ok {
		return nil, ErrDuplicateEscrow
	}
	available, err := e.state.BalanceOf(maker, normalizedA)
	if err != nil {
		return nil, err
	}
	if available.Cmp(depositAmt) < 0 {
		return nil, ErrInsufficientFunds
	}
	rec := &Escrow{
		Address:       recordAddr,
		Seed:          seed,
		Maker:         maker,
		AssetA:        normalizedA,
		AssetB:        normalizedB,
		ReceiveAmount: receiveAmt,
		AuthorityTag:  tag,
		CreatedAt:     e.now(),
	}
	cap, err := SignAsRecord(rec)
	if err != nil {
		return nil, err
	}
	vaultAddr, _ := DeriveVaultAddress(recordAddr)
	if err := e.state.VaultCreate(vaultAddr, recordAddr, normalizedA); err != nil {
		return nil, err
	}
	if err := e.state.VaultDeposit(vaultAddr, maker, depositAmt, decimalsA); err != nil {
		if closeErr := e.state.VaultClose(vaultAddr, cap, maker); closeErr != nil {
			return nil, errors.Join(err, fmt.Errorf("escrow: discard empty vault: %w", closeErr))
		}
		return nil, err
	}
	if err := e.state.EscrowPut(rec); err != nil {
		// Refund the deposit so a storage failure cannot strand it.
		restoreErr := e.state.VaultWithdraw(vaultAddr, maker, depositAmt, decimalsA, cap)
		if restoreErr == nil {
			restoreErr = e.state.VaultClose(vaultAddr, cap, maker)
		}
		if restoreErr != nil {
			return nil, errors.Join(err, fmt.Errorf("escrow: refund deposit: %w", restoreErr))
		}
		return nil, err
	}
	e.emit(NewCreatedEvent(rec, depositAmt))
	return rec.Clone(), nil
}

// Fulfill settles the offer: the taker pays the recorded receive amount of
// assetB to the maker, then the entire vault balance of assetA is released to
// the taker under the record's derived capability and the record and vault
// are retired. The assetB leg always commits before any vault funds move.
func (e *Engine) Fulfill(record [20]byte, taker, maker [20]byte, assetA, assetB string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	rec, ok := e.state.EscrowGet(record)
	if !ok {
		return ErrNotFound
	}
	if rec.Maker != maker {
		return ErrInvalidMaker
	}
	if err := matchStoredAssets(rec, assetA, assetB); err != nil {
		return err
	}
	cap, err := SignAsRecord(rec)
	if err != nil {
		return err
	}
	decimalsA, err := e.assetDecimals(rec.AssetA)
	if err != nil {
		return err
	}
	decimalsB, err := e.assetDecimals(rec.AssetB)
	if err != nil {
		return err
	}
	receiveAmt := cloneBigInt(rec.ReceiveAmount)
	takerFunds, err := e.state.BalanceOf(taker, rec.AssetB)
	if err != nil {
		return err
	}
	if takerFunds.Cmp(receiveAmt) < 0 {
		return ErrInsufficientFunds
	}
	vaultAddr, _ := DeriveVaultAddress(rec.Address)
	held, err := e.state.VaultBalance(vaultAddr)
	if err != nil {
		return err
	}
	if err := e.state.TransferChecked(taker, rec.Maker, rec.AssetB, receiveAmt, decimalsB); err != nil {
		return err
	}
	if err := e.state.VaultWithdraw(vaultAddr, taker, held, decimalsA, cap); err != nil {
		// Reverse the settled payment so a storage failure cannot strand it.
		if restoreErr := e.state.TransferChecked(rec.Maker, taker, rec.AssetB, receiveAmt, decimalsB); restoreErr != nil {
			return errors.Join(err, fmt.Errorf("escrow: reverse payment: %w", restoreErr))
		}
		return err
	}
	if err := e.state.VaultClose(vaultAddr, cap, rec.Maker); err != nil {
		restoreErr := e.state.VaultDeposit(vaultAddr, taker, held, decimalsA)
		if restoreErr == nil {
			restoreErr = e.state.TransferChecked(rec.Maker, taker, rec.AssetB, receiveAmt, decimalsB)
		}
		if restoreErr != nil {
			return errors.Join(err, fmt.Errorf("escrow: restore vault: %w", restoreErr))
		}
		return err
	}
	if err := e.state.EscrowDelete(rec.Address); err != nil {
		restoreErr := e.state.VaultCreate(vaultAddr, rec.Address, rec.AssetA)
		if restoreErr == nil {
			restoreErr = e.state.VaultDeposit(vaultAddr, taker, held, decimalsA)
		}
		if restoreErr == nil {
			restoreErr = e.state.TransferChecked(rec.Maker, taker, rec.AssetB, receiveAmt, decimalsB)
		}
		if restoreErr != nil {
			return errors.Join(err, fmt.Errorf("escrow: restore open offer: %w", restoreErr))
		}
		return err
	}
	e.emit(NewFulfilledEvent(rec, taker, held))
	return nil
}

// Cancel returns the vaulted deposit to the maker and retires the record.
// Only the recorded maker may cancel.
func (e *Engine) Cancel(record [20]byte, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	rec, ok := e.state.EscrowGet(record)
	if !ok {
		return ErrNotFound
	}
	if rec.Maker != caller {
		return ErrInvalidMaker
	}
	cap, err := SignAsRecord(rec)
	if err != nil {
		return err
	}
	decimalsA, err := e.assetDecimals(rec.AssetA)
	if err != nil {
		return err
	}
	vaultAddr, _ := DeriveVaultAddress(rec.Address)
	held, err := e.state.VaultBalance(vaultAddr)
	if err != nil {
		return err
	}
	if err := e.state.VaultWithdraw(vaultAddr, rec.Maker, held, decimalsA, cap); err != nil {
		return err
	}
	if err := e.state.VaultClose(vaultAddr, cap, rec.Maker); err != nil {
		if restoreErr := e.state.VaultDeposit(vaultAddr, rec.Maker, held, decimalsA); restoreErr != nil {
			return errors.Join(err, fmt.Errorf("escrow: restore vault: %w", restoreErr))
		}
		return err
	}
	if err := e.state.EscrowDelete(rec.Address); err != nil {
		restoreErr := e.state.VaultCreate(vaultAddr, rec.Address, rec.AssetA)
		if restoreErr == nil {
			restoreErr = e.state.VaultDeposit(vaultAddr, rec.Maker, held, decimalsA)
		}
		if restoreErr != nil {
			return errors.Join(err, fmt.Errorf("escrow: restore open offer: %w", restoreErr))
		}
		return err
	}
	e.emit(NewCancelledEvent(rec, held))
	return nil
}

// Get returns a read-only copy of the record at the supplied address.
func (e *Engine) Get(record [20]byte) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	rec, ok := e.state.EscrowGet(record)
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// matchStoredAssets rejects supplied asset references that differ from the
// record's stored pair. Empty references skip the check.
func matchStoredAssets(rec *Escrow, assetA, assetB string) error {
	if assetA != "" {
		normalized, err := NormalizeAsset(assetA)
		if err != nil {
			return err
		}
		if normalized != rec.AssetA {
			return fmt.Errorf("%w: asset A %s does not match record", ErrInvalidAsset, normalized)
		}
	}
	if assetB != "" {
		normalized, err := NormalizeAsset(assetB)
		if err != nil {
			return err
		}
		if normalized != rec.AssetB {
			return fmt.Errorf("%w: asset B %s does not match record", ErrInvalidAsset, normalized)
		}
	}
	return nil
}
