package core

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"swapvault/core/events"
	"swapvault/core/state"
	"swapvault/native/escrow"
	"swapvault/observability"
	"swapvault/storage"
)

// ErrEscrowNotFound mirrors the engine sentinel for callers that only import
// the core package.
var ErrEscrowNotFound = escrow.ErrNotFound

const genesisAppliedKey = "genesis/applied"

// Node owns the ledger state and dispatches escrow transitions one at a
// time. The state mutex provides the serializable commit-or-abort semantics
// the escrow state machine relies on: concurrent Fulfill/Cancel requests
// against the same record are ordered here, and the loser observes a clean
// ErrEscrowNotFound with zero side effects.
type Node struct {
	db     storage.Database
	state  *state.Manager
	engine *escrow.Engine

	stateMu sync.Mutex
}

// NewNode constructs a node over the supplied storage backend.
func NewNode(db storage.Database) *Node {
	manager := state.NewManager(db)
	engine := escrow.NewEngine()
	engine.SetState(manager)
	return &Node{
		db:     db,
		state:  manager,
		engine: engine,
	}
}

// SetEmitter wires an event emitter into the escrow engine.
func (n *Node) SetEmitter(emitter events.Emitter) {
	n.engine.SetEmitter(emitter)
}

// SetNowFunc overrides the engine time source, primarily for tests.
func (n *Node) SetNowFunc(now func() int64) {
	n.engine.SetNowFunc(now)
}

func (n *Node) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.Escrow().Observe(op, outcome, time.Since(start).Seconds())
}

// RegisterToken registers a fungible asset with its canonical decimals.
func (n *Node) RegisterToken(symbol, name string, decimals uint8) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.RegisterToken(symbol, name, decimals)
}

// Mint credits an address with freshly issued units. Restricted to genesis
// application; the RPC surface never exposes it.
func (n *Node) Mint(addr [20]byte, symbol string, amount *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.Mint(addr, symbol, amount)
}

// Balance returns the holder's balance in the given asset.
func (n *Node) Balance(addr [20]byte, symbol string) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.BalanceOf(addr, symbol)
}

// Tokens lists the registered asset symbols.
func (n *Node) Tokens() ([]string, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.Tokens()
}

// GenesisApplied reports whether the genesis allocation already ran against
// this data directory.
func (n *Node) GenesisApplied() (bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	data, err := n.state.GetKV(genesisAppliedKey)
	if err != nil {
		return false, err
	}
	return len(data) > 0, nil
}

// MarkGenesisApplied records that genesis allocation ran.
func (n *Node) MarkGenesisApplied() error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.SetKV(genesisAppliedKey, []byte{1})
}

// EscrowCreate opens a new offer for the maker.
func (n *Node) EscrowCreate(maker [20]byte, seed uint64, assetA, assetB string, deposit, receive *big.Int) (rec *escrow.Escrow, err error) {
	defer func(start time.Time) { n.observe("create", start, err) }(time.Now())
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.Create(maker, seed, assetA, assetB, deposit, receive)
}

// EscrowFulfill settles the offer at the supplied record address.
func (n *Node) EscrowFulfill(record [20]byte, taker, maker [20]byte, assetA, assetB string) (err error) {
	defer func(start time.Time) { n.observe("fulfill", start, err) }(time.Now())
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.Fulfill(record, taker, maker, assetA, assetB)
}

// EscrowCancel refunds the offer to its maker.
func (n *Node) EscrowCancel(record [20]byte, caller [20]byte) (err error) {
	defer func(start time.Time) { n.observe("cancel", start, err) }(time.Now())
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.Cancel(record, caller)
}

// EscrowGet resolves the record stored at the supplied derived address.
func (n *Node) EscrowGet(record [20]byte) (*escrow.Escrow, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	rec, err := n.engine.Get(record)
	if errors.Is(err, escrow.ErrNotFound) {
		return nil, ErrEscrowNotFound
	}
	return rec, err
}
