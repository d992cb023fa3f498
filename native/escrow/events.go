package escrow

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"swapvault/core/types"
)

const (
	EventTypeEscrowCreated   = "escrow.created"
	EventTypeEscrowFulfilled = "escrow.fulfilled"
	EventTypeEscrowCancelled = "escrow.cancelled"
)

// NewCreatedEvent returns the canonical event payload for a newly opened
// escrow offer.
func NewCreatedEvent(e *Escrow, deposit *big.Int) *types.Event {
	evt := newEscrowEvent(EventTypeEscrowCreated, e)
	if deposit != nil {
		evt.Attributes["deposit"] = deposit.String()
	}
	return evt
}

// NewFulfilledEvent returns the canonical event payload emitted when a taker
// settles the offer.
func NewFulfilledEvent(e *Escrow, taker [20]byte, released *big.Int) *types.Event {
	evt := newEscrowEvent(EventTypeEscrowFulfilled, e)
	evt.Attributes["taker"] = hex.EncodeToString(taker[:])
	if released != nil {
		evt.Attributes["released"] = released.String()
	}
	return evt
}

// NewCancelledEvent returns the canonical event payload emitted when the
// maker reclaims the deposit.
func NewCancelledEvent(e *Escrow, refunded *big.Int) *types.Event {
	evt := newEscrowEvent(EventTypeEscrowCancelled, e)
	if refunded != nil {
		evt.Attributes["refunded"] = refunded.String()
	}
	return evt
}

func newEscrowEvent(eventType string, e *Escrow) *types.Event {
	attrs := make(map[string]string)
	if e == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	vault, _ := DeriveVaultAddress(e.Address)
	attrs["address"] = hex.EncodeToString(e.Address[:])
	attrs["maker"] = hex.EncodeToString(e.Maker[:])
	attrs["seed"] = strconv.FormatUint(e.Seed, 10)
	attrs["assetA"] = e.AssetA
	attrs["assetB"] = e.AssetB
	if e.ReceiveAmount != nil {
		attrs["receiveAmount"] = e.ReceiveAmount.String()
	}
	attrs["vault"] = hex.EncodeToString(vault[:])
	attrs["createdAt"] = strconv.FormatInt(e.CreatedAt, 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}
