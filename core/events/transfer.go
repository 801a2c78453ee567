package events

import (
	"strconv"

	"rfqsettle/core/types"
)

const (
	// TypeTransfer is emitted for every ledger balance movement.
	TypeTransfer = "ledger.transfer"
)

// Transfer describes a single movement between two ledger accounts.
type Transfer struct {
	Asset     types.Address
	From      types.Address
	To        types.Address
	Authority types.Address
	Amount    uint64
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{
		"asset":     e.Asset.Hex(),
		"from":      e.From.Hex(),
		"to":        e.To.Hex(),
		"authority": e.Authority.Hex(),
		"amount":    strconv.FormatUint(e.Amount, 10),
	}
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}
