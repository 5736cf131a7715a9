package engine

import (
	"github.com/defistate/defistate-amm-go/pair"
	"github.com/defistate/defistate-amm-go/pool"
	"github.com/ethereum/go-ethereum/common"
)

// EventKind names the operation that produced an Event.
type EventKind string

const (
	PoolCreated      EventKind = "pool_created"
	LiquidityAdded   EventKind = "liquidity_added"
	LiquidityRemoved EventKind = "liquidity_removed"
	Swapped          EventKind = "swapped"
)

// Event describes one applied operation. Amounts flowing into the pool are
// reported as In, amounts paid out of it as Out.
type Event struct {
	Kind     EventKind   `json:"kind"`
	Sequence uint64      `json:"sequence"`
	PoolID   common.Hash `json:"poolId"`
	Key      pair.Key    `json:"key"`

	AmountLowIn   uint64 `json:"amountLowIn,omitempty"`
	AmountHighIn  uint64 `json:"amountHighIn,omitempty"`
	AmountLowOut  uint64 `json:"amountLowOut,omitempty"`
	AmountHighOut uint64 `json:"amountHighOut,omitempty"`
	LPMinted      uint64 `json:"lpMinted,omitempty"`
	LPBurned      uint64 `json:"lpBurned,omitempty"`

	After pool.State `json:"after"`
}

// logArgs flattens the event into slog key/value pairs.
func (ev Event) logArgs() []any {
	return []any{
		"sequence", ev.Sequence,
		"pool_id", ev.PoolID.Hex(),
		"pair", ev.Key.String(),
		"amount_low_in", ev.AmountLowIn,
		"amount_high_in", ev.AmountHighIn,
		"amount_low_out", ev.AmountLowOut,
		"amount_high_out", ev.AmountHighOut,
		"lp_minted", ev.LPMinted,
		"lp_burned", ev.LPBurned,
		"reserve_low", ev.After.ReserveLow,
		"reserve_high", ev.After.ReserveHigh,
		"lp_supply", ev.After.LPSupply,
	}
}
