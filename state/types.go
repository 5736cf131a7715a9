package state

import (
	"errors"

	"github.com/defistate/defistate-amm-go/pair"
	"github.com/defistate/defistate-amm-go/pool"
	"github.com/ethereum/go-ethereum/common"
)

// ErrSequenceMismatch is returned when a diff does not start at the view it is applied to.
var ErrSequenceMismatch = errors.New("sequence mismatch")

// PoolState is the externally visible state of one pool.
type PoolState struct {
	ID  common.Hash `json:"id"`
	Key pair.Key    `json:"key"`
	pool.State
}

// View is a snapshot of every pool, broadcast to subscribers.
type View struct {
	// Sequence counts the operations the engine had applied when the view was taken.
	Sequence  uint64      `json:"sequence"`
	Timestamp uint64      `json:"timestamp"` // unix nano
	Pools     []PoolState `json:"pools"`
}

// Pool returns the pool with the given key, if present.
func (v *View) Pool(key pair.Key) (PoolState, bool) {
	for _, p := range v.Pools {
		if p.Key == key {
			return p, true
		}
	}
	return PoolState{}, false
}

// Diff summarizes the changes from FromSequence to ToSequence.
type Diff struct {
	Timestamp    uint64        `json:"timestamp"`
	FromSequence uint64        `json:"fromSequence"`
	ToSequence   uint64        `json:"toSequence"`
	Additions    []PoolState   `json:"additions,omitempty"`
	Updates      []PoolState   `json:"updates,omitempty"`
	Deletions    []common.Hash `json:"deletions,omitempty"`
}

// IsEmpty returns true if the diff contains no pool changes.
func (d Diff) IsEmpty() bool {
	return len(d.Additions) == 0 && len(d.Updates) == 0 && len(d.Deletions) == 0
}
