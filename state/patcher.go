package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Patcher builds a new view by applying diff to prev. prev is never mutated;
// the returned view owns its pool slice.
func Patcher(prev View, diff Diff) (View, error) {
	if prev.Sequence != diff.FromSequence {
		return View{}, fmt.Errorf("%w: view=%d, diff from=%d", ErrSequenceMismatch, prev.Sequence, diff.FromSequence)
	}

	pools := make(map[common.Hash]PoolState, len(prev.Pools)+len(diff.Additions))
	for _, p := range prev.Pools {
		pools[p.ID] = p
	}

	for _, id := range diff.Deletions {
		delete(pools, id)
	}
	for _, p := range diff.Updates {
		if _, exists := pools[p.ID]; !exists {
			return View{}, fmt.Errorf("patcher: update for unknown pool %s (%s)", p.ID, p.Key)
		}
		pools[p.ID] = p
	}
	for _, p := range diff.Additions {
		pools[p.ID] = p
	}

	next := make([]PoolState, 0, len(pools))
	for _, p := range pools {
		next = append(next, p)
	}
	sortPools(next)

	return View{
		Sequence:  diff.ToSequence,
		Timestamp: diff.Timestamp,
		Pools:     next,
	}, nil
}
