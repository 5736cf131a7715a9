package state

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Differ calculates the difference between two views.
// 1. Index both pool lists by pool ID.
// 2. Walk the new index for additions and updates.
// 3. Walk the old index for deletions.
// Every list in the result is ordered by pair key (deletions by ID) so that
// equal inputs always produce identical diffs.
func Differ(old, new View) Diff {
	oldPools := make(map[common.Hash]PoolState, len(old.Pools))
	for _, p := range old.Pools {
		oldPools[p.ID] = p
	}

	newPools := make(map[common.Hash]PoolState, len(new.Pools))
	for _, p := range new.Pools {
		newPools[p.ID] = p
	}

	var (
		additions []PoolState
		updates   []PoolState
		deletions []common.Hash
	)

	for id, newPool := range newPools {
		oldPool, exists := oldPools[id]
		if !exists {
			additions = append(additions, newPool)
			continue
		}
		// PoolState is flat and comparable.
		if oldPool != newPool {
			updates = append(updates, newPool)
		}
	}

	for id := range oldPools {
		if _, exists := newPools[id]; !exists {
			deletions = append(deletions, id)
		}
	}

	sortPools(additions)
	sortPools(updates)
	sort.Slice(deletions, func(i, j int) bool {
		return bytes.Compare(deletions[i][:], deletions[j][:]) < 0
	})

	return Diff{
		Timestamp:    new.Timestamp,
		FromSequence: old.Sequence,
		ToSequence:   new.Sequence,
		Additions:    additions,
		Updates:      updates,
		Deletions:    deletions,
	}
}

func sortPools(pools []PoolState) {
	sort.Slice(pools, func(i, j int) bool { return pools[i].Key.Less(pools[j].Key) })
}
