// Package router searches a pool snapshot for the best multi-hop swap path.
package router

import (
	"errors"
	"fmt"

	"github.com/defistate/defistate-amm-go/bitset"
	"github.com/defistate/defistate-amm-go/pair"
	"github.com/defistate/defistate-amm-go/pool"
	"github.com/defistate/defistate-amm-go/state"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultMaxHops bounds the path length when callers have no preference.
const DefaultMaxHops = 3

var (
	// ErrUnknownAsset is returned when an asset has no pool in the snapshot.
	ErrUnknownAsset = errors.New("asset not found in graph")
	// ErrNoRoute is returned when no path yields a positive output.
	ErrNoRoute = errors.New("no route")
)

// Hop is one swap of a path.
type Hop struct {
	PoolID    common.Hash  `json:"poolId"`
	Key       pair.Key     `json:"key"`
	AssetIn   pair.AssetID `json:"assetIn"`
	AssetOut  pair.AssetID `json:"assetOut"`
	AmountIn  uint64       `json:"amountIn"`
	AmountOut uint64       `json:"amountOut"`
}

// Graph is a stateless routing engine over a single snapshot.
type Graph struct {
	assets     []pair.AssetID
	assetIndex map[pair.AssetID]int
	pools      []state.PoolState

	// adjacency maps an asset index to the indices of the pools trading it.
	adjacency [][]int
}

// NewGraph indexes every pool of view.
func NewGraph(view state.View) *Graph {
	g := &Graph{
		assetIndex: make(map[pair.AssetID]int),
		pools:      view.Pools,
	}
	for i, p := range view.Pools {
		low := g.index(p.Key.Low)
		high := g.index(p.Key.High)
		g.adjacency[low] = append(g.adjacency[low], i)
		g.adjacency[high] = append(g.adjacency[high], i)
	}
	return g
}

func (g *Graph) index(asset pair.AssetID) int {
	if i, ok := g.assetIndex[asset]; ok {
		return i
	}
	i := len(g.assets)
	g.assets = append(g.assets, asset)
	g.assetIndex[asset] = i
	g.adjacency = append(g.adjacency, nil)
	return i
}

// findPathState carries the relaxation state of one search.
type findPathState struct {
	costs []uint64        // asset index -> best amount reached
	paths [][]Hop         // asset index -> path reaching costs[i]
	known []bitset.BitSet // asset index -> assets already on paths[i]
}

// FindBestSwapPath returns the path from assetIn to assetOut with the largest
// output for amountIn, using at most maxHops pools.
func (g *Graph) FindBestSwapPath(assetIn, assetOut pair.AssetID, amountIn uint64, maxHops int) ([]Hop, uint64, error) {
	if amountIn == 0 {
		return nil, 0, fmt.Errorf("%w: route amount must be positive", pool.ErrZeroInput)
	}
	if assetIn == assetOut {
		return nil, 0, fmt.Errorf("%w: cannot route %q to itself", pair.ErrInvalidPair, assetIn)
	}
	start, ok := g.assetIndex[assetIn]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownAsset, assetIn)
	}
	end, ok := g.assetIndex[assetOut]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownAsset, assetOut)
	}
	if maxHops < 1 {
		maxHops = DefaultMaxHops
	}

	n := len(g.assets)
	s := &findPathState{
		costs: make([]uint64, n),
		paths: make([][]Hop, n),
		known: make([]bitset.BitSet, n),
	}
	for i := range s.known {
		s.known[i] = bitset.NewBitSet(uint64(n))
	}
	s.costs[start] = amountIn

	for run := 0; run < maxHops; run++ {
		for current := 0; current < n; current++ {
			if s.costs[current] == 0 || current == end || len(s.paths[current]) >= maxHops {
				continue
			}
			g.relax(s, current)
		}
	}

	if s.paths[end] == nil {
		return nil, 0, fmt.Errorf("%w: %s to %s within %d hops", ErrNoRoute, assetIn, assetOut, maxHops)
	}
	return s.paths[end], s.costs[end], nil
}

// relax extends the best path to current by every pool that trades it.
func (g *Graph) relax(s *findPathState, current int) {
	currentAsset := g.assets[current]
	currentCost := s.costs[current]
	currentKnown := s.known[current]
	currentPath := s.paths[current]

	for _, poolIndex := range g.adjacency[current] {
		p := g.pools[poolIndex]

		reserveIn, reserveOut, target := p.ReserveLow, p.ReserveHigh, p.Key.High
		if currentAsset == p.Key.High {
			reserveIn, reserveOut, target = p.ReserveHigh, p.ReserveLow, p.Key.Low
		}
		targetIndex := g.assetIndex[target]
		if currentKnown.IsSet(uint64(targetIndex)) {
			continue
		}

		amountOut, err := pool.GetAmountOut(currentCost, reserveIn, reserveOut, p.FeePoints)
		if err != nil || amountOut <= s.costs[targetIndex] {
			continue
		}

		s.costs[targetIndex] = amountOut
		newPath := make([]Hop, len(currentPath)+1)
		copy(newPath, currentPath)
		newPath[len(currentPath)] = Hop{
			PoolID:    p.ID,
			Key:       p.Key,
			AssetIn:   currentAsset,
			AssetOut:  target,
			AmountIn:  currentCost,
			AmountOut: amountOut,
		}
		s.paths[targetIndex] = newPath
		s.known[targetIndex].SetFrom(currentKnown)
		s.known[targetIndex].Set(uint64(current))
	}
}
