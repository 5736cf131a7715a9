package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/defistate/defistate-amm-go/pair"
	"github.com/defistate/defistate-amm-go/pool"
)

// ErrPoolAlreadyExists is returned when a pair already has a live pool.
var ErrPoolAlreadyExists = errors.New("pool already exists")

// Registry indexes at most one pool per canonical pair. It owns the existence
// check used to reject duplicates, not the pool contents.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	pools map[pair.Key]*pool.Pool

	// assetPairs maps every asset to the pairs it participates in.
	assetPairs map[pair.AssetID]mapset.Set[pair.Key]
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		pools:      make(map[pair.Key]*pool.Pool),
		assetPairs: make(map[pair.AssetID]mapset.Set[pair.Key]),
	}
}

// Register atomically checks that key is free and indexes p under it.
// Concurrent registrations of the same key see exactly one success.
func (r *Registry) Register(key pair.Key, p *pool.Pool) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if p == nil || p.Key() != key {
		return fmt.Errorf("%w: pool does not belong to %s", pair.ErrInvalidPair, key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pools[key]; exists {
		return fmt.Errorf("%w: %s", ErrPoolAlreadyExists, key)
	}

	r.pools[key] = p
	r.index(key.Low, key)
	r.index(key.High, key)
	return nil
}

// index must be called with the write lock held.
func (r *Registry) index(asset pair.AssetID, key pair.Key) {
	set, ok := r.assetPairs[asset]
	if !ok {
		set = mapset.NewThreadUnsafeSet[pair.Key]()
		r.assetPairs[asset] = set
	}
	set.Add(key)
}

// Lookup returns the pool registered under key.
func (r *Registry) Lookup(key pair.Key) (*pool.Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[key]
	return p, ok
}

// Contains reports whether key has a registered pool.
func (r *Registry) Contains(key pair.Key) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pools[key]
	return ok
}

// Len returns the number of registered pools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}

// PairsForAsset returns every pair that includes asset, in canonical order.
func (r *Registry) PairsForAsset(asset pair.AssetID) []pair.Key {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.assetPairs[asset]
	if !ok || set.Cardinality() == 0 {
		return nil
	}
	keys := set.ToSlice()
	sortKeys(keys)
	return keys
}

// Pools returns all registered pools ordered by key.
func (r *Registry) Pools() []*pool.Pool {
	r.mu.RLock()
	keys := make([]pair.Key, 0, len(r.pools))
	for k := range r.pools {
		keys = append(keys, k)
	}
	pools := make([]*pool.Pool, 0, len(keys))
	sortKeys(keys)
	for _, k := range keys {
		pools = append(pools, r.pools[k])
	}
	r.mu.RUnlock()
	return pools
}

func sortKeys(keys []pair.Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
