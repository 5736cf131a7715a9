// Package engine is the public face of the AMM. It resolves pairs to pools,
// applies operations, and reports every successful one through logs,
// metrics and an event feed.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/defistate/defistate-amm-go/pair"
	"github.com/defistate/defistate-amm-go/pool"
	"github.com/defistate/defistate-amm-go/registry"
	"github.com/defistate/defistate-amm-go/router"
	"github.com/defistate/defistate-amm-go/state"
	"github.com/ethereum/go-ethereum/event"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrPoolNotFound is returned for operations on a pair without a pool.
var ErrPoolNotFound = errors.New("pool not found")

// Engine owns the pool registry. All methods are safe for concurrent use;
// operations on distinct pools never block each other.
type Engine struct {
	logger    Logger
	metrics   *Metrics
	pools     *registry.Registry
	feePoints uint64

	// seq counts successfully applied operations. It is advanced inside the
	// pool lock of the operation it numbers.
	seq atomic.Uint64

	subsMu sync.RWMutex
	subs   map[*subscriber]struct{}
	scope  event.SubscriptionScope
}

type subscriber struct {
	ch chan<- Event
}

// New constructs an Engine from a configuration, returning an error if the config is invalid.
func New(cfg *Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Engine{
		logger:    cfg.Logger,
		metrics:   NewMetrics(cfg.Registry),
		pools:     registry.New(),
		feePoints: cfg.FeePoints,
		subs:      make(map[*subscriber]struct{}),
	}, nil
}

// CreatePool creates the pool for {a, b}, seeded with amountA of a and
// amountB of b, and returns its canonical key and the LP amount minted to
// the creator.
func (e *Engine) CreatePool(a, b pair.AssetID, amountA, amountB uint64) (key pair.Key, lpMinted uint64, err error) {
	defer e.instrument(opCreatePool)(&err)

	key, err = pair.Canonicalize(a, b)
	if err != nil {
		return pair.Key{}, 0, err
	}
	amountLow, amountHigh := amountA, amountB
	if key.Flipped(a) {
		amountLow, amountHigh = amountB, amountA
	}

	p, lpMinted, err := pool.New(key, amountLow, amountHigh, e.feePoints)
	if err != nil {
		return pair.Key{}, 0, err
	}
	created, seq, err := p.Activate(e.nextSequence, func() error {
		return e.pools.Register(key, p)
	})
	if err != nil {
		return pair.Key{}, 0, err
	}
	e.metrics.pools.Set(float64(e.pools.Len()))

	e.publish(Event{
		Kind:         PoolCreated,
		Sequence:     seq,
		Key:          key,
		AmountLowIn:  amountLow,
		AmountHighIn: amountHigh,
		LPMinted:     lpMinted,
		After:        created,
	})
	return key, lpMinted, nil
}

// AddLiquidity deposits at the pool ratio and returns the unused input
// together with the LP amount minted.
func (e *Engine) AddLiquidity(key pair.Key, amountLowIn, amountHighIn, minLPOut uint64) (lowReturned, highReturned, lpMinted uint64, err error) {
	defer e.instrument(opAddLiquidity)(&err)

	p, err := e.lookup(key)
	if err != nil {
		return 0, 0, 0, err
	}
	res, err := p.AddLiquidity(amountLowIn, amountHighIn, minLPOut)
	if err != nil {
		return 0, 0, 0, err
	}

	e.publish(Event{
		Kind:         LiquidityAdded,
		Sequence:     res.Sequence,
		Key:          key,
		AmountLowIn:  res.DepositLow,
		AmountHighIn: res.DepositHigh,
		LPMinted:     res.LPMinted,
		After:        res.After,
	})
	return res.ReturnedLow, res.ReturnedHigh, res.LPMinted, nil
}

// RemoveLiquidity burns lpToBurn and pays out the proportional share of both reserves.
func (e *Engine) RemoveLiquidity(key pair.Key, lpToBurn, minLowOut, minHighOut uint64) (lowOut, highOut uint64, err error) {
	defer e.instrument(opRemoveLiquidity)(&err)

	p, err := e.lookup(key)
	if err != nil {
		return 0, 0, err
	}
	res, err := p.RemoveLiquidity(lpToBurn, minLowOut, minHighOut)
	if err != nil {
		return 0, 0, err
	}

	e.publish(Event{
		Kind:          LiquidityRemoved,
		Sequence:      res.Sequence,
		Key:           key,
		AmountLowOut:  res.AmountLow,
		AmountHighOut: res.AmountHigh,
		LPBurned:      res.LPBurned,
		After:         res.After,
	})
	return res.AmountLow, res.AmountHigh, nil
}

// SwapExactLowForHigh sells exactly amountIn of the low asset.
func (e *Engine) SwapExactLowForHigh(key pair.Key, amountIn, minOut uint64) (uint64, error) {
	return e.swap(key, pool.LowToHigh, amountIn, minOut)
}

// SwapExactHighForLow sells exactly amountIn of the high asset.
func (e *Engine) SwapExactHighForLow(key pair.Key, amountIn, minOut uint64) (uint64, error) {
	return e.swap(key, pool.HighToLow, amountIn, minOut)
}

func (e *Engine) swap(key pair.Key, d pool.Direction, amountIn, minOut uint64) (amountOut uint64, err error) {
	defer e.instrument(opSwap)(&err)

	p, err := e.lookup(key)
	if err != nil {
		return 0, err
	}

	var res pool.SwapResult
	if d == pool.LowToHigh {
		res, err = p.SwapExactLowForHigh(amountIn, minOut)
	} else {
		res, err = p.SwapExactHighForLow(amountIn, minOut)
	}
	if err != nil {
		return 0, err
	}

	ev := Event{Kind: Swapped, Sequence: res.Sequence, Key: key, After: res.After}
	if d == pool.LowToHigh {
		ev.AmountLowIn, ev.AmountHighOut = res.AmountIn, res.AmountOut
	} else {
		ev.AmountHighIn, ev.AmountLowOut = res.AmountIn, res.AmountOut
	}
	e.publish(ev)
	return res.AmountOut, nil
}

// Quote prices a swap of amountIn against the current reserves without applying it.
func (e *Engine) Quote(key pair.Key, d pool.Direction, amountIn uint64) (uint64, error) {
	p, err := e.lookup(key)
	if err != nil {
		return 0, err
	}
	return p.Quote(d, amountIn)
}

// QuoteIn returns the smallest input that buys at least amountOut right now.
func (e *Engine) QuoteIn(key pair.Key, d pool.Direction, amountOut uint64) (uint64, error) {
	p, err := e.lookup(key)
	if err != nil {
		return 0, err
	}
	return p.QuoteIn(d, amountOut)
}

// Route finds the path from assetIn to assetOut that yields the most output
// for amountIn over the current snapshot. Nothing is applied.
func (e *Engine) Route(assetIn, assetOut pair.AssetID, amountIn uint64, maxHops int) ([]router.Hop, uint64, error) {
	return router.NewGraph(e.Snapshot()).FindBestSwapPath(assetIn, assetOut, amountIn, maxHops)
}

// PoolBalances returns the reserves and LP supply of key, or zeros when no
// pool exists.
func (e *Engine) PoolBalances(key pair.Key) (reserveLow, reserveHigh, lpSupply uint64) {
	p, ok := e.pools.Lookup(key)
	if !ok {
		return 0, 0, 0
	}
	return p.Balances()
}

// Pool returns the current state of the pool for key.
func (e *Engine) Pool(key pair.Key) (state.PoolState, bool) {
	p, ok := e.pools.Lookup(key)
	if !ok {
		return state.PoolState{}, false
	}
	return poolState(p), true
}

// PairsForAsset lists every pair with a pool that trades asset.
func (e *Engine) PairsForAsset(asset pair.AssetID) []pair.Key {
	return e.pools.PairsForAsset(asset)
}

// Snapshot returns the state of every pool ordered by pair. Each pool is
// read atomically; the view as a whole is not a single point in time when
// operations run concurrently.
func (e *Engine) Snapshot() state.View {
	seq := e.seq.Load()
	pools := e.pools.Pools()

	view := state.View{
		Sequence:  seq,
		Timestamp: uint64(time.Now().UnixNano()),
		Pools:     make([]state.PoolState, 0, len(pools)),
	}
	for _, p := range pools {
		view.Pools = append(view.Pools, poolState(p))
	}
	return view
}

// SubscribeEvents registers ch to receive every applied operation. Delivery
// never blocks: an event that does not fit in ch is dropped and counted, so
// ch should be buffered. Concurrent operations may arrive out of Sequence
// order.
func (e *Engine) SubscribeEvents(ch chan<- Event) event.Subscription {
	s := &subscriber{ch: ch}
	e.subsMu.Lock()
	e.subs[s] = struct{}{}
	e.subsMu.Unlock()

	sub := event.NewSubscription(func(quit <-chan struct{}) error {
		<-quit
		e.subsMu.Lock()
		delete(e.subs, s)
		e.subsMu.Unlock()
		return nil
	})
	if tracked := e.scope.Track(sub); tracked != nil {
		return tracked
	}
	// engine already closed
	sub.Unsubscribe()
	return sub
}

// Close ends all event subscriptions.
func (e *Engine) Close() {
	e.scope.Close()
}

func (e *Engine) lookup(key pair.Key) (*pool.Pool, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	p, ok := e.pools.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, key)
	}
	return p, nil
}

func (e *Engine) nextSequence() uint64 {
	return e.seq.Add(1)
}

// publish logs ev and offers it to every subscriber without waiting. It must
// be called after the pool lock is released.
func (e *Engine) publish(ev Event) {
	ev.PoolID = ev.Key.PoolID()
	e.logger.Info(string(ev.Kind), ev.logArgs()...)

	e.subsMu.RLock()
	defer e.subsMu.RUnlock()
	for s := range e.subs {
		select {
		case s.ch <- ev:
		default:
			e.metrics.dropped.Inc()
			e.logger.Warn("Event subscriber is full, event dropped", "kind", ev.Kind, "sequence", ev.Sequence)
		}
	}
}

// instrument starts the timer for op and returns the func that records its outcome.
func (e *Engine) instrument(op string) func(*error) {
	timer := prometheus.NewTimer(e.metrics.duration.WithLabelValues(op))
	return func(errp *error) {
		timer.ObserveDuration()
		e.metrics.operations.WithLabelValues(op, outcome(*errp)).Inc()
		if *errp != nil {
			e.logger.Debug("operation rejected", "operation", op, "error", *errp)
		}
	}
}

func poolState(p *pool.Pool) state.PoolState {
	key := p.Key()
	return state.PoolState{
		ID:    key.PoolID(),
		Key:   key,
		State: p.State(),
	}
}
