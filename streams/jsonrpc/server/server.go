// Package server exposes an engine over go-ethereum JSON-RPC, including a
// subscription that streams pool state as a full snapshot followed by diffs.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/defistate/defistate-amm-go/engine"
	"github.com/defistate/defistate-amm-go/fullmath"
	"github.com/defistate/defistate-amm-go/pair"
	"github.com/defistate/defistate-amm-go/pool"
	"github.com/defistate/defistate-amm-go/registry"
	"github.com/defistate/defistate-amm-go/router"
	"github.com/defistate/defistate-amm-go/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	// RpcNamespace is the namespace under which the API is registered.
	RpcNamespace = "amm"

	EventTypeFull = "full"
	EventTypeDiff = "diff"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Engine is the part of *engine.Engine the API serves.
type Engine interface {
	CreatePool(a, b pair.AssetID, amountA, amountB uint64) (pair.Key, uint64, error)
	AddLiquidity(key pair.Key, amountLowIn, amountHighIn, minLPOut uint64) (uint64, uint64, uint64, error)
	RemoveLiquidity(key pair.Key, lpToBurn, minLowOut, minHighOut uint64) (uint64, uint64, error)
	SwapExactLowForHigh(key pair.Key, amountIn, minOut uint64) (uint64, error)
	SwapExactHighForLow(key pair.Key, amountIn, minOut uint64) (uint64, error)
	Quote(key pair.Key, d pool.Direction, amountIn uint64) (uint64, error)
	Route(assetIn, assetOut pair.AssetID, amountIn uint64, maxHops int) ([]router.Hop, uint64, error)
	PoolBalances(key pair.Key) (uint64, uint64, uint64)
	PairsForAsset(asset pair.AssetID) []pair.Key
	Snapshot() state.View
	SubscribeEvents(ch chan<- engine.Event) event.Subscription
}

// Config holds the configuration for the API.
type Config struct {
	Engine     Engine
	Logger     Logger
	BufferSize uint
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.Engine == nil {
		return errors.New("config: Engine is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.BufferSize < 1 {
		return errors.New("config: BufferSize must be greater than 0")
	}
	return nil
}

// SubscriptionEvent is the wrapper object sent to stream subscribers.
type SubscriptionEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
	SentAt  int64  `json:"sentAt"`
}

// API is the receiver registered under RpcNamespace.
type API struct {
	engine     Engine
	logger     Logger
	bufferSize uint
}

// NewAPI creates the API from a configuration.
func NewAPI(cfg Config) (*API, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &API{
		engine:     cfg.Engine,
		logger:     cfg.Logger,
		bufferSize: cfg.BufferSize,
	}, nil
}

// NewServer returns an rpc.Server with api registered under RpcNamespace.
func NewServer(api *API) (*rpc.Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName(RpcNamespace, api); err != nil {
		return nil, fmt.Errorf("failed to register API: %w", err)
	}
	return srv, nil
}

type CreatePoolResult struct {
	PoolID   common.Hash `json:"poolId"`
	Key      pair.Key    `json:"key"`
	LPMinted uint64      `json:"lpMinted"`
}

type AddLiquidityResult struct {
	LowReturned  uint64 `json:"lowReturned"`
	HighReturned uint64 `json:"highReturned"`
	LPMinted     uint64 `json:"lpMinted"`
}

type RemoveLiquidityResult struct {
	LowOut  uint64 `json:"lowOut"`
	HighOut uint64 `json:"highOut"`
}

type SwapResult struct {
	AmountOut uint64 `json:"amountOut"`
}

type RouteResult struct {
	Path      []router.Hop `json:"path"`
	AmountOut uint64       `json:"amountOut"`
}

type BalancesResult struct {
	ReserveLow  uint64 `json:"reserveLow"`
	ReserveHigh uint64 `json:"reserveHigh"`
	LPSupply    uint64 `json:"lpSupply"`
}

// CreatePool serves amm_createPool.
func (api *API) CreatePool(a, b pair.AssetID, amountA, amountB uint64) (*CreatePoolResult, error) {
	key, lp, err := api.engine.CreatePool(a, b, amountA, amountB)
	if err != nil {
		return nil, toRPCError(err)
	}
	return &CreatePoolResult{PoolID: key.PoolID(), Key: key, LPMinted: lp}, nil
}

// AddLiquidity serves amm_addLiquidity.
func (api *API) AddLiquidity(key pair.Key, amountLowIn, amountHighIn, minLPOut uint64) (*AddLiquidityResult, error) {
	lowReturned, highReturned, lp, err := api.engine.AddLiquidity(key, amountLowIn, amountHighIn, minLPOut)
	if err != nil {
		return nil, toRPCError(err)
	}
	return &AddLiquidityResult{LowReturned: lowReturned, HighReturned: highReturned, LPMinted: lp}, nil
}

// RemoveLiquidity serves amm_removeLiquidity.
func (api *API) RemoveLiquidity(key pair.Key, lpToBurn, minLowOut, minHighOut uint64) (*RemoveLiquidityResult, error) {
	lowOut, highOut, err := api.engine.RemoveLiquidity(key, lpToBurn, minLowOut, minHighOut)
	if err != nil {
		return nil, toRPCError(err)
	}
	return &RemoveLiquidityResult{LowOut: lowOut, HighOut: highOut}, nil
}

// SwapExactLowForHigh serves amm_swapExactLowForHigh.
func (api *API) SwapExactLowForHigh(key pair.Key, amountIn, minOut uint64) (*SwapResult, error) {
	out, err := api.engine.SwapExactLowForHigh(key, amountIn, minOut)
	if err != nil {
		return nil, toRPCError(err)
	}
	return &SwapResult{AmountOut: out}, nil
}

// SwapExactHighForLow serves amm_swapExactHighForLow.
func (api *API) SwapExactHighForLow(key pair.Key, amountIn, minOut uint64) (*SwapResult, error) {
	out, err := api.engine.SwapExactHighForLow(key, amountIn, minOut)
	if err != nil {
		return nil, toRPCError(err)
	}
	return &SwapResult{AmountOut: out}, nil
}

// Quote serves amm_quote. direction is "low_to_high" or "high_to_low".
func (api *API) Quote(key pair.Key, direction string, amountIn uint64) (*SwapResult, error) {
	var d pool.Direction
	switch direction {
	case pool.LowToHigh.String():
		d = pool.LowToHigh
	case pool.HighToLow.String():
		d = pool.HighToLow
	default:
		return nil, &rpcError{code: errCodeInvalidParams, msg: fmt.Sprintf("unknown direction %q", direction)}
	}
	out, err := api.engine.Quote(key, d, amountIn)
	if err != nil {
		return nil, toRPCError(err)
	}
	return &SwapResult{AmountOut: out}, nil
}

// Route serves amm_route. maxHops is optional.
func (api *API) Route(assetIn, assetOut pair.AssetID, amountIn uint64, maxHops *int) (*RouteResult, error) {
	hops := router.DefaultMaxHops
	if maxHops != nil {
		hops = *maxHops
	}
	path, out, err := api.engine.Route(assetIn, assetOut, amountIn, hops)
	if err != nil {
		return nil, toRPCError(err)
	}
	return &RouteResult{Path: path, AmountOut: out}, nil
}

// PoolBalances serves amm_poolBalances. Unknown pairs report zeros.
func (api *API) PoolBalances(key pair.Key) BalancesResult {
	low, high, lp := api.engine.PoolBalances(key)
	return BalancesResult{ReserveLow: low, ReserveHigh: high, LPSupply: lp}
}

// Pools serves amm_pools.
func (api *API) Pools() []state.PoolState {
	return api.engine.Snapshot().Pools
}

// PairsForAsset serves amm_pairsForAsset.
func (api *API) PairsForAsset(asset pair.AssetID) []pair.Key {
	return api.engine.PairsForAsset(asset)
}

// SubscribeStateStream serves amm_subscribeStateStream. The subscriber gets
// a "full" event with the current snapshot, then a "diff" event after every
// engine operation that changed it.
func (api *API) SubscribeStateStream(ctx context.Context) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return nil, rpc.ErrNotificationsUnsupported
	}
	rpcSub := notifier.CreateSubscription()

	// Subscribe before the first snapshot so that no operation falls in between.
	events := make(chan engine.Event, api.bufferSize)
	engineSub := api.engine.SubscribeEvents(events)

	// dirty coalesces any number of events into one pending resync, so the
	// engine never waits on a slow websocket.
	dirty := make(chan struct{}, 1)
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-events:
				select {
				case dirty <- struct{}{}:
				default:
				}
			case <-stop:
				return
			}
		}
	}()

	go func() {
		defer close(stop)
		defer engineSub.Unsubscribe()

		last := api.engine.Snapshot()
		if err := api.notify(notifier, rpcSub.ID, EventTypeFull, last); err != nil {
			return
		}
		api.logger.Debug("State stream opened", "subscription", rpcSub.ID, "sequence", last.Sequence)

		for {
			select {
			case <-dirty:
				next := api.engine.Snapshot()
				diff := state.Differ(last, next)
				// a sequence-only diff still advances the mirror
				if diff.IsEmpty() && next.Sequence == last.Sequence {
					continue
				}
				if err := api.notify(notifier, rpcSub.ID, EventTypeDiff, diff); err != nil {
					return
				}
				last = next
			case err := <-rpcSub.Err():
				api.logger.Debug("State stream closed", "subscription", rpcSub.ID, "error", err)
				return
			case err := <-engineSub.Err():
				api.logger.Debug("Engine closed state stream", "subscription", rpcSub.ID, "error", err)
				return
			}
		}
	}()

	return rpcSub, nil
}

func (api *API) notify(notifier *rpc.Notifier, id rpc.ID, eventType string, payload any) error {
	err := notifier.Notify(id, &SubscriptionEvent{
		Type:    eventType,
		Payload: payload,
		SentAt:  time.Now().UnixNano(),
	})
	if err != nil {
		api.logger.Warn("Error notifying subscriber", "subscription", id, "type", eventType, "error", err)
	}
	return err
}

const (
	errCodeInvalidParams = -32602

	errCodeInvalidPair   = -32010
	errCodePoolExists    = -32011
	errCodePoolNotFound  = -32012
	errCodeZeroInput     = -32013
	errCodeSlippage      = -32014
	errCodeNoLiquidity   = -32015
	errCodeArithmetic    = -32016
	errCodeInvalidFee    = -32017
	errCodeNoRoute       = -32018
	errCodeInternalError = -32000
)

// rpcError carries an application error code to the client.
type rpcError struct {
	code int
	msg  string
}

func (e *rpcError) Error() string  { return e.msg }
func (e *rpcError) ErrorCode() int { return e.code }

func toRPCError(err error) error {
	code := errCodeInternalError
	switch {
	case errors.Is(err, pair.ErrInvalidPair):
		code = errCodeInvalidPair
	case errors.Is(err, registry.ErrPoolAlreadyExists):
		code = errCodePoolExists
	case errors.Is(err, engine.ErrPoolNotFound):
		code = errCodePoolNotFound
	case errors.Is(err, pool.ErrZeroInput):
		code = errCodeZeroInput
	case errors.Is(err, pool.ErrExcessiveSlippage):
		code = errCodeSlippage
	case errors.Is(err, pool.ErrNoLiquidity):
		code = errCodeNoLiquidity
	case errors.Is(err, pool.ErrInvalidFee):
		code = errCodeInvalidFee
	case errors.Is(err, router.ErrNoRoute), errors.Is(err, router.ErrUnknownAsset):
		code = errCodeNoRoute
	case errors.Is(err, fullmath.ErrArithmeticOverflow),
		errors.Is(err, fullmath.ErrArithmeticUnderflow),
		errors.Is(err, fullmath.ErrDivisionByZero):
		code = errCodeArithmetic
	}
	return &rpcError{code: code, msg: err.Error()}
}
