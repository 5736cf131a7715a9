package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/defistate/defistate-amm-go/state"
	"github.com/defistate/defistate-amm-go/streams/jsonrpc/server"
	"github.com/ethereum/go-ethereum/rpc"
)

// Constants for reconnection logic
const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second

	StateStreamSubscriptionMethod = "subscribeStateStream"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// StatePatcherFunc defines the function signature for a method that safely applies
// a diff to a previous view.
type StatePatcherFunc func(prev state.View, diff state.Diff) (state.View, error)

// Config holds the configuration for the client.
type Config struct {
	URL        string
	Logger     Logger
	BufferSize uint

	// StatePatcher defaults to state.Patcher.
	StatePatcher StatePatcherFunc
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if c.BufferSize < 1 {
		return errors.New("config: BufferSize must be greater than 0")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// SubscriptionEvent is the wrapper object received from the server.
type SubscriptionEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	SentAt  int64           `json:"sentAt"`
}

// -----------------------------------------------------------------------------
// StreamProcessor
// -----------------------------------------------------------------------------

// StreamProcessor parses stream events, keeps the latest view of all pools,
// applies diffs to it and broadcasts every new view. It does no networking.
type StreamProcessor struct {
	lastView     *state.View
	statePatcher StatePatcherFunc
	stateCh      chan *state.View
	logger       Logger
}

// NewStreamProcessor creates a pure logic processor without networking.
func NewStreamProcessor(logger Logger, bufferSize uint, statePatcher StatePatcherFunc) *StreamProcessor {
	if statePatcher == nil {
		statePatcher = state.Patcher
	}
	return &StreamProcessor{
		logger:       logger,
		stateCh:      make(chan *state.View, bufferSize),
		statePatcher: statePatcher,
	}
}

// State returns a read-only channel for receiving new views.
func (sp *StreamProcessor) State() <-chan *state.View {
	return sp.stateCh
}

// ProcessMessage accepts a raw JSON message, processes it, and updates the
// internal view.
func (sp *StreamProcessor) ProcessMessage(rawData json.RawMessage) error {
	processingStart := time.Now()
	var event SubscriptionEvent

	if err := json.Unmarshal(rawData, &event); err != nil {
		return fmt.Errorf("failed to unmarshal subscription event: %w", err)
	}

	switch event.Type {
	case server.EventTypeFull:
		return sp.handleFullState(event, processingStart)
	case server.EventTypeDiff:
		return sp.handleDiff(event, processingStart)
	default:
		return fmt.Errorf("received unknown event type: %s", event.Type)
	}
}

func (sp *StreamProcessor) handleFullState(event SubscriptionEvent, start time.Time) error {
	var view state.View
	if err := json.Unmarshal(event.Payload, &view); err != nil {
		return fmt.Errorf("failed to unmarshal full state payload: %w", err)
	}

	sp.logMetrics(&view, time.Since(start), event.SentAt, server.EventTypeFull)

	sp.lastView = &view
	sp.stateCh <- &view
	return nil
}

func (sp *StreamProcessor) handleDiff(event SubscriptionEvent, start time.Time) error {
	var diff state.Diff
	if err := json.Unmarshal(event.Payload, &diff); err != nil {
		return fmt.Errorf("failed to unmarshal diff payload: %w", err)
	}

	if sp.lastView == nil {
		return fmt.Errorf("received diff before full state; from_sequence: %d, to_sequence: %d", diff.FromSequence, diff.ToSequence)
	}

	if diff.FromSequence != sp.lastView.Sequence {
		sp.logger.Warn(
			"Received out-of-order diff; state may be out of sync. Discarding.",
			"last_known_sequence", sp.lastView.Sequence,
			"diff_from_sequence", diff.FromSequence,
			"diff_to_sequence", diff.ToSequence,
		)
		return nil // Non-fatal, just ignored
	}

	newView, err := sp.statePatcher(*sp.lastView, diff)
	if err != nil {
		return fmt.Errorf("failed to patch state: %w", err)
	}

	sp.logMetrics(&newView, time.Since(start), event.SentAt, server.EventTypeDiff)

	sp.lastView = &newView
	sp.stateCh <- &newView
	return nil
}

func (sp *StreamProcessor) logMetrics(view *state.View, processingDur time.Duration, sentAt int64, eventType string) {
	clientFinishTime := time.Now()
	clientStartTime := clientFinishTime.Add(-processingDur)
	serverFinishTime := time.Unix(0, sentAt)
	transportTime := clientStartTime.Sub(serverFinishTime)
	snapshotAge := clientFinishTime.Sub(time.Unix(0, int64(view.Timestamp)))

	sp.logger.Debug("State Processed",
		"sequence", view.Sequence,
		"type", eventType,
		"pools", len(view.Pools),
		"latency_snapshot_ms", snapshotAge.Milliseconds(),
		"latency_transport_ms", transportTime.Milliseconds(),
		"latency_proc_ms", processingDur.Milliseconds(),
	)
}

// -----------------------------------------------------------------------------
// Client (Networking Wrapper)
// -----------------------------------------------------------------------------

// Client manages the connection and uses StreamProcessor for logic.
type Client struct {
	processor *StreamProcessor
	errCh     chan error
	logger    Logger
}

// NewClient creates a new client with networking enabled.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client := &Client{
		processor: NewStreamProcessor(cfg.Logger, cfg.BufferSize, cfg.StatePatcher),
		errCh:     make(chan error, 1),
		logger:    cfg.Logger,
	}

	go client.run(ctx, cfg.URL)
	return client, nil
}

// State delegates to the processor's state channel.
func (c *Client) State() <-chan *state.View {
	return c.processor.State()
}

// Err returns a read-only channel for receiving fatal (unrecoverable) errors.
func (c *Client) Err() <-chan error {
	return c.errCh
}

// run handles the networking lifecycle and feeds data to the processor.
func (c *Client) run(ctx context.Context, url string) {
	defer close(c.errCh)
	reconnectDelay := initialReconnectDelay

	for {
		if ctx.Err() != nil {
			c.logger.Info("Client context canceled, shutting down.")
			return
		}

		c.logger.Info("Attempting to connect to RPC server", "url", url)
		rpcClient, err := rpc.DialContext(ctx, url)
		if err != nil {
			c.logger.Error("Failed to connect to RPC server, will retry...", "error", err, "delay", reconnectDelay)
			if !sleep(ctx, reconnectDelay) {
				return
			}
			reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
			continue
		}

		c.logger.Info("Successfully connected to RPC server.")
		reconnectDelay = initialReconnectDelay

		err = c.subscribeAndProcess(ctx, rpcClient)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("Context canceled, shutting down.")
				return
			}
			c.logger.Error("Subscription failed, will reconnect...", "error", err, "delay", reconnectDelay)
			if !sleep(ctx, reconnectDelay) {
				return
			}
			reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
		}
	}
}

func (c *Client) subscribeAndProcess(ctx context.Context, rpcClient *rpc.Client) error {
	defer rpcClient.Close()

	rawCh := make(chan json.RawMessage)
	sub, err := rpcClient.Subscribe(ctx, server.RpcNamespace, rawCh, StateStreamSubscriptionMethod)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	c.logger.Info("Successfully subscribed. Waiting for data...")
	for {
		select {
		case rawData := <-rawCh:
			if err := c.processor.ProcessMessage(rawData); err != nil {
				c.logger.Error("Error processing message", "error", err)
			}
		case err := <-sub.Err():
			if err == nil {
				return errors.New("subscription closed by server")
			}
			return err
		case <-ctx.Done():
			c.logger.Info("Context cancelled, stopping subscription.")
			return ctx.Err()
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
