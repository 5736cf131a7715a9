package engine

import (
	"errors"

	"github.com/defistate/defistate-amm-go/pool"
	"github.com/prometheus/client_golang/prometheus"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the dependencies and pool defaults of an Engine.
type Config struct {
	Logger   Logger
	Registry prometheus.Registerer

	// FeePoints is charged by every pool the engine creates, i.e 30 for 0.3%.
	// Zero is a valid, fee-free setting; use pool.DefaultFeePoints for the usual fee.
	FeePoints uint64
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	return pool.ValidateFeePoints(c.FeePoints)
}
