package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/defistate/defistate-amm-go/pool"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddr       = ":8545"
	DefaultMetricsPath      = "/metrics"
	DefaultLogLevel         = "info"
	DefaultStreamBufferSize = 100
)

// AMMConfig is the on-disk configuration of the daemon.
type AMMConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsPath string `yaml:"metrics_path"`
	LogLevel    string `yaml:"log_level"`

	// FeePoints is charged by newly created pools. Nil selects pool.DefaultFeePoints.
	FeePoints *uint64 `yaml:"fee_points"`

	StreamBufferSize uint `yaml:"stream_buffer_size"`
	// CORSOrigins lists the origins allowed to open a websocket. Empty allows
	// localhost only; "*" must be listed explicitly to allow any origin.
	CORSOrigins []string `yaml:"cors_origins"`
}

// LoadConfig reads and validates the YAML file at path.
func LoadConfig(path string) (*AMMConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document, applies defaults and validates the result.
func Parse(data []byte) (*AMMConfig, error) {
	var cfg AMMConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AMMConfig) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.MetricsPath == "" {
		c.MetricsPath = DefaultMetricsPath
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.FeePoints == nil {
		fee := pool.DefaultFeePoints
		c.FeePoints = &fee
	}
	if c.StreamBufferSize == 0 {
		c.StreamBufferSize = DefaultStreamBufferSize
	}
}

func (c *AMMConfig) validate() error {
	if !strings.HasPrefix(c.MetricsPath, "/") {
		return errors.New("config: metrics_path must start with /")
	}
	if c.MetricsPath == "/" || c.MetricsPath == "/ws" {
		return fmt.Errorf("config: metrics_path %s collides with the RPC endpoints", c.MetricsPath)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if err := pool.ValidateFeePoints(*c.FeePoints); err != nil {
		return fmt.Errorf("config: fee_points: %w", err)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level.
func (c *AMMConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}
	return level, nil
}
