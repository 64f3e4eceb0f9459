package signway

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ServerConfig holds the process-wide, loaded-once configuration for a
// Signway gateway instance (spec §6 "Configuration"). Registry and
// metrics/logging sinks are injected rather than constructed here,
// since their concrete backends are external collaborators (spec §1).
type ServerConfig struct {
	// BindAddr is the address the admission HTTP server listens on.
	BindAddr string

	// WorkerCount holds the configured worker-pool size; 0 means "let
	// the runtime decide" (GOMAXPROCS). Nothing in this module applies
	// it: the admission server runs on net/http's own goroutines.
	WorkerCount int

	// ConnectTimeout bounds establishing the outbound connection to an
	// upstream.
	ConnectTimeout time.Duration

	// IdleReadTimeout bounds how long the Forwarder waits between
	// successive reads of the upstream response body before treating
	// the upstream as unresponsive.
	IdleReadTimeout time.Duration

	// ClockSkew is the maximum tolerance applied when checking
	// expiry — a signed URL is treated as valid until
	// Date+Expires+ClockSkew. Zero means no tolerance.
	ClockSkew time.Duration

	// HostShape selects the deployment shape (spec §4.3/§9).
	HostShape HostShape

	// Logger receives structured log lines for verification failures
	// and forwarding errors. Defaults to logrus.StandardLogger().
	Logger *logrus.Logger
}

// ServerOption is a WithXxx(...) functional option for configuring a
// ServerConfig.
type ServerOption func(*ServerConfig) error

// DefaultServerConfig returns the default configuration (spec §6
// defaults: 5s connect timeout, 30s idle-read timeout, no clock skew
// tolerance).
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		BindAddr:        ":8080",
		ConnectTimeout:  5 * time.Second,
		IdleReadTimeout: 30 * time.Second,
		ClockSkew:       0,
		HostShape:       HostShapeInParameter,
		Logger:          logrus.StandardLogger(),
	}
}

// WithBindAddr sets the admission server's listen address.
func WithBindAddr(addr string) ServerOption {
	return func(c *ServerConfig) error {
		if addr == "" {
			return fmt.Errorf("bind address is required")
		}
		c.BindAddr = addr
		return nil
	}
}

// WithWorkerCount sets the worker pool size. Must be non-negative.
func WithWorkerCount(n int) ServerOption {
	return func(c *ServerConfig) error {
		if n < 0 {
			return fmt.Errorf("worker count must be non-negative, got %d", n)
		}
		c.WorkerCount = n
		return nil
	}
}

// WithConnectTimeout sets the outbound connect timeout. Must be
// positive.
func WithConnectTimeout(d time.Duration) ServerOption {
	return func(c *ServerConfig) error {
		if d <= 0 {
			return fmt.Errorf("connect timeout must be positive, got %v", d)
		}
		c.ConnectTimeout = d
		return nil
	}
}

// WithIdleReadTimeout sets the outbound idle-read timeout. Must be
// positive.
func WithIdleReadTimeout(d time.Duration) ServerOption {
	return func(c *ServerConfig) error {
		if d <= 0 {
			return fmt.Errorf("idle read timeout must be positive, got %v", d)
		}
		c.IdleReadTimeout = d
		return nil
	}
}

// WithClockSkew sets the clock-skew tolerance applied to expiry checks.
// Must be non-negative.
func WithClockSkew(d time.Duration) ServerOption {
	return func(c *ServerConfig) error {
		if d < 0 {
			return fmt.Errorf("clock skew must be non-negative, got %v", d)
		}
		c.ClockSkew = d
		return nil
	}
}

// WithHostShape selects the deployment shape.
func WithHostShape(shape HostShape) ServerOption {
	return func(c *ServerConfig) error {
		c.HostShape = shape
		return nil
	}
}

// WithLogger sets the logger used for structured log lines. Must not be
// nil.
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(c *ServerConfig) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.Logger = logger
		return nil
	}
}

// NewServerConfig builds a ServerConfig from DefaultServerConfig plus
// the given options, applied in order.
func NewServerConfig(opts ...ServerOption) (*ServerConfig, error) {
	cfg := DefaultServerConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *ServerConfig) Validate() error {
	if c.BindAddr == "" {
		return fmt.Errorf("bind address cannot be empty")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}
	if c.IdleReadTimeout <= 0 {
		return fmt.Errorf("idle read timeout must be positive")
	}
	if c.ClockSkew < 0 {
		return fmt.Errorf("clock skew must be non-negative")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger cannot be nil")
	}
	return nil
}
