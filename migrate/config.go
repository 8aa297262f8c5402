package migrate

import (
	"fmt"
	"time"

	"github.com/poiesic/shuttle/core"
)

const (
	// Unlimited as Config.MaxItems migrates every record the source yields.
	Unlimited = -1

	// Unbounded as Config.ConcurrencyLimit places no limit on writes in flight.
	Unbounded = -1
)

// Config holds configuration for a migration run.
type Config struct {
	// BatchSize is the number of records sent to the sink per call
	BatchSize int

	// MaxItems caps how many records are read from the source, or Unlimited
	MaxItems int

	// IncludeVectors requests vectors from the source and carries them to the sink
	IncludeVectors bool

	// ConcurrencyLimit is the maximum number of batch writes in flight.
	// 1 writes sequentially; Unbounded removes the limit.
	ConcurrencyLimit int

	// ErrorPolicy decides what a transport error does to the run
	ErrorPolicy core.ErrorPolicy

	// MaxRetries is how many times a batch is retried after a transport error
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// ReportInterval is how often to report progress (number of records).
	// 0 reports after every batch.
	ReportInterval int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:        100,
		MaxItems:         Unlimited,
		IncludeVectors:   true,
		ConcurrencyLimit: 1,
		ErrorPolicy:      core.ErrorPolicyFailFast,
		MaxRetries:       0,
		RetryDelay:       1 * time.Second,
		ReportInterval:   1000,
	}
}

// Validate reports the first invalid setting, wrapping core.ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive, got %d", core.ErrInvalidConfig, c.BatchSize)
	case c.MaxItems < Unlimited:
		return fmt.Errorf("%w: max items must be non-negative or unlimited, got %d", core.ErrInvalidConfig, c.MaxItems)
	case c.ConcurrencyLimit == 0 || c.ConcurrencyLimit < Unbounded:
		return fmt.Errorf("%w: concurrency limit must be positive or unbounded, got %d", core.ErrInvalidConfig, c.ConcurrencyLimit)
	case c.MaxRetries < 0:
		return fmt.Errorf("%w: max retries must be non-negative, got %d", core.ErrInvalidConfig, c.MaxRetries)
	case c.RetryDelay < 0:
		return fmt.Errorf("%w: retry delay must be non-negative, got %s", core.ErrInvalidConfig, c.RetryDelay)
	case c.ReportInterval < 0:
		return fmt.Errorf("%w: report interval must be non-negative, got %d", core.ErrInvalidConfig, c.ReportInterval)
	}

	switch c.ErrorPolicy {
	case core.ErrorPolicyFailFast, core.ErrorPolicySkipAndContinue:
	default:
		return fmt.Errorf("%w: unknown error policy %s", core.ErrInvalidConfig, c.ErrorPolicy)
	}
	return nil
}

// Sequential reports whether batches are written one at a time on the caller's goroutine.
func (c *Config) Sequential() bool {
	return c.ConcurrencyLimit == 1
}

// limitsItems reports whether MaxItems caps the run.
func (c *Config) limitsItems() bool {
	return c.MaxItems != Unlimited
}
