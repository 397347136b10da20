package platewatch

import (
	"fmt"
	"math"
	"time"

	"github.com/bft-labs/platewatch/internal/app"
	"github.com/bft-labs/platewatch/internal/domain"
)

// Defaults applied by Config.SetDefaults.
const (
	DefaultWindowDuration      = app.DefaultWindowDuration
	DefaultConfidenceThreshold = app.DefaultConfidenceThreshold
	DefaultQueueCapacity       = app.DefaultQueueCapacity
	DefaultPollInterval        = app.DefaultPollInterval
	DefaultMaxSourceErrors     = app.DefaultMaxSourceErrors
	DefaultShutdownTimeout     = app.DefaultShutdownTimeout
	DefaultArtifacts           = domain.DefaultArtifacts
)

// RetryPolicy configures how failed window flushes are retried.
type RetryPolicy = app.RetryPolicy

// DefaultRetryPolicy returns 500ms initial backoff, 10s cap and 5 attempts.
func DefaultRetryPolicy() RetryPolicy {
	return app.DefaultRetryPolicy()
}

// Config configures a Platewatch pipeline.
type Config struct {
	// Profile selects the plate grammar. Default: ProfileUSA.
	Profile RegionProfile

	// WindowDuration is the length of an aggregation window. Default: 20s.
	WindowDuration time.Duration

	// ConfidenceThreshold discards readings at or below it, in [0, 1].
	// Default: 0.60. Set ZeroConfidenceThreshold to use 0. A threshold of 1
	// rejects every reading.
	ConfidenceThreshold     float64
	ZeroConfidenceThreshold bool

	// Artifacts lists glyphs stripped from recognized text before validation.
	// Default: DefaultArtifacts. Set NoArtifacts to strip nothing.
	Artifacts   string
	NoArtifacts bool

	// QueueCapacity bounds the number of frames awaiting analysis. Default: 10.
	QueueCapacity int

	// PollInterval is the delay before retrying a failed source read. Default: 500ms.
	PollInterval time.Duration

	// MaxSourceErrors ends the stream after this many consecutive read
	// failures. Default: 10. Set UnlimitedSourceErrors to retry forever.
	MaxSourceErrors       int
	UnlimitedSourceErrors bool

	// ShutdownTimeout bounds the drain on Stop. Default: 30s.
	ShutdownTimeout time.Duration

	// Retry configures flush retries.
	Retry RetryPolicy
}

// SetDefaults fills zero fields with default values.
func (c *Config) SetDefaults() {
	if c.WindowDuration == 0 {
		c.WindowDuration = DefaultWindowDuration
	}
	if c.ZeroConfidenceThreshold {
		c.ConfidenceThreshold = 0
	} else if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if c.Artifacts == "" && !c.NoArtifacts {
		c.Artifacts = DefaultArtifacts
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.UnlimitedSourceErrors {
		c.MaxSourceErrors = 0
	} else if c.MaxSourceErrors == 0 {
		c.MaxSourceErrors = DefaultMaxSourceErrors
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}

	def := DefaultRetryPolicy()
	if c.Retry.Initial == 0 {
		c.Retry.Initial = def.Initial
	}
	if c.Retry.Max == 0 {
		c.Retry.Max = def.Max
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = def.MaxAttempts
	}
}

// Validate checks the configuration. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case !c.Profile.Valid():
		return fmt.Errorf("%w: unknown region profile %d", ErrInvalidConfig, c.Profile)
	case c.WindowDuration <= 0:
		return fmt.Errorf("%w: window duration must be positive", ErrInvalidConfig)
	case c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 || math.IsNaN(c.ConfidenceThreshold):
		return fmt.Errorf("%w: confidence threshold must be in [0, 1]", ErrInvalidConfig)
	case c.QueueCapacity <= 0:
		return fmt.Errorf("%w: queue capacity must be positive", ErrInvalidConfig)
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	case c.MaxSourceErrors < 0:
		return fmt.Errorf("%w: max source errors must not be negative", ErrInvalidConfig)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("%w: shutdown timeout must be positive", ErrInvalidConfig)
	case c.Retry.Initial <= 0 || c.Retry.Max < c.Retry.Initial:
		return fmt.Errorf("%w: retry backoff must satisfy 0 < initial <= max", ErrInvalidConfig)
	case c.Retry.MaxAttempts <= 0:
		return fmt.Errorf("%w: retry attempts must be positive", ErrInvalidConfig)
	}
	return nil
}
