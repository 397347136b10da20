package platewatch

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/platewatch/pkg/log"
)

// Option configures optional behavior of Platewatch.
type Option func(*options)

// options holds the optional configuration for a Platewatch instance.
type options struct {
	logger       Logger
	eventHandler EventHandler
	annotator    Annotator
	clock        Clock
	registerer   prometheus.Registerer
	plugins      []Plugin
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for pipeline events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithAnnotator receives an annotation for each accepted plate, for example
// to draw it on a preview window.
func WithAnnotator(annotator Annotator) Option {
	return func(o *options) {
		o.annotator = annotator
	}
}

// WithClock replaces the wall clock used for window boundaries.
func WithClock(clock Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithMetrics registers pipeline metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithPlugin registers a plugin to be initialized when Platewatch starts.
// Plugins are initialized in registration order and shut down in reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}
