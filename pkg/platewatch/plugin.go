package platewatch

import "context"

// Plugin extends a Platewatch instance with a component that shares its
// lifetime, such as a metrics endpoint.
type Plugin interface {
	// Name identifies the plugin in logs.
	Name() string

	// Initialize is called from Start before the pipeline runs.
	// An error aborts Start.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown is called once the pipeline has stopped.
	Shutdown(ctx context.Context) error
}

// PluginConfig is passed to plugins on initialization.
type PluginConfig struct {
	Logger Logger

	// Status reports the current lifecycle state.
	Status func() State

	// Stats reports pipeline counters.
	Stats func() Stats
}
