package metricsserver

import "github.com/bft-labs/platewatch/pkg/platewatch"

// WithMetricsServer returns a platewatch Option that serves metrics while the
// pipeline runs. Combine it with platewatch.WithMetrics on the same registry:
//
//	reg := prometheus.NewRegistry()
//	p, err := platewatch.New(cfg, components,
//	    platewatch.WithMetrics(reg),
//	    metricsserver.WithMetricsServer(metricsserver.Config{
//	        Addr:     ":9090",
//	        Gatherer: reg,
//	    }),
//	)
func WithMetricsServer(cfg Config) platewatch.Option {
	return platewatch.WithPlugin(New(cfg))
}
