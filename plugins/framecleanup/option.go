package framecleanup

import "github.com/bft-labs/platewatch/pkg/platewatch"

// WithFrameCleanup returns a platewatch Option that enables pruning of old
// frames in cfg.Dir.
//
// Usage:
//
//	p, err := platewatch.New(cfg, components,
//	    framecleanup.WithFrameCleanup(framecleanup.Config{
//	        Dir:           "/var/lib/camera/frames",
//	        HighWatermark: 2 << 30, // 2 GiB
//	    }),
//	)
func WithFrameCleanup(cfg Config) platewatch.Option {
	return platewatch.WithPlugin(New(cfg))
}
