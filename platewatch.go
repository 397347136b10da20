// Package platewatch records the distinct license plates seen in each time
// window of a frame stream.
//
// Example usage:
//
//	cfg := platewatch.Config{Profile: platewatch.ProfileEU}
//	err := platewatch.Run(ctx, cfg, platewatch.Components{
//	    Source:     source,
//	    Detector:   detector,
//	    Recognizer: recognizer,
//	    Sink:       sink,
//	})
//
// For control over the lifecycle use the pkg/platewatch package directly.
package platewatch

import (
	"context"

	"go.uber.org/multierr"

	"github.com/bft-labs/platewatch/pkg/platewatch"
)

// Config configures the pipeline. Zero fields take their defaults.
type Config = platewatch.Config

// Components are the source, detector, recognizer and sink of a pipeline.
type Components = platewatch.Components

// Option configures optional behavior such as logging and metrics.
type Option = platewatch.Option

// Region profiles.
const (
	ProfileUSA = platewatch.ProfileUSA
	ProfileEU  = platewatch.ProfileEU
	ProfileIN  = platewatch.ProfileIN
)

// Run processes frames until the source is exhausted or ctx is cancelled.
// Cancelling ctx drains the queued frames and flushes the open window before
// Run returns. The error reports a fatal source failure, windows that could
// not be persisted and errors releasing the components.
func Run(ctx context.Context, cfg Config, components Components, opts ...Option) error {
	p, err := platewatch.New(cfg, components, opts...)
	if err != nil {
		return err
	}
	if err := p.Start(context.Background()); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		if err := p.Stop(); err != nil {
			return multierr.Append(err, p.Wait())
		}
	case <-p.Done():
	}
	return p.Wait()
}

// Validate reports whether plate satisfies the grammar of profile.
func Validate(plate string, profile platewatch.RegionProfile) bool {
	return platewatch.Validate(plate, profile)
}
