package ports

import (
	"context"

	"github.com/bft-labs/platewatch/internal/domain"
)

// FrameSource produces frames in acquisition order.
type FrameSource interface {
	// Next blocks until the next frame is available.
	// Returns domain.ErrEndOfStream once the source is exhausted; any other
	// error is a read failure the caller may retry.
	Next(ctx context.Context) (domain.Frame, error)

	// Close releases the underlying device or files.
	Close() error
}
