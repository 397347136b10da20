//go:build !gocv

package video

import (
	"context"

	"github.com/bft-labs/platewatch/internal/domain"
)

// Source is unavailable without the gocv build tag.
type Source struct{}

// OpenSource returns ErrUnsupported.
func OpenSource(uri string) (*Source, error) {
	return nil, ErrUnsupported
}

// Next returns ErrUnsupported.
func (s *Source) Next(ctx context.Context) (domain.Frame, error) {
	return domain.Frame{}, ErrUnsupported
}

// Close does nothing.
func (s *Source) Close() error { return nil }

// CascadeDetector is unavailable without the gocv build tag.
type CascadeDetector struct{}

// NewCascadeDetector returns ErrUnsupported.
func NewCascadeDetector(path string, minWidth, minHeight int) (*CascadeDetector, error) {
	return nil, ErrUnsupported
}

// Detect returns ErrUnsupported.
func (d *CascadeDetector) Detect(ctx context.Context, frame domain.Frame) ([]domain.Region, error) {
	return nil, ErrUnsupported
}

// Close does nothing.
func (d *CascadeDetector) Close() error { return nil }
