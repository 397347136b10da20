//go:build !tesseract

package ocr

import (
	"context"

	"github.com/bft-labs/platewatch/internal/domain"
)

// Recognizer is unavailable without the tesseract build tag.
type Recognizer struct{}

// New returns ErrUnsupported.
func New(cfg Config) (*Recognizer, error) {
	return nil, ErrUnsupported
}

// Recognize returns ErrUnsupported.
func (r *Recognizer) Recognize(ctx context.Context, frame domain.Frame, region domain.Region) (domain.Candidate, error) {
	return domain.Candidate{}, ErrUnsupported
}

// Close does nothing.
func (r *Recognizer) Close() error { return nil }
