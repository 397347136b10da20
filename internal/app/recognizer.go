package app

import (
	"context"
	"fmt"
	"math"

	"github.com/bft-labs/platewatch/internal/domain"
	"github.com/bft-labs/platewatch/internal/ports"
)

// DefaultConfidenceThreshold is the minimum recognizer confidence, exclusive.
const DefaultConfidenceThreshold = 0.60

// ConfidenceFilter wraps a Recognizer and rejects candidates whose confidence
// is at or below the threshold. Both are compared in whole percentage points:
// the confidence is truncated and the threshold rounded, so 0.605 is 60 and is
// rejected at a threshold of 0.60. A NaN confidence counts as zero.
type ConfidenceFilter struct {
	next      ports.Recognizer
	threshold float64
}

// NewConfidenceFilter creates a filter around next.
func NewConfidenceFilter(next ports.Recognizer, threshold float64) *ConfidenceFilter {
	return &ConfidenceFilter{next: next, threshold: threshold}
}

// Recognize implements ports.Recognizer.
func (f *ConfidenceFilter) Recognize(ctx context.Context, frame domain.Frame, region domain.Region) (domain.Candidate, error) {
	c, err := f.next.Recognize(ctx, frame, region)
	if err != nil {
		return c, err
	}
	conf := c.Confidence
	if math.IsNaN(conf) {
		conf = 0
	}
	if math.Trunc(conf*100) <= math.Round(f.threshold*100) {
		return c, fmt.Errorf("%w: %q at %.2f", domain.ErrLowConfidence, c.Text, conf)
	}
	return c, nil
}
