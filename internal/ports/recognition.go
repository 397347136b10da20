package ports

import (
	"context"

	"github.com/bft-labs/platewatch/internal/domain"
)

// Detector locates candidate plate regions within a frame.
// Returned regions may extend past the frame bounds; the caller clips them.
type Detector interface {
	Detect(ctx context.Context, frame domain.Frame) ([]domain.Region, error)
}

// Recognizer reads the raw text inside a region of a frame.
// Implementations return domain.ErrLowConfidence when the reading should be discarded.
type Recognizer interface {
	Recognize(ctx context.Context, frame domain.Frame, region domain.Region) (domain.Candidate, error)
}

// Annotator receives a display annotation for each accepted plate.
// It is called from the analysis goroutine and must not block.
type Annotator interface {
	Annotate(frame domain.Frame, region domain.Region, plate string)
}

// AnnotatorFunc adapts a function to the Annotator interface.
type AnnotatorFunc func(frame domain.Frame, region domain.Region, plate string)

// Annotate calls f.
func (f AnnotatorFunc) Annotate(frame domain.Frame, region domain.Region, plate string) {
	f(frame, region, plate)
}
