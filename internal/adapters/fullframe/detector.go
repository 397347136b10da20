// Package fullframe provides a detector for sources that already deliver
// cropped plate images, such as the output of an upstream detector.
package fullframe

import (
	"context"
	"fmt"

	"github.com/bft-labs/platewatch/internal/domain"
)

// Detector reports the whole frame as a single region.
type Detector struct{}

// Detect returns one region covering the frame bounds.
func (Detector) Detect(ctx context.Context, frame domain.Frame) ([]domain.Region, error) {
	if frame.Image == nil {
		return nil, fmt.Errorf("frame %d has no image", frame.Seq)
	}
	b := frame.Bounds()
	if b.Empty() {
		return nil, nil
	}
	return []domain.Region{{X1: b.Min.X, Y1: b.Min.Y, X2: b.Max.X, Y2: b.Max.Y, Score: 1}}, nil
}
