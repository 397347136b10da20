package domain

import (
	"fmt"
	"image"
	"time"
)

// Frame is a single raster image taken from the video source.
// Acquisition order is carried by Seq; a frame is owned by the pipeline queue
// until the analysis stage dequeues it.
type Frame struct {
	// Seq is the monotonic sequence number assigned by the source, starting at 1.
	Seq uint64

	// CapturedAt is when the source produced the frame.
	CapturedAt time.Time

	// Image holds the decoded pixels.
	Image image.Image
}

// Bounds returns the pixel bounds of the frame, or an empty rectangle when the
// frame carries no image.
func (f Frame) Bounds() image.Rectangle {
	if f.Image == nil {
		return image.Rectangle{}
	}
	return f.Image.Bounds()
}

// Region is an axis-aligned rectangle within a frame produced by the detector.
// It is only meaningful for the lifetime of its frame.
type Region struct {
	X1, Y1, X2, Y2 int

	// Score is the detector confidence for the region, when the detector reports one.
	Score float64
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// Clip intersects the region with the frame bounds.
// Returns ErrMalformedRegion if nothing of the region lies inside the frame.
func (r Region) Clip(bounds image.Rectangle) (image.Rectangle, error) {
	if r.X2 <= r.X1 || r.Y2 <= r.Y1 {
		return image.Rectangle{}, fmt.Errorf("%w: %s is empty", ErrMalformedRegion, r)
	}
	clipped := r.Rect().Intersect(bounds)
	if clipped.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: %s outside frame %v", ErrMalformedRegion, r, bounds)
	}
	return clipped, nil
}

// String returns the region as "(x1,y1)-(x2,y2)".
func (r Region) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.X1, r.Y1, r.X2, r.Y2)
}

// Candidate is the raw text recognized inside a region, before normalization
// and validation.
type Candidate struct {
	Text       string
	Confidence float64
}
