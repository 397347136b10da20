//go:build gocv

package video

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/bft-labs/platewatch/internal/domain"
)

// CascadeDetector implements ports.Detector with an OpenCV Haar cascade,
// such as haarcascade_russian_plate_number.xml.
type CascadeDetector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	minSize    image.Point
}

// NewCascadeDetector loads the cascade definition at path.
func NewCascadeDetector(path string, minWidth, minHeight int) (*CascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("load cascade %s", path)
	}
	return &CascadeDetector{
		classifier: classifier,
		minSize:    image.Pt(minWidth, minHeight),
	}, nil
}

// Detect returns the bounding boxes found by the cascade.
func (d *CascadeDetector) Detect(ctx context.Context, frame domain.Frame) ([]domain.Region, error) {
	if frame.Image == nil {
		return nil, fmt.Errorf("frame %d has no image", frame.Seq)
	}

	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorRGBToGray)

	d.mu.Lock()
	rects := d.classifier.DetectMultiScaleWithParams(gray, 1.1, 3, 0, d.minSize, image.Point{})
	d.mu.Unlock()

	origin := frame.Bounds().Min
	regions := make([]domain.Region, 0, len(rects))
	for _, r := range rects {
		r = r.Add(origin)
		regions = append(regions, domain.Region{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y, Score: 1})
	}
	return regions, nil
}

// Close releases the classifier.
func (d *CascadeDetector) Close() error {
	return d.classifier.Close()
}
