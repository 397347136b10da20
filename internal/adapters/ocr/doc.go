// Package ocr reads plate text with Tesseract.
//
// The Tesseract-backed Recognizer is compiled only with the "tesseract" build
// tag; without it New returns ErrUnsupported.
package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/bft-labs/platewatch/internal/domain"
)

// ErrUnsupported is returned when the binary was built without Tesseract support.
var ErrUnsupported = errors.New("ocr: built without tesseract support (rebuild with -tags tesseract)")

// DefaultLanguage is the Tesseract language used when none is configured.
const DefaultLanguage = "eng"

// Config configures the recognizer.
type Config struct {
	Language string

	// Whitelist restricts the characters Tesseract may emit. Empty allows all.
	Whitelist string
}

// cropPNG encodes the region of the frame as PNG.
func cropPNG(frame domain.Frame, region domain.Region) ([]byte, error) {
	if frame.Image == nil {
		return nil, fmt.Errorf("frame %d has no image", frame.Seq)
	}
	rect, err := region.Clip(frame.Bounds())
	if err != nil {
		return nil, err
	}

	var crop image.Image
	if sub, ok := frame.Image.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		crop = sub.SubImage(rect)
	} else {
		rgba := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		draw.Draw(rgba, rgba.Bounds(), frame.Image, rect.Min, draw.Src)
		crop = rgba
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, crop); err != nil {
		return nil, fmt.Errorf("encode region: %w", err)
	}
	return buf.Bytes(), nil
}

// averageConfidence averages positive word confidences reported on a 0-100
// scale and returns the result on a 0-1 scale. No scored words yields 0.
func averageConfidence(scores []float64) float64 {
	var total float64
	var n int
	for _, s := range scores {
		if s > 0 {
			total += s
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n) / 100
}
