//go:build gocv

package video

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gocv.io/x/gocv"

	"github.com/bft-labs/platewatch/internal/domain"
)

// Source implements ports.FrameSource over an OpenCV VideoCapture.
type Source struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	seq     uint64
}

// OpenSource opens a video file, stream URL or, when uri is an integer, a
// camera device.
func OpenSource(uri string) (*Source, error) {
	var device interface{} = uri
	if id, err := strconv.Atoi(uri); err == nil {
		device = id
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", uri, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open video %s: capture not opened", uri)
	}
	return &Source{capture: capture, mat: gocv.NewMat()}, nil
}

// Next reads the next frame. A failed read or an empty frame ends the stream.
func (s *Source) Next(ctx context.Context) (domain.Frame, error) {
	if err := ctx.Err(); err != nil {
		return domain.Frame{}, err
	}
	if !s.capture.Read(&s.mat) || s.mat.Empty() {
		return domain.Frame{}, domain.ErrEndOfStream
	}

	img, err := s.mat.ToImage()
	if err != nil {
		return domain.Frame{}, fmt.Errorf("convert frame: %w", err)
	}

	s.seq++
	return domain.Frame{Seq: s.seq, CapturedAt: time.Now(), Image: img}, nil
}

// Close releases the capture device.
func (s *Source) Close() error {
	if err := s.mat.Close(); err != nil {
		s.capture.Close()
		return err
	}
	return s.capture.Close()
}
