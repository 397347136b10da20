package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/bft-labs/platewatch/internal/domain"
)

// ErrBroken is returned once an exchange failed midway and the stream can no
// longer be trusted to be aligned on message boundaries.
var ErrBroken = errors.New("worker: stream broken")

// Client talks to a worker over a pair of streams. It implements both
// ports.Detector and ports.Recognizer.
type Client struct {
	mu     sync.Mutex
	w      io.Writer
	r      io.Reader
	seq    uint64
	broken bool

	// interrupt unblocks an exchange abandoned on cancellation.
	interrupt func()
}

// NewClient creates a client writing requests to w and reading responses from r.
// A cancelled call closes w and r when they implement io.Closer.
func NewClient(w io.Writer, r io.Reader) *Client {
	c := &Client{w: w, r: r}
	c.interrupt = func() {
		if closer, ok := w.(io.Closer); ok {
			_ = closer.Close()
		}
		if closer, ok := r.(io.Closer); ok {
			_ = closer.Close()
		}
	}
	return c
}

// Detect asks the worker for plate regions in the frame.
func (c *Client) Detect(ctx context.Context, frame domain.Frame) ([]domain.Region, error) {
	if frame.Image == nil {
		return nil, errors.New("worker: frame has no image")
	}
	b := frame.Bounds()
	resp, err := c.call(ctx, Request{
		Op:     OpDetect,
		Width:  b.Dx(),
		Height: b.Dy(),
		Pixels: packRGB(frame.Image, b),
	})
	if err != nil {
		return nil, err
	}

	regions := make([]domain.Region, len(resp.Regions))
	for i, r := range resp.Regions {
		regions[i] = domain.Region{
			X1: r.X1 + b.Min.X, Y1: r.Y1 + b.Min.Y,
			X2: r.X2 + b.Min.X, Y2: r.Y2 + b.Min.Y,
			Score: r.Score,
		}
	}
	return regions, nil
}

// Recognize sends the region crop to the worker and returns its reading.
func (c *Client) Recognize(ctx context.Context, frame domain.Frame, region domain.Region) (domain.Candidate, error) {
	if frame.Image == nil {
		return domain.Candidate{}, errors.New("worker: frame has no image")
	}
	rect := region.Rect().Intersect(frame.Bounds())
	if rect.Empty() {
		return domain.Candidate{}, fmt.Errorf("%w: %s", domain.ErrMalformedRegion, region)
	}

	resp, err := c.call(ctx, Request{
		Op:     OpRecognize,
		Width:  rect.Dx(),
		Height: rect.Dy(),
		Pixels: packRGB(frame.Image, rect),
	})
	if err != nil {
		return domain.Candidate{}, err
	}
	return domain.Candidate{Text: resp.Text, Confidence: resp.Confidence}, nil
}

type result struct {
	resp   Response
	err    error
	broken bool
}

// call runs one request/response exchange. The exchange itself runs on its own
// goroutine so that a cancelled ctx returns at once; the stream is then marked
// broken and interrupted, since a late response would be misaligned.
func (c *Client) call(ctx context.Context, req Request) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken {
		return Response{}, ErrBroken
	}
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	c.seq++
	req.Seq = c.seq

	done := make(chan result, 1)
	go func() {
		done <- c.exchange(req)
	}()

	select {
	case res := <-done:
		if res.broken {
			c.broken = true
		}
		return res.resp, res.err
	case <-ctx.Done():
		c.broken = true
		c.interrupt()
		return Response{}, fmt.Errorf("%s abandoned: %w", req.Op, ctx.Err())
	}
}

func (c *Client) exchange(req Request) result {
	if err := WriteMessage(c.w, req); err != nil {
		return result{err: fmt.Errorf("%s request: %w", req.Op, err), broken: true}
	}

	var resp Response
	if err := ReadMessage(c.r, &resp); err != nil {
		return result{err: fmt.Errorf("%s response: %w", req.Op, err), broken: true}
	}
	if resp.Seq != req.Seq {
		return result{err: fmt.Errorf("%w: response seq %d for request %d", ErrBroken, resp.Seq, req.Seq), broken: true}
	}
	if resp.Error != "" {
		return result{err: fmt.Errorf("worker %s: %s", req.Op, resp.Error)}
	}
	return result{resp: resp}
}
