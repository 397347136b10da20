package worker

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/platewatch/internal/domain"
)

func TestWriteReadMessage(t *testing.T) {
	var buf bytes.Buffer
	in := Response{Seq: 7, Text: "MH12AB1234", Confidence: 0.93}

	require.NoError(t, WriteMessage(&buf, in))
	assert.Equal(t, []byte{0, 0, 0}, buf.Bytes()[:3], "length prefix is big-endian")

	var out Response
	require.NoError(t, ReadMessage(&buf, &out))
	assert.Equal(t, in.Seq, out.Seq)
	assert.Equal(t, in.Text, out.Text)
	assert.InDelta(t, in.Confidence, out.Confidence, 1e-9)
}

func TestReadMessage_TooLarge(t *testing.T) {
	r := bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff})
	var out Response
	assert.ErrorIs(t, ReadMessage(r, &out), ErrMessageTooLarge)
}

func TestReadMessage_Truncated(t *testing.T) {
	r := bytes.NewReader([]byte{0, 0, 0, 10, 1, 2})
	var out Response
	assert.Error(t, ReadMessage(r, &out))
}

func TestPackRGB(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	img.Set(1, 1, color.RGBA{R: 40, G: 50, B: 60, A: 255})

	assert.Equal(t, []byte{10, 20, 30, 0, 0, 0, 0, 0, 0, 40, 50, 60}, packRGB(img, img.Bounds()))
	assert.Equal(t, []byte{40, 50, 60}, packRGB(img, image.Rect(1, 1, 2, 2)))

	gray := image.NewGray(image.Rect(0, 0, 1, 1))
	gray.Set(0, 0, color.Gray{Y: 200})
	assert.Equal(t, []byte{200, 200, 200}, packRGB(gray, gray.Bounds()))
}

// fakeWorker answers requests on the far side of a pair of pipes.
type fakeWorker struct {
	requests []Request
	handle   func(Request) Response
}

func (f *fakeWorker) serve(r io.Reader, w io.WriteCloser) {
	defer w.Close()
	for {
		var req Request
		if err := ReadMessage(r, &req); err != nil {
			return
		}
		f.requests = append(f.requests, req)
		resp := f.handle(req)
		if resp.Seq == 0 {
			resp.Seq = req.Seq
		}
		if err := WriteMessage(w, resp); err != nil {
			return
		}
	}
}

func startFake(t *testing.T, f *fakeWorker) *Client {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.serve(reqR, respW)
	}()
	t.Cleanup(func() {
		reqW.Close()
		<-done
	})
	return NewClient(reqW, respR)
}

func testFrame() domain.Frame {
	return domain.Frame{Seq: 1, Image: image.NewRGBA(image.Rect(0, 0, 40, 20))}
}

func TestClient_Detect(t *testing.T) {
	f := &fakeWorker{handle: func(req Request) Response {
		return Response{Regions: []RegionMsg{{X1: 1, Y1: 2, X2: 30, Y2: 12, Score: 0.8}}}
	}}
	c := startFake(t, f)

	regions, err := c.Detect(context.Background(), testFrame())
	require.NoError(t, err)
	assert.Equal(t, []domain.Region{{X1: 1, Y1: 2, X2: 30, Y2: 12, Score: 0.8}}, regions)

	require.Len(t, f.requests, 1)
	assert.Equal(t, OpDetect, f.requests[0].Op)
	assert.Equal(t, 40, f.requests[0].Width)
	assert.Equal(t, 20, f.requests[0].Height)
	assert.Len(t, f.requests[0].Pixels, 40*20*3)
}

func TestClient_Recognize(t *testing.T) {
	f := &fakeWorker{handle: func(req Request) Response {
		return Response{Text: "MH12AB1234", Confidence: 0.91}
	}}
	c := startFake(t, f)

	cand, err := c.Recognize(context.Background(), testFrame(), domain.Region{X1: 10, Y1: 5, X2: 30, Y2: 15})
	require.NoError(t, err)
	assert.Equal(t, "MH12AB1234", cand.Text)
	assert.InDelta(t, 0.91, cand.Confidence, 1e-9)

	assert.Equal(t, OpRecognize, f.requests[0].Op)
	assert.Equal(t, 20, f.requests[0].Width)
	assert.Equal(t, 10, f.requests[0].Height)
	assert.Equal(t, uint64(1), f.requests[0].Seq)
}

func TestClient_WorkerError(t *testing.T) {
	f := &fakeWorker{handle: func(req Request) Response {
		return Response{Error: "model not loaded"}
	}}
	c := startFake(t, f)

	_, err := c.Detect(context.Background(), testFrame())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")

	// A worker-reported error keeps the stream usable.
	_, err = c.Detect(context.Background(), testFrame())
	assert.False(t, errors.Is(err, ErrBroken))
}

func TestClient_SeqMismatchBreaksStream(t *testing.T) {
	f := &fakeWorker{handle: func(req Request) Response {
		return Response{Seq: req.Seq + 100}
	}}
	c := startFake(t, f)

	_, err := c.Detect(context.Background(), testFrame())
	assert.ErrorIs(t, err, ErrBroken)

	_, err = c.Detect(context.Background(), testFrame())
	assert.ErrorIs(t, err, ErrBroken)
}

func TestClient_Rejects(t *testing.T) {
	c := NewClient(io.Discard, bytes.NewReader(nil))

	_, err := c.Detect(context.Background(), domain.Frame{})
	assert.Error(t, err)

	_, err = c.Recognize(context.Background(), testFrame(), domain.Region{X1: 100, Y1: 100, X2: 120, Y2: 120})
	assert.ErrorIs(t, err, domain.ErrMalformedRegion)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Detect(ctx, testFrame())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_CancelAbandonsHungWorker(t *testing.T) {
	reqR, reqW := io.Pipe()
	respR, _ := io.Pipe()

	// Reads every request and never answers.
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		_, _ = io.Copy(io.Discard, reqR)
	}()

	c := NewClient(reqW, respR)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Detect(ctx, testFrame())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	_, err = c.Recognize(context.Background(), testFrame(), domain.Region{X1: 0, Y1: 0, X2: 10, Y2: 10})
	assert.ErrorIs(t, err, ErrBroken)

	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("request pipe was not closed after cancellation")
	}
}
