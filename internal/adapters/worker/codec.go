// Package worker runs detection and recognition in an external process.
//
// Requests and responses are msgpack documents framed by a 4-byte big-endian
// length prefix, exchanged over the worker's stdin and stdout. One request is
// in flight at a time.
package worker

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// MaxMessageSize bounds a single framed message.
const MaxMessageSize = 64 << 20

// ErrMessageTooLarge is returned when a frame header announces more than MaxMessageSize bytes.
var ErrMessageTooLarge = errors.New("worker: message too large")

// Op names understood by workers.
const (
	OpDetect    = "detect"
	OpRecognize = "recognize"
)

// Request is sent to the worker.
type Request struct {
	Op     string `msgpack:"op"`
	Seq    uint64 `msgpack:"seq"`
	Width  int    `msgpack:"width"`
	Height int    `msgpack:"height"`

	// Pixels holds packed 8-bit RGB rows, Width*Height*3 bytes.
	Pixels []byte `msgpack:"frame_data"`
}

// RegionMsg is a region in frame coordinates.
type RegionMsg struct {
	X1    int     `msgpack:"x1"`
	Y1    int     `msgpack:"y1"`
	X2    int     `msgpack:"x2"`
	Y2    int     `msgpack:"y2"`
	Score float64 `msgpack:"score"`
}

// Response is returned by the worker. Error is set when the worker failed the request.
type Response struct {
	Seq        uint64      `msgpack:"seq"`
	Regions    []RegionMsg `msgpack:"regions"`
	Text       string      `msgpack:"text"`
	Confidence float64     `msgpack:"confidence"`
	Error      string      `msgpack:"error"`
}

// WriteMessage encodes v with msgpack and writes it with its length prefix.
func WriteMessage(w io.Writer, v interface{}) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal msgpack: %w", err)
	}
	if len(data) > MaxMessageSize {
		return ErrMessageTooLarge
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write msgpack data: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed msgpack message into v.
func ReadMessage(r io.Reader, v interface{}) error {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, n)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return fmt.Errorf("read msgpack data: %w", err)
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal msgpack: %w", err)
	}
	return nil
}

// packRGB returns the pixels of rect as packed 8-bit RGB.
func packRGB(img image.Image, rect image.Rectangle) []byte {
	rect = rect.Intersect(img.Bounds())
	out := make([]byte, 0, rect.Dx()*rect.Dy()*3)

	if rgba, ok := img.(*image.RGBA); ok {
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			row := rgba.Pix[rgba.PixOffset(rect.Min.X, y):rgba.PixOffset(rect.Max.X, y)]
			for i := 0; i < len(row); i += 4 {
				out = append(out, row[i], row[i+1], row[i+2])
			}
		}
		return out
	}

	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			out = append(out, byte(r>>8), byte(g>>8), byte(b>>8))
		}
	}
	return out
}
