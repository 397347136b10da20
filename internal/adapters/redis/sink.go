// Package redis appends windows to a Redis stream.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bft-labs/platewatch/internal/domain"
)

// DefaultStream is the stream records are appended to when none is configured.
const DefaultStream = "platewatch:plates"

// Config configures the Redis sink.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	Stream   string

	// MaxLen caps the stream length approximately; zero keeps every entry.
	MaxLen int64
}

// Sink implements ports.WindowSink. Each window is written in one MULTI/EXEC
// transaction, one stream entry per plate.
type Sink struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

// NewSink connects to Redis and verifies the connection with PING.
func NewSink(ctx context.Context, cfg Config) (*Sink, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Addrs,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %v: %w", cfg.Addrs, err)
	}
	return NewSinkWithClient(client, cfg.Stream, cfg.MaxLen), nil
}

// NewSinkWithClient wraps an existing client.
func NewSinkWithClient(client redis.UniversalClient, stream string, maxLen int64) *Sink {
	if stream == "" {
		stream = DefaultStream
	}
	return &Sink{client: client, stream: stream, maxLen: maxLen}
}

// Flush appends every plate of the window to the stream atomically.
func (s *Sink) Flush(ctx context.Context, w *domain.Window) error {
	args := entries(s.stream, s.maxLen, w)
	if len(args) == 0 {
		return nil
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, a := range args {
			pipe.XAdd(ctx, a)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

// Close closes the client.
func (s *Sink) Close() error {
	return s.client.Close()
}

// entries builds one XADD per record of the window.
func entries(stream string, maxLen int64, w *domain.Window) []*redis.XAddArgs {
	records := w.Records()
	out := make([]*redis.XAddArgs, 0, len(records))
	for _, r := range records {
		out = append(out, &redis.XAddArgs{
			Stream: stream,
			MaxLen: maxLen,
			Approx: maxLen > 0,
			Values: map[string]interface{}{
				"window_id":  w.ID,
				"start_time": r.StartTime(),
				"end_time":   r.EndTime(),
				"plate":      r.Plate,
			},
		})
	}
	return out
}
