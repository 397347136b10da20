package ports

import (
	"context"
	"net/http"

	"github.com/bft-labs/platewatch/internal/domain"
)

// WindowSink persists closed aggregation windows.
type WindowSink interface {
	// Flush writes every plate of the window with the window's Start and End.
	// The write is all-or-nothing: on error no record of the window is visible.
	Flush(ctx context.Context, window *domain.Window) error

	// Close releases connections held by the sink.
	Close() error
}

// HTTPClient is what the webhook sink needs from *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
