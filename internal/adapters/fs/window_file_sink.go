package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bft-labs/platewatch/internal/domain"
)

const windowFilePrefix = "window-"

// WindowFileSink implements ports.WindowSink by writing one JSON file per window.
type WindowFileSink struct {
	dir string
}

// NewWindowFileSink creates the output directory and returns a sink writing into it.
func NewWindowFileSink(dir string) (*WindowFileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create window directory: %w", err)
	}
	return &WindowFileSink{dir: dir}, nil
}

// Flush persists the window atomically.
// Uses atomic write (write to temp file, then rename) so readers never see a
// partial window.
func (s *WindowFileSink) Flush(ctx context.Context, w *domain.Window) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(w.Payload(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal window: %w", err)
	}

	path := s.Path(w)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write window: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit window: %w", err)
	}
	return nil
}

// Close implements ports.WindowSink.
func (s *WindowFileSink) Close() error {
	return nil
}

// Path returns the file the window is written to. Names sort by window start.
func (s *WindowFileSink) Path(w *domain.Window) string {
	name := fmt.Sprintf("%s%s-%s.json", windowFilePrefix, w.Start.UTC().Format("20060102T150405.000000Z"), w.ID)
	return filepath.Join(s.dir, name)
}

// ReadWindows loads every window file in dir, oldest window first.
func ReadWindows(dir string) ([]domain.WindowPayload, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		n := e.Name()
		if !e.IsDir() && strings.HasPrefix(n, windowFilePrefix) && strings.HasSuffix(n, ".json") {
			names = append(names, n)
		}
	}
	sort.Strings(names)

	out := make([]domain.WindowPayload, 0, len(names))
	for _, n := range names {
		data, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return nil, err
		}
		var p domain.WindowPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse %s: %w", n, err)
		}
		out = append(out, p)
	}
	return out, nil
}
