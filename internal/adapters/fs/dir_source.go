package fs

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/platewatch/internal/domain"
	"github.com/bft-labs/platewatch/internal/ports"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// DirSource implements ports.FrameSource over a directory of still images.
// Files are read in lexical name order. In once mode the stream ends after the
// files present at startup; otherwise new files are picked up as they appear.
type DirSource struct {
	dir     string
	once    bool
	logger  ports.Logger
	watcher *fsnotify.Watcher

	queue []string
	seen  map[string]struct{}
	seq   uint64
}

// NewDirSource opens dir as a frame source.
func NewDirSource(dir string, once bool, logger ports.Logger) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open frame directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open frame directory: %s is not a directory", dir)
	}

	s := &DirSource{
		dir:    dir,
		once:   once,
		logger: logger,
		seen:   make(map[string]struct{}),
	}

	if !once {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		s.watcher = watcher
	}

	if err := s.scan(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Next returns the next decodable image in the directory.
func (s *DirSource) Next(ctx context.Context) (domain.Frame, error) {
	for {
		for len(s.queue) > 0 {
			path := s.queue[0]
			s.queue = s.queue[1:]

			frame, err := s.load(path)
			if err != nil {
				// Partially written files show up again on their next write event.
				s.logger.Debug("skipping unreadable image", ports.String("path", path), ports.Err(err))
				continue
			}
			return frame, nil
		}

		if s.once {
			return domain.Frame{}, domain.ErrEndOfStream
		}

		select {
		case <-ctx.Done():
			return domain.Frame{}, ctx.Err()
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return domain.Frame{}, domain.ErrEndOfStream
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				if err := s.scan(); err != nil {
					return domain.Frame{}, err
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return domain.Frame{}, domain.ErrEndOfStream
			}
			return domain.Frame{}, fmt.Errorf("watch %s: %w", s.dir, err)
		}
	}
}

// Close stops watching the directory.
func (s *DirSource) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// scan queues image files not read yet, in name order.
func (s *DirSource) scan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read frame directory: %w", err)
	}

	queued := make(map[string]struct{}, len(s.queue))
	for _, p := range s.queue {
		queued[p] = struct{}{}
	}

	var added []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if _, ok := s.seen[path]; ok {
			continue
		}
		if _, ok := queued[path]; ok {
			continue
		}
		added = append(added, path)
	}
	sort.Strings(added)
	s.queue = append(s.queue, added...)
	return nil
}

func (s *DirSource) load(path string) (domain.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Frame{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return domain.Frame{}, err
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return domain.Frame{}, fmt.Errorf("decode %s: %w", path, err)
	}

	s.seen[path] = struct{}{}
	s.seq++
	return domain.Frame{
		Seq:        s.seq,
		CapturedAt: info.ModTime(),
		Image:      img,
	}, nil
}
