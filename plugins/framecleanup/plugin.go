// Package framecleanup prunes old input frames for platewatch.
// When enabled, it periodically removes the oldest image files from a frame
// directory to prevent unbounded disk usage by a camera writing into it.
package framecleanup

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bft-labs/platewatch/pkg/log"
	"github.com/bft-labs/platewatch/pkg/platewatch"
)

var frameExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Plugin implements frame cleanup.
// It periodically checks the frame directory size and removes the oldest
// frames when it exceeds the high watermark.
type Plugin struct {
	mu sync.RWMutex

	// Configuration
	dir           string
	checkInterval time.Duration
	highWatermark int64
	lowWatermark  int64
	minAge        time.Duration
	now           func() time.Time

	// Runtime state
	logger platewatch.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds configuration options for the frame cleanup plugin.
type Config struct {
	// Dir is the frame directory to prune.
	Dir string

	// CheckInterval is how often to check the directory size.
	// Default: 1 hour
	CheckInterval time.Duration

	// HighWatermark is the size in bytes above which cleanup begins.
	// Default: 2 GiB
	HighWatermark int64

	// LowWatermark is the target size in bytes after cleanup.
	// Default: 1.5 GiB
	LowWatermark int64

	// MinAge protects frames modified more recently than this, so that
	// frames still waiting to be read are left alone.
	// Default: 10 minutes
	MinAge time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval: time.Hour,
		HighWatermark: 2 << 30, // 2 GiB
		LowWatermark:  3 << 29, // 1.5 GiB
		MinAge:        10 * time.Minute,
	}
}

// New creates a new frame cleanup plugin with the given configuration.
func New(cfg Config) *Plugin {
	def := DefaultConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.HighWatermark <= 0 {
		cfg.HighWatermark = def.HighWatermark
	}
	if cfg.LowWatermark <= 0 || cfg.LowWatermark > cfg.HighWatermark {
		cfg.LowWatermark = cfg.HighWatermark * 3 / 4
	}
	if cfg.MinAge <= 0 {
		cfg.MinAge = def.MinAge
	}

	return &Plugin{
		dir:           cfg.Dir,
		checkInterval: cfg.CheckInterval,
		highWatermark: cfg.HighWatermark,
		lowWatermark:  cfg.LowWatermark,
		minAge:        cfg.MinAge,
		now:           time.Now,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "framecleanup"
}

// Initialize sets up the plugin and starts the cleanup loop.
func (p *Plugin) Initialize(ctx context.Context, cfg platewatch.PluginConfig) error {
	p.mu.Lock()
	p.logger = cfg.Logger
	p.mu.Unlock()

	if p.dir == "" {
		p.logger.Warn("frame cleanup disabled: no frame directory configured")
		return nil
	}

	// The loop outlives Start's ctx; Shutdown stops it.
	cleanupCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.logger.Info("frame cleanup plugin initialized",
		log.String("dir", p.dir),
		log.String("high_watermark", formatBytes(p.highWatermark)),
		log.String("low_watermark", formatBytes(p.lowWatermark)),
	)

	p.wg.Add(1)
	go p.cleanupLoop(cleanupCtx)

	return nil
}

// Shutdown stops the cleanup loop.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

func (p *Plugin) cleanupLoop(ctx context.Context) {
	defer p.wg.Done()

	p.cleanupOnce(ctx)

	ticker := time.NewTicker(p.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cleanupOnce(ctx)
		}
	}
}

// cleanupOnce performs a single cleanup check and returns the bytes freed.
func (p *Plugin) cleanupOnce(ctx context.Context) int64 {
	p.mu.RLock()
	logger := p.logger
	p.mu.RUnlock()

	curSize, err := dirSize(p.dir)
	if err != nil {
		logger.Error("frame cleanup: size check failed", log.Err(err))
		return 0
	}
	if curSize <= p.highWatermark {
		return 0
	}

	frames, err := orderedFrames(p.dir, p.now().Add(-p.minAge))
	if err != nil {
		logger.Error("frame cleanup: list frames failed", log.Err(err))
		return 0
	}

	var removed int64
	count := 0
	for _, f := range frames {
		if ctx.Err() != nil {
			break
		}
		if curSize <= p.lowWatermark {
			break
		}
		if err := os.Remove(f.path); err != nil {
			logger.Error("frame cleanup: remove failed", log.String("path", f.path), log.Err(err))
			continue
		}
		curSize -= f.size
		removed += f.size
		count++
	}

	if removed > 0 {
		logger.Info("frame cleanup completed",
			log.Int("frames", count),
			log.String("freed", formatBytes(removed)),
			log.String("size", formatBytes(curSize)),
		)
	}
	return removed
}

type frameFile struct {
	path    string
	size    int64
	modTime time.Time
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

// orderedFrames lists the frames in dir last modified before cutoff, oldest
// first. Ties are broken by name, the order frames are read in.
func orderedFrames(dir string, cutoff time.Time) ([]frameFile, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var frames []frameFile
	for _, e := range ents {
		if e.IsDir() || !frameExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		frames = append(frames, frameFile{
			path:    filepath.Join(dir, e.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(frames, func(i, j int) bool {
		if !frames[i].modTime.Equal(frames[j].modTime) {
			return frames[i].modTime.Before(frames[j].modTime)
		}
		return frames[i].path < frames[j].path
	})
	return frames, nil
}

func formatBytes(b int64) string {
	const (
		_          = iota
		KB float64 = 1 << (10 * iota)
		MB
		GB
	)

	fb := float64(b)
	switch {
	case fb >= GB:
		return fmt.Sprintf("%.2fGiB", fb/GB)
	case fb >= MB:
		return fmt.Sprintf("%.2fMiB", fb/MB)
	case fb >= KB:
		return fmt.Sprintf("%.2fKiB", fb/KB)
	default:
		return fmt.Sprintf("%dB", b)
	}
}

// Ensure Plugin implements platewatch.Plugin.
var _ platewatch.Plugin = (*Plugin)(nil)
