package fs

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/platewatch/internal/domain"
	"github.com/bft-labs/platewatch/pkg/log"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.White)

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestDirSource_Once(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 20, 10)
	writePNG(t, filepath.Join(dir, "a.png"), 10, 10)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0o644))

	src, err := NewDirSource(dir, true, log.NewNoopLogger())
	require.NoError(t, err)
	defer src.Close()

	ctx := context.Background()

	first, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, image.Rect(0, 0, 10, 10), first.Bounds())

	second, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Seq)
	assert.Equal(t, image.Rect(0, 0, 20, 10), second.Bounds())

	_, err = src.Next(ctx)
	assert.True(t, errors.Is(err, domain.ErrEndOfStream))
}

func TestDirSource_WatchPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	src, err := NewDirSource(dir, false, log.NewNoopLogger())
	require.NoError(t, err)
	defer src.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		tmp := filepath.Join(dir, "incoming.part")
		writePNG(t, tmp, 8, 8)
		_ = os.Rename(tmp, filepath.Join(dir, "frame-0001.png"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	frame, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), frame.Seq)
	assert.Equal(t, image.Rect(0, 0, 8, 8), frame.Bounds())
}

func TestDirSource_WatchRespectsContext(t *testing.T) {
	src, err := NewDirSource(t.TempDir(), false, log.NewNoopLogger())
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewDirSource_MissingDirectory(t *testing.T) {
	_, err := NewDirSource(filepath.Join(t.TempDir(), "missing"), true, log.NewNoopLogger())
	assert.Error(t, err)
}

func TestNewDirSource_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.png")
	writePNG(t, path, 2, 2)

	_, err := NewDirSource(path, true, log.NewNoopLogger())
	assert.Error(t, err)
}
