package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plant.yaml")
	require.NoError(t, os.WriteFile(path, []byte("elements: []\n"), 0o644))

	var calls atomic.Int32
	var got atomic.Value
	w := New(path, func(p string) {
		got.Store(p)
		calls.Add(1)
	}, nil).WithDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)

	t.Run("unrelated files are ignored", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644))
		time.Sleep(150 * time.Millisecond)
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("a burst of writes fires once", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, os.WriteFile(path, []byte("elements: []\n# edit\n"), 0o644))
		}
		require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
		time.Sleep(150 * time.Millisecond)
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, path, got.Load())
	})

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatchMissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing", "plant.yaml"), func(string) {}, nil)
	assert.Error(t, w.Watch(context.Background()))
}
