package credentials

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeysFileWatcher_ReappliesOnWrite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping filesystem watcher test in short mode")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "keys.txt")
	require.NoError(t, os.WriteFile(path, []byte("k1\n"), 0o600))

	store := NewMemoryStore()
	w, err := NewKeysFileWatcher(path, store, 20*time.Millisecond)
	require.NoError(t, err)

	applied := make(chan BootstrapResult, 4)
	w.onApply = func(r BootstrapResult, err error) {
		if err == nil {
			applied <- r
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("k1\nk2\n-k1\n"), 0o600))

	select {
	case r := <-applied:
		assert.Equal(t, 1, r.Removed)
	case <-time.After(5 * time.Second):
		t.Fatal("keys file change was not applied")
	}

	active, err := store.ListActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"k2"}, ids(active))

	require.NoError(t, w.Stop())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestKeysFileWatcher_StopWithoutWatch(t *testing.T) {
	w, err := NewKeysFileWatcher(filepath.Join(t.TempDir(), "keys.txt"), NewMemoryStore(), 0)
	require.NoError(t, err)
	assert.NoError(t, w.Stop())
}

func TestDebouncer_CollapsesBursts(t *testing.T) {
	d := newDebouncer(30 * time.Millisecond)
	defer d.stop()

	calls := make(chan struct{}, 10)
	for i := 0; i < 5; i++ {
		d.trigger(func() { calls <- struct{}{} })
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)
	assert.Len(t, calls, 1)
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	d := newDebouncer(50 * time.Millisecond)

	called := make(chan struct{}, 1)
	d.trigger(func() { called <- struct{}{} })
	d.stop()

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, called)
}
