package main

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

func TestWatchFile_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "puffs.tsv")
	require.NoError(t, os.WriteFile(path, []byte("v0"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, path, 200*time.Millisecond, func(context.Context) {
			calls.Add(1)
		})
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	for i := range 3 {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "burst of writes should trigger one run")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watchFile did not stop after cancel")
	}
}

func TestWatchFile_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "puffs.tsv")
	require.NoError(t, os.WriteFile(path, []byte("v0"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go func() {
		_ = watchFile(ctx, path, 50*time.Millisecond, func(context.Context) { calls.Add(1) })
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.tsv"), []byte("x"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestWatchFile_MissingDirectory(t *testing.T) {
	err := watchFile(context.Background(), filepath.Join(t.TempDir(), "nope", "puffs.tsv"), time.Millisecond, func(context.Context) {})
	require.Error(t, err)
}
