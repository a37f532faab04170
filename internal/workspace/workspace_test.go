package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "work"), nil)
	require.NoError(t, err)
	return m
}

func TestNewManager(t *testing.T) {
	t.Run("creates root directory", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "nested", "work")

		m, err := NewManager(root, nil)
		require.NoError(t, err)
		assert.Equal(t, root, m.Root())

		info, err := os.Stat(root)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		m, err := NewManager("", nil)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(os.TempDir(), "dubbing"), m.Root())
	})
}

func TestManager_AcquireRelease(t *testing.T) {
	m := newTestManager(t)

	ws, err := m.Acquire("run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", ws.ID)
	assert.Equal(t, m.Root(), filepath.Dir(ws.Dir))

	entries, err := os.ReadDir(ws.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "fresh workspace should be empty")

	art, err := ws.Artifact(KindAudio, "audio.wav")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(art.Path, []byte("pcm"), 0600))

	require.NoError(t, m.Release(ws))
	_, err = os.Stat(ws.Dir)
	assert.True(t, os.IsNotExist(err), "workspace should be removed")

	// Second release is a no-op.
	require.NoError(t, m.Release(ws))

	_, err = ws.Artifact(KindAudio, "late.wav")
	assert.ErrorIs(t, err, ErrReleased)
}

func TestManager_AcquireIsExclusive(t *testing.T) {
	m := newTestManager(t)

	const n = 20
	dirs := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ws, err := m.Acquire("same-id")
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			dirs <- ws.Dir
		}()
	}
	wg.Wait()
	close(dirs)

	seen := make(map[string]bool)
	for d := range dirs {
		assert.False(t, seen[d], "directory %s handed out twice", d)
		seen[d] = true
	}
	assert.Len(t, seen, n)
}

func TestWorkspace_Artifact(t *testing.T) {
	m := newTestManager(t)
	ws, err := m.Acquire("run")
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Release(ws) })

	tests := []struct {
		name    string
		file    string
		wantErr bool
	}{
		{"plain name", "source.mp4", false},
		{"empty", "", true},
		{"dot", ".", true},
		{"parent", "..", true},
		{"traversal", "../escape.mp4", true},
		{"nested", "sub/file.wav", true},
		{"backslash", `sub\file.wav`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			art, err := ws.Artifact(KindFinalVideo, tt.file)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, KindFinalVideo, art.Kind)
			assert.True(t, ws.Contains(art.Path))
		})
	}
}

func TestWorkspace_Contains(t *testing.T) {
	ws := &Workspace{Dir: "/tmp/dubbing/run-1"}

	assert.True(t, ws.Contains("/tmp/dubbing/run-1/a.wav"))
	assert.False(t, ws.Contains("/tmp/dubbing/run-1"))
	assert.False(t, ws.Contains("/tmp/dubbing/run-2/a.wav"))
	assert.False(t, ws.Contains("/tmp/dubbing/run-1/../run-2/a.wav"))
}

func TestManager_With(t *testing.T) {
	ctx := context.Background()

	t.Run("removes workspace after success", func(t *testing.T) {
		m := newTestManager(t)
		var dir string

		err := m.With(ctx, "ok", func(ws *Workspace) error {
			dir = ws.Dir
			return os.WriteFile(filepath.Join(ws.Dir, "f"), []byte("x"), 0600)
		})
		require.NoError(t, err)

		_, statErr := os.Stat(dir)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("removes workspace after error", func(t *testing.T) {
		m := newTestManager(t)
		boom := errors.New("boom")
		var dir string

		err := m.With(ctx, "fail", func(ws *Workspace) error {
			dir = ws.Dir
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, statErr := os.Stat(dir)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("removes workspace after panic", func(t *testing.T) {
		m := newTestManager(t)
		var dir string

		assert.Panics(t, func() {
			_ = m.With(ctx, "panic", func(ws *Workspace) error {
				dir = ws.Dir
				panic("stage exploded")
			})
		})

		require.NotEmpty(t, dir)
		_, statErr := os.Stat(dir)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("removes workspace when cancelled mid-run", func(t *testing.T) {
		m := newTestManager(t)
		cctx, cancel := context.WithCancel(ctx)
		var dir string

		err := m.With(cctx, "cancel", func(ws *Workspace) error {
			dir = ws.Dir
			cancel()
			return cctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)

		_, statErr := os.Stat(dir)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("does not acquire when context already done", func(t *testing.T) {
		m := newTestManager(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		called := false
		err := m.With(cctx, "never", func(*Workspace) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)

		entries, readErr := os.ReadDir(m.Root())
		require.NoError(t, readErr)
		assert.Empty(t, entries)
	})
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "run-1_a", sanitize("run-1_a"))
	assert.Equal(t, "runetcpasswd", sanitize("run/../etc/passwd"))
	assert.Equal(t, "", sanitize("***"))
}
