// Package workspace allocates the per-run scratch directories that hold every
// intermediate file of a dubbing run, and guarantees their removal.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Static errors for workspace operations.
var (
	// ErrInvalidName is returned when an artifact name would escape the workspace.
	ErrInvalidName = errors.New("workspace: artifact name must be a plain file name")
	// ErrReleased is returned when an artifact is requested from a released workspace.
	ErrReleased = errors.New("workspace: already released")
)

// Kind tags what an artifact file contains.
type Kind string

const (
	// KindVideoWithAudio is the acquired source media.
	KindVideoWithAudio Kind = "video-with-audio"
	// KindAudio is the normalized mono PCM waveform.
	KindAudio Kind = "audio-only"
	// KindText is a transcript or translation document.
	KindText Kind = "text"
	// KindSynthesizedAudio is TTS output, before or after pitch adjustment.
	KindSynthesizedAudio Kind = "synthesized-audio"
	// KindFinalVideo is the remuxed, dubbed video.
	KindFinalVideo Kind = "final-video"
)

// Artifact references one file produced by a pipeline stage.
type Artifact struct {
	Path string
	Kind Kind
}

// Workspace is an exclusively owned scratch directory for one run.
type Workspace struct {
	// ID is the run identifier the workspace was acquired for.
	ID string
	// Dir is the absolute directory path.
	Dir string

	released bool
}

// Artifact returns a new artifact of the given kind located inside the
// workspace. The file itself is created by the stage that produces it.
func (w *Workspace) Artifact(kind Kind, name string) (Artifact, error) {
	if w.released {
		return Artifact{}, ErrReleased
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return Artifact{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return Artifact{Path: filepath.Join(w.Dir, name), Kind: kind}, nil
}

// Contains reports whether path lies inside the workspace directory.
func (w *Workspace) Contains(path string) bool {
	rel, err := filepath.Rel(w.Dir, path)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}

// Manager creates and removes workspaces under a common root directory.
// It is safe for concurrent use; uniqueness comes from os.MkdirTemp.
type Manager struct {
	root   string
	logger *slog.Logger
}

// NewManager creates a Manager rooted at root.
// If root is empty, a "dubbing" directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewManager(root string, logger *slog.Logger) (*Manager, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "dubbing")
	}
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0750); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}

	return &Manager{root: abs, logger: logger}, nil
}

// Root returns the directory under which workspaces are created.
func (m *Manager) Root() string {
	return m.root
}

// Acquire creates a fresh, empty workspace for runID.
func (m *Manager) Acquire(runID string) (*Workspace, error) {
	prefix := sanitize(runID)
	if prefix == "" {
		prefix = "run"
	}

	dir, err := os.MkdirTemp(m.root, prefix+"-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	return &Workspace{ID: runID, Dir: dir}, nil
}

// Release recursively removes the workspace. Releasing twice is a no-op.
func (m *Manager) Release(w *Workspace) error {
	if w == nil || w.released {
		return nil
	}
	if err := os.RemoveAll(w.Dir); err != nil {
		return fmt.Errorf("remove workspace %s: %w", w.Dir, err)
	}
	w.released = true
	return nil
}

// With acquires a workspace, runs fn inside it and releases it afterwards.
// Release happens when fn returns, fails or panics; a panic is re-raised once
// the directory is gone. A release failure is logged and does not replace
// fn's result.
func (m *Manager) With(ctx context.Context, runID string, fn func(*Workspace) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ws, err := m.Acquire(runID)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := m.Release(ws); relErr != nil {
			m.logger.Error("failed to release workspace",
				slog.String("run_id", runID),
				slog.String("dir", ws.Dir),
				slog.String("error", relErr.Error()),
			)
		}
	}()

	return fn(ws)
}

// sanitize keeps characters that are safe in a directory name.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}
