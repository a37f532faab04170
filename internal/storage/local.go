package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// publicFileMode is the world-readable mode granted to published files.
const publicFileMode os.FileMode = 0o644

// LocalPublisher implements Publisher by copying files into a directory that
// the HTTP server exposes. Granting access means making the file world-readable.
type LocalPublisher struct {
	publicDir string
	folder    string
	baseURL   string
	chmod     func(name string, mode os.FileMode) error
}

// NewLocalPublisher creates a new LocalPublisher instance.
// Files land in publicDir/folder and are linked as baseURL/folder/name.
// The directory is created if it doesn't exist.
func NewLocalPublisher(publicDir, folder, baseURL string) (*LocalPublisher, error) {
	if publicDir == "" || baseURL == "" {
		return nil, fmt.Errorf("%w: public dir and base URL are required", ErrNotConfigured)
	}
	folder = strings.Trim(folder, "/")

	if err := os.MkdirAll(filepath.Join(publicDir, filepath.FromSlash(folder)), 0o755); err != nil {
		return nil, fmt.Errorf("create public directory: %w", err)
	}

	return &LocalPublisher{
		publicDir: publicDir,
		folder:    folder,
		baseURL:   strings.TrimRight(baseURL, "/"),
		chmod:     os.Chmod,
	}, nil
}

// PublicDir returns the root directory that must be served over HTTP.
func (p *LocalPublisher) PublicDir() string {
	return p.publicDir
}

// Publish implements Publisher.
func (p *LocalPublisher) Publish(ctx context.Context, localPath, name string) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	key, err := objectKey(p.folder, name)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(p.publicDir, filepath.FromSlash(key))

	if err := copyFile(localPath, dst); err != nil {
		return "", err
	}

	link := p.baseURL + "/" + (&url.URL{Path: key}).EscapedPath()
	if err := p.chmod(dst, publicFileMode); err != nil {
		return link, &PartialPublishError{Link: link, Err: err}
	}
	return link, nil
}

// copyFile writes src to a temp file beside dst and renames it into place,
// so readers never observe a partial file.
func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 - src is a workspace artifact
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = in.Close() }()

	f, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := f.Name()
	if _, err := io.Copy(f, in); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write published file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close published file: %w", err)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("move published file: %w", err)
	}
	return nil
}

// Verify interface implementation at compile time.
var _ Publisher = (*LocalPublisher)(nil)
