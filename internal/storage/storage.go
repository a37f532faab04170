// Package storage publishes finished videos to a shareable location.
// It defines the Publisher interface and implementations for S3 and for a
// local directory served over HTTP.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Static errors for publishing.
var (
	// ErrNotConfigured is returned when a publisher is missing required settings.
	ErrNotConfigured = errors.New("storage: publisher is not configured")
	// ErrInvalidName is returned when the destination name is not a plain file name.
	ErrInvalidName = errors.New("storage: destination name must be a plain file name")
	// ErrPermissionGrant is matched by errors.Is when the upload succeeded but
	// making it publicly readable failed.
	ErrPermissionGrant = errors.New("storage: failed to grant public read access")
)

// Publisher uploads a finished artifact and returns a shareable link.
// Implementations must be safe for concurrent use.
type Publisher interface {
	// Publish uploads the file at localPath under name and grants public read
	// access to it. On a *PartialPublishError the upload exists but may
	// not be publicly readable.
	Publish(ctx context.Context, localPath, name string) (link string, err error)
}

// PartialPublishError reports an upload whose permission grant failed.
type PartialPublishError struct {
	// Link points at the uploaded, possibly private, object.
	Link string
	Err  error
}

func (e *PartialPublishError) Error() string {
	return fmt.Sprintf("uploaded to %s but %v: %v", e.Link, ErrPermissionGrant, e.Err)
}

// Unwrap exposes both ErrPermissionGrant and the underlying cause.
func (e *PartialPublishError) Unwrap() []error {
	return []error{ErrPermissionGrant, e.Err}
}

// objectKey joins the destination folder and name into a slash-separated key.
func objectKey(folder, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name, nil
	}
	return path.Join(folder, name), nil
}
