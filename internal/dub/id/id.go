// Package id provides unique identifier generation for dubbing runs.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// Generate creates a new unique run ID.
// Format: run-<uuid without dashes>
// Example: run-6f1c2b0a9d8e4f7a8b3c2d1e0f9a8b7c
func Generate() string {
	return "run-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
