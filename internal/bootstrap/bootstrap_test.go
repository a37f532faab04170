package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/dubbing-api/internal/config"
)

func TestNewDependencies_LocalPublisher(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.LoadWithLookuper(envconfig.MapLookuper(map[string]string{
		"WORK_DIR":   filepath.Join(dir, "work"),
		"PUBLIC_DIR": filepath.Join(dir, "public"),
	}))
	require.NoError(t, err)

	deps, err := NewDependencies(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.NotNil(t, deps.DubService)
	assert.DirExists(t, filepath.Join(dir, "work"))
	assert.DirExists(t, filepath.Join(dir, "public", "dubbed"))
	assert.Equal(t, filepath.Join(dir, "public"), deps.StaticDir)
}

func TestNewDependencies_S3Publisher(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.LoadWithLookuper(envconfig.MapLookuper(map[string]string{
		"WORK_DIR":              filepath.Join(dir, "work"),
		"S3_BUCKET":             "videos",
		"S3_REGION":             "us-east-1",
		"S3_ENDPOINT":           "http://127.0.0.1:9000",
		"AWS_ACCESS_KEY_ID":     "test",
		"AWS_SECRET_ACCESS_KEY": "test",
	}))
	require.NoError(t, err)

	deps, err := NewDependencies(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.NotNil(t, deps.DubService)
	assert.Empty(t, deps.StaticDir, "nothing to serve when publishing to S3")
}
