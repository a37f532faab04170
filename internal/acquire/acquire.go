// Package acquire downloads the source video of a dubbing run with yt-dlp.
package acquire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maauso/dubbing-api/internal/command"
	"github.com/maauso/dubbing-api/internal/workspace"
)

// Static errors for acquisition.
var (
	// ErrInvalidReference is returned for anything that is not an http(s) URL.
	ErrInvalidReference = errors.New("acquire: source must be an http or https URL")
	// ErrNoOutput is returned when the downloader exits cleanly but wrote no file.
	ErrNoOutput = errors.New("acquire: downloader produced no output file")
)

// outputStem is the basename (without extension) of the downloaded file.
const outputStem = "source"

// Source describes a downloaded video.
type Source struct {
	// Artifact is the downloaded file inside the run workspace.
	Artifact workspace.Artifact
	// Format is the container extension reported by the downloader (e.g. "mp4").
	Format string
	// Filename is the base name of the downloaded file.
	Filename string
	// Title and ID come from the downloader's metadata when available.
	Title       string
	ID          string
	DurationSec float64
}

// Acquirer fetches a video with its audio into a workspace.
// Implementations must be safe for concurrent use.
type Acquirer interface {
	Acquire(ctx context.Context, sourceURL string, ws *workspace.Workspace) (Source, error)
}

// YTDLP implements Acquirer by running the yt-dlp CLI.
type YTDLP struct {
	binary string
	runner command.Runner
}

// Option is a function that configures a YTDLP.
type Option func(*YTDLP)

// WithBinary sets the yt-dlp binary. Empty keeps the default.
func WithBinary(path string) Option {
	return func(y *YTDLP) {
		if path != "" {
			y.binary = path
		}
	}
}

// WithRunner sets the command runner.
func WithRunner(r command.Runner) Option {
	return func(y *YTDLP) {
		y.runner = r
	}
}

// NewYTDLP creates a YTDLP that runs "yt-dlp" from PATH by default.
func NewYTDLP(opts ...Option) *YTDLP {
	y := &YTDLP{
		binary: "yt-dlp",
		runner: command.NewExecRunner(),
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// info is the subset of yt-dlp's JSON metadata we read.
type info struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Ext      string  `json:"ext"`
	Filename string  `json:"_filename"`
	Duration float64 `json:"duration"`
}

// Acquire implements Acquirer. The best video and best audio streams are
// merged into an mp4 at <workspace>/source.<ext>.
func (y *YTDLP) Acquire(ctx context.Context, sourceURL string, ws *workspace.Workspace) (Source, error) {
	if err := ValidateURL(sourceURL); err != nil {
		return Source{}, err
	}

	template := filepath.Join(ws.Dir, outputStem+".%(ext)s")
	args := []string{
		"-f", "bestvideo+bestaudio/best",
		"--merge-output-format", "mp4",
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"-j", "--no-simulate",
		"-o", template,
		"--", sourceURL,
	}

	out, err := y.runner.Run(ctx, y.binary, args...)
	if err != nil {
		return Source{}, fmt.Errorf("yt-dlp: %w", err)
	}

	meta := parseInfo(out.Stdout)

	path, err := locateOutput(ws.Dir)
	if err != nil {
		return Source{}, err
	}
	if !ws.Contains(path) {
		return Source{}, fmt.Errorf("%w: %s outside workspace", ErrNoOutput, path)
	}

	format := strings.TrimPrefix(filepath.Ext(path), ".")
	if format == "" {
		format = meta.Ext
	}

	return Source{
		Artifact:    workspace.Artifact{Path: path, Kind: workspace.KindVideoWithAudio},
		Format:      format,
		Filename:    filepath.Base(path),
		Title:       meta.Title,
		ID:          meta.ID,
		DurationSec: meta.Duration,
	}, nil
}

// ValidateURL accepts only absolute http and https URLs with a host.
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidReference, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidReference, raw)
	}
	return nil
}

// parseInfo reads the last JSON object printed by yt-dlp. Unparseable output
// yields empty metadata; the downloaded file is what matters.
func parseInfo(stdout string) info {
	var meta info
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		if err := json.Unmarshal([]byte(line), &meta); err == nil {
			return meta
		}
	}
	return info{}
}

// locateOutput finds the merged download, ignoring yt-dlp's partial and
// per-format intermediates.
func locateOutput(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, outputStem+".*"))
	if err != nil {
		return "", fmt.Errorf("glob output: %w", err)
	}

	var candidates []string
	for _, m := range matches {
		name := filepath.Base(m)
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") || strings.Count(name, ".") > 1 {
			continue
		}
		st, err := os.Stat(m)
		if err != nil || st.IsDir() || st.Size() == 0 {
			continue
		}
		candidates = append(candidates, m)
	}
	if len(candidates) == 0 {
		return "", ErrNoOutput
	}

	// prefer the mp4 merge result when several containers are present
	sort.SliceStable(candidates, func(i, j int) bool {
		return filepath.Ext(candidates[i]) == ".mp4" && filepath.Ext(candidates[j]) != ".mp4"
	})
	return candidates[0], nil
}

// Verify interface implementation at compile time.
var _ Acquirer = (*YTDLP)(nil)
