// Package bootstrap provides dependency initialization for the dubbing API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/dubbing-api/internal/acquire"
	"github.com/maauso/dubbing-api/internal/audio"
	"github.com/maauso/dubbing-api/internal/command"
	"github.com/maauso/dubbing-api/internal/config"
	"github.com/maauso/dubbing-api/internal/dub"
	"github.com/maauso/dubbing-api/internal/httpretry"
	"github.com/maauso/dubbing-api/internal/media"
	"github.com/maauso/dubbing-api/internal/storage"
	"github.com/maauso/dubbing-api/internal/transcribe"
	"github.com/maauso/dubbing-api/internal/translate"
	"github.com/maauso/dubbing-api/internal/tts"
	"github.com/maauso/dubbing-api/internal/workspace"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	DubService *dub.Service
	// StaticDir is the directory to serve published files from. It is empty
	// when results go to S3.
	StaticDir string
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize per-run workspaces
	workspaces, err := workspace.NewManager(cfg.WorkDir, logger)
	if err != nil {
		return nil, fmt.Errorf("create workspace manager: %w", err)
	}

	// Initialize publisher
	publisher, staticDir, err := initPublisher(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Subprocess adapters share one runner
	runner := command.NewExecRunner()

	// HTTP adapters share one retrying client
	httpClient := httpretry.New(httpretry.WithTimeout(cfg.HTTPTimeout))

	svc, err := dub.NewService(dub.Dependencies{
		Workspaces: workspaces,
		Acquirer: acquire.NewYTDLP(
			acquire.WithBinary(cfg.YTDLPPath),
			acquire.WithRunner(runner),
		),
		Media: media.NewFFmpegProcessor(
			media.WithFFmpegPath(cfg.FFmpegPath),
			media.WithFFprobePath(cfg.FFprobePath),
			media.WithRunner(runner),
		),
		Profiler: audio.NewPitchProfiler(
			audio.WithThreshold(cfg.VoiceThresholdHz),
			audio.WithBand(cfg.PitchMinHz, cfg.PitchMaxHz),
			audio.WithLogger(logger),
		),
		Transcriber: transcribe.NewWhisper(
			transcribe.WithBinary(cfg.WhisperPath),
			transcribe.WithModel(cfg.WhisperModel),
			transcribe.WithRunner(runner),
			transcribe.WithMaxConcurrent(cfg.MaxConcurrentTranscriptions),
		),
		Translator: translate.NewGoogleTranslator(
			translate.WithBaseURL(cfg.TranslateBaseURL),
			translate.WithClient(httpClient),
		),
		Synthesizer: tts.NewGoogleTTS(
			tts.WithBaseURL(cfg.TTSBaseURL),
			tts.WithClient(httpClient),
			tts.WithLanguageFilter(translate.IsSupportedCode),
		),
		Publisher: publisher,
	},
		dub.WithMaxConcurrentRuns(cfg.MaxConcurrentRuns),
		dub.WithRunTimeout(cfg.RunTimeout),
		dub.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create dubbing service: %w", err)
	}

	return &Dependencies{
		DubService: svc,
		StaticDir:  staticDir,
	}, nil
}

// initPublisher creates the appropriate publisher based on configuration.
// The returned directory is non-empty for the local publisher.
func initPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Publisher, string, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Folder:          cfg.DestFolder,
		}
		pub, err := storage.NewS3Publisher(ctx, s3Cfg)
		if err != nil {
			return nil, "", fmt.Errorf("create S3 publisher: %w", err)
		}
		logger.Info("S3 publisher configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("folder", cfg.DestFolder),
		)
		return pub, "", nil
	}

	pub, err := storage.NewLocalPublisher(cfg.PublicDir, cfg.DestFolder, cfg.PublicBaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("create local publisher: %w", err)
	}
	logger.Info("local publisher configured",
		slog.String("public_dir", pub.PublicDir()),
		slog.String("base_url", cfg.PublicBaseURL),
	)
	return pub, pub.PublicDir(), nil
}
