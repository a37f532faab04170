package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maauso/dubbing-api/internal/bootstrap"
	"github.com/maauso/dubbing-api/internal/config"
	"github.com/maauso/dubbing-api/internal/server"
)

// errReported marks failures whose JSON error body was already printed.
var errReported = errors.New("run failed")

// serviceFactory builds the pipeline a command drives.
type serviceFactory func(ctx context.Context, envFile string) (server.Dubber, error)

func newRootCommand(newService serviceFactory) *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "dubctl",
		Short:         "Dub videos from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional .env file loaded before the environment")

	load := func(cmd *cobra.Command) (server.Dubber, error) {
		return newService(cmd.Context(), envFile)
	}

	rootCmd.AddCommand(newDubCommand(load))
	rootCmd.AddCommand(newDetectCommand(load))

	return rootCmd
}

// newServiceFromEnv wires the real pipeline from configuration. Logs go to
// stderr so stdout carries only the JSON result.
func newServiceFromEnv(ctx context.Context, envFile string) (server.Dubber, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	deps, err := bootstrap.NewDependencies(ctx, cfg, cfg.NewLoggerTo(os.Stderr))
	if err != nil {
		return nil, fmt.Errorf("initialize dependencies: %w", err)
	}
	return deps.DubService, nil
}
