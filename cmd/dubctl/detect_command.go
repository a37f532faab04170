package main

import (
	"github.com/spf13/cobra"

	"github.com/maauso/dubbing-api/internal/server"
)

func newDetectCommand(load func(*cobra.Command) (server.Dubber, error)) *cobra.Command {
	var sourceURL string

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Classify the speaker of a video as male or female",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := load(cmd)
			if err != nil {
				return err
			}

			res, err := svc.DetectVoice(cmd.Context(), sourceURL)
			if err != nil {
				return reportError(cmd, err)
			}
			return writeJSON(cmd, server.NewDetectResponse(res))
		},
	}

	cmd.Flags().StringVar(&sourceURL, "url", "", "Source video URL")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}
