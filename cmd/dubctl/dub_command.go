package main

import (
	"github.com/spf13/cobra"

	"github.com/maauso/dubbing-api/internal/dub"
	"github.com/maauso/dubbing-api/internal/server"
)

func newDubCommand(load func(*cobra.Command) (server.Dubber, error)) *cobra.Command {
	var sourceURL, lang string

	cmd := &cobra.Command{
		Use:   "dub",
		Short: "Dub a video into another language and print its public link",
		Long: `Download the video, detect the speaker's voice register, transcribe and
translate the speech, synthesize it in the target language and publish the
remuxed result.

Examples:
  dubctl dub --url https://youtu.be/abc --lang hindi
  dubctl dub --url https://example.com/talk.mp4 --lang ta`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := load(cmd)
			if err != nil {
				return err
			}

			res, err := svc.Dub(cmd.Context(), dub.Request{SourceURL: sourceURL, TargetLanguage: lang})
			if err != nil {
				return reportError(cmd, err)
			}
			return writeJSON(cmd, server.NewDubResponse(res))
		},
	}

	cmd.Flags().StringVar(&sourceURL, "url", "", "Source video URL")
	cmd.Flags().StringVar(&lang, "lang", "english", "Target language name or code")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}
