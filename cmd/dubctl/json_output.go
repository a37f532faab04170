package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maauso/dubbing-api/internal/server"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportError prints the error body the HTTP API would return for err.
func reportError(cmd *cobra.Command, err error) error {
	_, resp := server.NewErrorResponse(err)
	if werr := writeJSON(cmd, resp); werr != nil {
		return fmt.Errorf("%w (and writing the error failed: %v)", err, werr)
	}
	return fmt.Errorf("%w: %w", errReported, err)
}
