package main

import (
	"github.com/spf13/cobra"
)

const rootLongDesc = `chatstream turns chunked model output into typed streams.

  chatstream serve               Relay an upstream SSE or NDJSON stream as NDJSON
  chatstream decode [file]       Decode a captured stream to one JSON value per line
  chatstream version             Print build information`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chatstream",
		Short:         "Streaming decoder and relay for chat completions",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newDecodeCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}
