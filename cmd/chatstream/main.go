// Command chatstream relays streamed model output as NDJSON and decodes
// captured SSE or line streams offline.
package main

import (
	"os"
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
