// Command threadwatch is the chat thread digest and retrieval system's
// entrypoint: intake, worker pool, scheduler, and HTTP API behind one
// binary with serve/migrate/seed/version subcommands.
package main

import (
	"os"

	"github.com/scalytics/threadwatch/cmd/threadwatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
