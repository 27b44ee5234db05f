// Command changed-debug replays recorded ansible-runner job events through
// the changed_debug callback and validates the documents it produces.
package main

import (
	"os"
)

// These variables are populated by the build via -ldflags.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}
