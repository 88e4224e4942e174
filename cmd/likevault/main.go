// Package main is the likevault command line: it archives a user's liked
// posts and the media they reference into a local store.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "0.1.0"

func main() {
	os.Exit(run(newRootCmd(), os.Stderr))
}

// run executes cmd and reports any error on stderr. Errors raised before
// logging is configured, such as bad flags or configuration, surface here.
func run(cmd *cobra.Command, stderr io.Writer) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "likevault: %v\n", err)
		return 1
	}
	return 0
}
