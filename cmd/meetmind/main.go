// Command meetmind answers questions about recorded meetings. It indexes
// transcripts, documents and audio into a vector store and serves search
// over HTTP, MCP and the command line.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/meetmind/cmd/meetmind/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
