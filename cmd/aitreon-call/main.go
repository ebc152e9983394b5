// Package main is the entry point for the aitreon-call CLI.
//
// Usage:
//
//	aitreon-call [flags] <command> [args]
//
// Commands:
//
//	call       - Start a voice call with a creator
//	logs       - Browse journaled calls and transcripts
//	config     - Configuration management
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/danieledinun/aitreon-sub001/cmd/aitreon-call/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
