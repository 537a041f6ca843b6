// Package main is the entry point for the imfs CLI.
//
// Usage:
//
//	imfs [-c context] [-s store] [flags] <command> [args]
//
// Commands:
//
//	ls, tree, stat     - Inspect directories and files
//	mkdir, rm, cp, mv  - Change the tree
//	cat, put           - Read and write file contents
//	import, grep       - Bring in local trees, search file lines
//	snapshot           - Save and load CBOR snapshots
//	shell, reset       - Interactive shell, reset a store to its seed
//	config             - Configuration management (contexts)
//	version            - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/imfs/cmd/imfs/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
