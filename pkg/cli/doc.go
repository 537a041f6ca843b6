// Package cli provides output helpers for the imfs command-line tool.
//
// This package includes:
//   - Output formatting (YAML, JSON, raw) with an optional jq query
//   - Human readable sizes and durations
//   - Styled directory tree rendering
//
// Example usage:
//
//	var format cli.OutputFormat
//	cmd.Flags().VarP(&format, "output", "o", "output format")
//
//	cli.Output(result, cli.OutputOptions{
//	    Format: format,
//	    Query:  ".[] | select(.dir) | .path",
//	})
package cli
