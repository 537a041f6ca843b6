package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/haivivi/imfs/cmd/imfs/internal/config"
	"github.com/haivivi/imfs/pkg/cli"
)

var (
	// Global flags
	verbose      bool
	contextName  string
	storeID      string
	outputFormat cli.OutputFormat
	query        string

	// Global configuration (loaded at init time)
	globalConfig *config.Config
)

// defaultStore is the store ID used when -s is not given.
const defaultStore = "default"

var rootCmd = &cobra.Command{
	Use:   "imfs",
	Short: "Inspect and edit imfs stores",
	Long: `imfs - a command line interface for in-memory file system stores.

A context describes one storage backend (Badger directory, blob location,
compression). A store is one isolated directory tree inside it, selected
with -s. Paths are written "/math/x.txt", "math/x.txt" or
"imfs://<store>/math/x.txt".

Configuration is stored in the OS config directory:
  macOS:   ~/Library/Application Support/imfs/
  Linux:   ~/.config/imfs/
  Windows: %AppData%/imfs/

Examples:
  # Create a persistent context
  imfs config add-context local --data-dir ~/.local/share/imfs --compression zstd
  imfs config use-context local

  # Work with the default store
  imfs mkdir -p /math/algebra
  echo "x = 1" | imfs put /math/algebra/x.txt
  imfs tree
  imfs grep 'x = .*'

  # Another store in the same context
  imfs -s lesson2 import ./lesson /`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.StringVarP(&contextName, "context", "c", "", "context to use (default: current context)")
	pf.StringVarP(&storeID, "store", "s", defaultStore, "store ID")
	pf.VarP(&outputFormat, "output", "o", "output format (yaml, json, raw)")
	pf.StringVar(&query, "query", "", "jq expression applied to structured output")
}

// configLoadErr stores the error from config.Load() for deferred reporting.
var configLoadErr error

func initConfig() {
	cfg, err := config.Load()
	if err != nil {
		// Commands that need config report it via GetConfig.
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

// GetConfig returns the global configuration.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// output writes a structured result honoring -o and --query.
func output(cmd *cobra.Command, result any) error {
	return cli.Output(result, cli.OutputOptions{
		Format: outputFormat,
		Query:  query,
		Writer: cmd.OutOrStdout(),
	})
}

// structured reports whether the user asked for structured output instead
// of the command's plain rendering.
func structured(cmd *cobra.Command) bool {
	return query != "" || cmd.Flags().Changed("output")
}
