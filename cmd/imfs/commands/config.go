package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/imfs/cmd/imfs/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage contexts. A context is a named directory holding a store.yaml
that says where stores keep their indexes and content.

Keys: ` + strings.Join(config.Keys(), ", ") + `

Examples:
  imfs config list-contexts
  imfs config add-context local --data-dir ~/.local/share/imfs
  imfs config use-context local
  imfs config current-context
  imfs config set local compression zstd
  imfs config get local data_dir
  imfs config view`,
}

var configListContextsCmd = &cobra.Command{
	Use:     "list-contexts",
	Aliases: []string{"ls"},
	Short:   "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		names, err := cfg.ListContexts()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(names) == 0 {
			fmt.Fprintln(out, "No contexts configured.")
			fmt.Fprintln(out, "Create one with: imfs config add-context <name>")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tDATA_DIR\tBLOBS")
		for _, name := range names {
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			dataDir, blobs := "(memory)", config.BlobsKV
			if sc, err := config.LoadStore(cfg.ContextDir(name)); err == nil {
				if sc.DataDir != "" {
					dataDir = sc.DataDir
				}
				if sc.Blobs != "" {
					blobs = sc.Blobs
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", current, name, dataDir, blobs)
		}
		return w.Flush()
	},
}

var newContext config.StoreConfig

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Create a new context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		name := args[0]

		sc := newContext
		if err := cfg.AddContext(name, &sc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Context %q created.\n", name)
		fmt.Fprintf(cmd.OutOrStdout(), "Switch to it with: imfs config use-context %s\n", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context (stored data is kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Context %q deleted.\n", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q.\n", args[0])
		return nil
	},
}

var configCurrentContextCmd = &cobra.Command{
	Use:   "current-context",
	Short: "Display the current context name",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No current context set.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.CurrentContext)
		return nil
	},
}

// loadContext returns the directory and store configuration of a context.
func loadContext(cfg *config.Config, name string) (string, *config.StoreConfig, error) {
	if err := config.ValidateContextName(name); err != nil {
		return "", nil, err
	}
	dir := cfg.ContextDir(name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return "", nil, fmt.Errorf("context %q not found", name)
	}
	sc, err := config.LoadStore(dir)
	if err != nil {
		return "", nil, err
	}
	return dir, sc, nil
}

var configSetCmd = &cobra.Command{
	Use:   "set <context> <key> <value>",
	Short: "Set a store config value",
	Long: `Set a key in a context's store.yaml. Seed directories are given as a
comma-separated list.

Examples:
  imfs config set local data_dir /var/lib/imfs
  imfs config set local blobs s3
  imfs config set local s3.bucket lessons
  imfs config set local seed history,math,Spanish`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		ctxName, key, value := args[0], args[1], args[2]
		dir, sc, err := loadContext(cfg, ctxName)
		if err != nil {
			return err
		}
		if err := sc.Set(key, value); err != nil {
			return err
		}
		if err := config.SaveStore(dir, sc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s (context: %s)\n", key, value, ctxName)
		// Half-configured backends are allowed while editing; say so.
		if err := sc.Validate(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <context> <key>",
	Short: "Get a store config value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		_, sc, err := loadContext(cfg, args[0])
		if err != nil {
			return err
		}
		v, err := sc.Get(args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view [context]",
	Short: "Show a context's store configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		name := cfg.CurrentContext
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			return fmt.Errorf("no current context set; use 'imfs config use-context <name>'")
		}
		_, sc, err := loadContext(cfg, name)
		if err != nil {
			return err
		}
		return output(cmd, sc)
	},
}

func init() {
	f := configAddContextCmd.Flags()
	f.StringVar(&newContext.DataDir, "data-dir", "", "Badger directory (empty keeps stores in memory)")
	f.StringVar(&newContext.Blobs, "blobs", "", "blob backend: kv, local or s3")
	f.StringVar(&newContext.BlobDir, "blob-dir", "", "root directory for local blobs")
	f.StringVar(&newContext.S3.Bucket, "s3-bucket", "", "bucket for s3 blobs")
	f.StringVar(&newContext.S3.Prefix, "s3-prefix", "", "object key prefix for s3 blobs")
	f.StringVar(&newContext.S3.Region, "s3-region", "", "region for s3 blobs")
	f.StringVar(&newContext.S3.Endpoint, "s3-endpoint", "", "endpoint for S3-compatible services")
	f.StringVar(&newContext.Compression, "compression", "", "blob compression: none, lz4 or zstd")
	f.StringSliceVar(&newContext.Seed, "seed", nil, "directories every new store starts with")

	configCmd.AddCommand(
		configListContextsCmd,
		configAddContextCmd,
		configDeleteContextCmd,
		configUseContextCmd,
		configCurrentContextCmd,
		configSetCmd,
		configGetCmd,
		configViewCmd,
	)
	rootCmd.AddCommand(configCmd)
}
