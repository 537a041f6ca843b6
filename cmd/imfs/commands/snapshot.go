package commands

import (
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/imfs/pkg/cli"
	"github.com/haivivi/imfs/pkg/imfs"
	"github.com/haivivi/imfs/pkg/snapshot"
	"github.com/haivivi/imfs/pkg/vpath"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save and load store snapshots",
	Long: `Save a directory and everything below it to a single CBOR file, and load
it back into any store.

Examples:
  imfs snapshot save /math math.snap
  imfs -s other snapshot load math.snap /lessons
  imfs snapshot load --merge math.snap /math`,
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save <dir> [file|-]",
	Short: "Write a snapshot of dir to a file or stdout",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withSession(ctx, func(s *imfs.Session) error {
			root, err := resolvePath(s, args[0])
			if err != nil {
				return err
			}
			toStdout := len(args) == 1 || args[1] == "-"
			var w io.Writer = cmd.OutOrStdout()
			if !toStdout {
				f, err := os.Create(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			start := time.Now()
			st, err := snapshot.Save(ctx, s, root, w)
			if err != nil {
				return err
			}
			if !toStdout {
				cli.PrintSuccess(cmd.OutOrStdout(), "saved %s: %d dirs, %d files, %s in %s",
					vpath.FormatURI(s.ID(), root), st.Dirs, st.Files, cli.FormatBytes(st.Bytes), cli.FormatDuration(time.Since(start)))
			}
			return nil
		})
	},
}

var snapshotMerge bool

var snapshotLoadCmd = &cobra.Command{
	Use:   "load <file|-> [dst]",
	Short: "Load a snapshot below dst",
	Long: `Recreate the entries of a snapshot below dst (default /). Without
--merge the first existing name aborts the load.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var r io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		return withSession(ctx, func(s *imfs.Session) error {
			dst, err := argPath(s, args, 1)
			if err != nil {
				return err
			}
			h, err := snapshot.Load(ctx, s, r, dst, snapshotMerge)
			if err != nil {
				return err
			}
			cli.PrintSuccess(cmd.OutOrStdout(), "loaded %s into %s",
				vpath.FormatURI(h.Store, h.Root), vpath.FormatURI(s.ID(), dst))
			return nil
		})
	},
}

func init() {
	snapshotLoadCmd.Flags().BoolVar(&snapshotMerge, "merge", false, "merge into existing entries instead of failing")

	snapshotCmd.AddCommand(snapshotSaveCmd, snapshotLoadCmd)
	rootCmd.AddCommand(snapshotCmd)
}
