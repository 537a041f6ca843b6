package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/imfs/pkg/cli"
	"github.com/haivivi/imfs/pkg/imfs"
	"github.com/haivivi/imfs/pkg/tree"
	"github.com/haivivi/imfs/pkg/vpath"
)

var importMerge bool

var importCmd = &cobra.Command{
	Use:   "import <local-dir> [dst]",
	Short: "Copy a local directory tree into the store",
	Long: `Copy every directory and regular file below a local directory into dst
(default /). Without --merge the first existing name aborts the import.
With --merge, existing directories are merged and colliding files are
stored as "Copy-<n>-of-<name>".`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if fi, err := os.Stat(args[0]); err != nil {
			return err
		} else if !fi.IsDir() {
			return fmt.Errorf("%s is not a directory", args[0])
		}
		src := tree.FSSource{FS: os.DirFS(args[0]), Root: "."}
		return withSession(ctx, func(s *imfs.Session) error {
			dst, err := argPath(s, args, 1)
			if err != nil {
				return err
			}
			if importMerge {
				err = tree.Merge(ctx, s, src, dst)
			} else {
				err = tree.Import(ctx, s, src, dst)
			}
			if err != nil {
				return err
			}
			cli.PrintSuccess(cmd.OutOrStdout(), "imported %s into %s", args[0], vpath.FormatURI(s.ID(), dst))
			return nil
		})
	},
}

// matchView is the structured form of a grep match.
type matchView struct {
	Path string `json:"path" yaml:"path"`
	Line int    `json:"line" yaml:"line"`
	Text string `json:"text" yaml:"text"`
}

var grepCmd = &cobra.Command{
	Use:   "grep <pattern> [root]",
	Short: "Find lines matching a regular expression",
	Long: `Print every line below root (default /) that the pattern matches in
full, as "path:line:text". The pattern is a Go regular expression.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withSession(ctx, func(s *imfs.Session) error {
			root, err := argPath(s, args, 1)
			if err != nil {
				return err
			}
			matches, err := tree.Grep(ctx, s, root, args[0])
			if err != nil {
				return err
			}
			var views []matchView
			w := cmd.OutOrStdout()
			for m, err := range matches {
				if err != nil {
					return err
				}
				if structured(cmd) {
					views = append(views, matchView{Path: vpath.Abs(m.Path), Line: m.Line, Text: m.Text})
					continue
				}
				fmt.Fprintf(w, "%s:%d:%s\n", vpath.Abs(m.Path), m.Line, m.Text)
			}
			if structured(cmd) {
				return output(cmd, views)
			}
			return nil
		})
	},
}

func init() {
	importCmd.Flags().BoolVar(&importMerge, "merge", false, "merge into existing entries instead of failing")

	rootCmd.AddCommand(importCmd, grepCmd)
}
