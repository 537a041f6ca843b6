package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/imfs/pkg/cli"
	"github.com/haivivi/imfs/pkg/imfs"
	"github.com/haivivi/imfs/pkg/tree"
	"github.com/haivivi/imfs/pkg/vpath"
)

// entryView is the structured form of a directory or file.
type entryView struct {
	Path   string `json:"path" yaml:"path"`
	URI    string `json:"uri" yaml:"uri"`
	Dir    bool   `json:"dir" yaml:"dir"`
	Size   int64  `json:"size" yaml:"size"`
	Digest string `json:"digest,omitempty" yaml:"digest,omitempty"`
}

func view(s *imfs.Session, info imfs.Info) entryView {
	return entryView{
		Path:   vpath.Abs(info.Path()),
		URI:    vpath.FormatURI(s.ID(), info.Path()),
		Dir:    info.IsDir(),
		Size:   info.Size(),
		Digest: info.Digest(),
	}
}

func argPath(s *imfs.Session, args []string, i int) (string, error) {
	if i >= len(args) {
		return vpath.Root, nil
	}
	return resolvePath(s, args[i])
}

var lsCmd = &cobra.Command{
	Use:   "ls [dir]",
	Short: "List a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(s *imfs.Session) error {
			p, err := argPath(s, args, 0)
			if err != nil {
				return err
			}
			infos, err := s.ReadDir(cmd.Context(), p)
			if err != nil {
				return err
			}
			if structured(cmd) {
				views := make([]entryView, len(infos))
				for i, info := range infos {
					views[i] = view(s, info)
				}
				return output(cmd, views)
			}
			w := cmd.OutOrStdout()
			for _, info := range infos {
				if info.IsDir() {
					fmt.Fprintf(w, "%s/\n", info.Name())
				} else {
					fmt.Fprintln(w, info.Name())
				}
			}
			return nil
		})
	},
}

var treeDepth int

var treeCmd = &cobra.Command{
	Use:   "tree [dir]",
	Short: "Show a directory and everything below it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withSession(ctx, func(s *imfs.Session) error {
			p, err := argPath(s, args, 0)
			if err != nil {
				return err
			}
			if structured(cmd) {
				var views []entryView
				err := tree.Walk(ctx, s, p, func(info imfs.Info) error {
					views = append(views, view(s, info))
					return nil
				})
				if err != nil {
					return err
				}
				return output(cmd, views)
			}
			info, err := s.Stat(ctx, p)
			if err != nil {
				return err
			}
			root, err := buildTree(cmd, s, info, treeDepth)
			if err != nil {
				return err
			}
			root.Name = vpath.Abs(p)
			_, err = io.WriteString(cmd.OutOrStdout(), cli.RenderTree(root, cli.NewTreeStyles(cli.DefaultTheme)))
			return err
		})
	},
}

// buildTree loads info and up to depth levels below it. A negative depth
// means no limit.
func buildTree(cmd *cobra.Command, s *imfs.Session, info imfs.Info, depth int) (cli.TreeNode, error) {
	n := cli.TreeNode{Name: info.Name(), IsDir: info.IsDir(), Size: info.Size()}
	if !info.IsDir() || depth == 0 {
		return n, nil
	}
	children, err := s.ReadDir(cmd.Context(), info.Path())
	if err != nil {
		return n, err
	}
	for _, c := range children {
		child, err := buildTree(cmd, s, c, depth-1)
		if err != nil {
			return n, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}

var statCmd = &cobra.Command{
	Use:   "stat <path>...",
	Short: "Show entry details",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(s *imfs.Session) error {
			var views []entryView
			for _, a := range args {
				p, err := resolvePath(s, a)
				if err != nil {
					return err
				}
				info, err := s.Stat(cmd.Context(), p)
				if err != nil {
					return err
				}
				views = append(views, view(s, info))
			}
			if len(views) == 1 {
				return output(cmd, views[0])
			}
			return output(cmd, views)
		})
	},
}

var mkdirParents bool

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <dir>...",
	Short: "Create directories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withSession(ctx, func(s *imfs.Session) error {
			for _, a := range args {
				p, err := resolvePath(s, a)
				if err != nil {
					return err
				}
				if mkdirParents {
					err = s.MkdirAll(ctx, p)
				} else {
					err = s.Mkdir(ctx, p)
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var rmRecursive bool

var rmCmd = &cobra.Command{
	Use:   "rm <path>...",
	Short: "Remove files and directories",
	Long: `Remove files and empty directories. With -r, directories are removed
together with everything below them; "rm -r /" empties the store.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withSession(ctx, func(s *imfs.Session) error {
			for _, a := range args {
				p, err := resolvePath(s, a)
				if err != nil {
					return err
				}
				if rmRecursive {
					err = tree.RemoveAll(ctx, s, p)
				} else {
					err = s.Delete(ctx, p)
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var cpRecursive bool

var cpCmd = &cobra.Command{
	Use:   "cp <src> <dst>",
	Short: "Copy a file or directory",
	Long: `Copy a file, or a directory without its contents. With -r, a directory
is copied together with everything below it.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withSession(ctx, func(s *imfs.Session) error {
			src, dst, err := twoPaths(s, args)
			if err != nil {
				return err
			}
			if cpRecursive {
				return tree.CopyAll(ctx, s, src, dst)
			}
			return s.Copy(ctx, src, dst)
		})
	},
}

var mvRecursive bool

var mvCmd = &cobra.Command{
	Use:   "mv <src> <dst>",
	Short: "Move a file or directory",
	Long: `Move a file or an empty directory. With -r, a directory is moved
together with everything below it.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withSession(ctx, func(s *imfs.Session) error {
			src, dst, err := twoPaths(s, args)
			if err != nil {
				return err
			}
			if mvRecursive {
				return tree.MoveAll(ctx, s, src, dst)
			}
			return s.Move(ctx, src, dst)
		})
	},
}

func twoPaths(s *imfs.Session, args []string) (string, string, error) {
	src, err := resolvePath(s, args[0])
	if err != nil {
		return "", "", err
	}
	dst, err := resolvePath(s, args[1])
	if err != nil {
		return "", "", err
	}
	return src, dst, nil
}

var catCmd = &cobra.Command{
	Use:   "cat <file>...",
	Short: "Print file contents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withSession(ctx, func(s *imfs.Session) error {
			for _, a := range args {
				p, err := resolvePath(s, a)
				if err != nil {
					return err
				}
				data, err := s.ReadFile(ctx, p)
				if err != nil {
					return err
				}
				if _, err := cmd.OutOrStdout().Write(data); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var putNew bool

var putCmd = &cobra.Command{
	Use:   "put <path> [file|-]",
	Short: "Write a file from a local file or stdin",
	Long: `Write a file. The content is read from the named local file, or from
stdin when the file is "-" or omitted. An existing file is replaced unless
--new is given.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var in io.Reader = cmd.InOrStdin()
		if len(args) == 2 && args[1] != "-" {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		return withSession(ctx, func(s *imfs.Session) error {
			p, err := resolvePath(s, args[0])
			if err != nil {
				return err
			}
			w, err := s.OpenWrite(ctx, p, putNew)
			if err != nil {
				return err
			}
			n, err := io.Copy(w, in)
			if err != nil {
				// The empty placeholder stays behind, as with any abandoned writer.
				return fmt.Errorf("put %s: %w", vpath.Abs(p), err)
			}
			if err := w.Close(); err != nil {
				return err
			}
			cli.PrintSuccess(cmd.OutOrStdout(), "wrote %s (%s)", vpath.FormatURI(s.ID(), p), cli.FormatBytes(n))
			return nil
		})
	},
}

func init() {
	treeCmd.Flags().IntVarP(&treeDepth, "depth", "L", -1, "descend at most this many levels")
	mkdirCmd.Flags().BoolVarP(&mkdirParents, "parents", "p", false, "create missing parents, no error if existing")
	rmCmd.Flags().BoolVarP(&rmRecursive, "recursive", "r", false, "remove directories and their contents")
	cpCmd.Flags().BoolVarP(&cpRecursive, "recursive", "r", false, "copy directories recursively")
	mvCmd.Flags().BoolVarP(&mvRecursive, "recursive", "r", false, "move directories recursively")
	putCmd.Flags().BoolVar(&putNew, "new", false, "fail if the file exists")

	rootCmd.AddCommand(lsCmd, treeCmd, statCmd, mkdirCmd, rmCmd, cpCmd, mvCmd, catCmd, putCmd)
}
