package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/imfs/pkg/cli"
	"github.com/haivivi/imfs/pkg/imfs"
	"github.com/haivivi/imfs/pkg/shell"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell on the store",
	Long: `Read commands from stdin and run them against the store, one per line.
Type "help" for the command list and "exit" to leave. Errors are printed
and the shell continues.

Without a configured context the store lives in memory for the duration
of the shell.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withSession(ctx, func(s *imfs.Session) error {
			return runShell(cmd, shell.New(s), cmd.InOrStdin(), cmd.OutOrStdout())
		})
	},
}

func runShell(cmd *cobra.Command, sh *shell.Shell, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	prompt := func() { fmt.Fprintf(out, "%s:%s$ ", sh.Session().ID(), sh.Pwd()) }
	prompt()
	for sc.Scan() {
		err := sh.Exec(cmd.Context(), strings.TrimSpace(sc.Text()), out)
		switch {
		case errors.Is(err, shell.ErrExit):
			return nil
		case err != nil:
			fmt.Fprintf(out, "Error: %v\n", err)
		}
		prompt()
	}
	fmt.Fprintln(out)
	return sc.Err()
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete everything in the store and re-create its seed directories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		b, err := openBackend()
		if err != nil {
			return err
		}
		defer b.Close()
		if err := b.registry.Reset(ctx, storeID); err != nil {
			return err
		}
		cli.PrintSuccess(cmd.OutOrStdout(), "store %q reset", storeID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(shellCmd, resetCmd)
}
