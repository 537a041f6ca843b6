package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"

	"github.com/google/shlex"

	"github.com/haivivi/imfs/pkg/tree"
	"github.com/haivivi/imfs/pkg/vpath"
)

// ErrUsage is returned by Exec for an unknown command or wrong arguments.
var ErrUsage = errors.New("shell: usage")

// ErrExit is returned by Exec for "exit" and "quit".
var ErrExit = errors.New("shell: exit")

type command struct {
	usage string
	min   int
	max   int // -1 for no limit
	run   func(ctx context.Context, sh *Shell, args []string, out io.Writer) error
}

var commands = map[string]command{
	"pwd": {"pwd", 0, 0, func(_ context.Context, sh *Shell, _ []string, out io.Writer) error {
		_, err := fmt.Fprintln(out, sh.Pwd())
		return err
	}},
	"ls": {"ls", 0, 0, func(ctx context.Context, sh *Shell, _ []string, out io.Writer) error {
		names, err := sh.Ls(ctx)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
		return nil
	}},
	"cd": {"cd <dir>", 0, 1, func(ctx context.Context, sh *Shell, args []string, _ io.Writer) error {
		target := "/"
		if len(args) == 1 {
			target = args[0]
		}
		next, err := sh.Cd(ctx, target)
		if err != nil {
			return err
		}
		sh.cwd = next.cwd
		return nil
	}},
	"mkdir": {"mkdir <dir>...", 1, -1, func(ctx context.Context, sh *Shell, args []string, _ io.Writer) error {
		for _, a := range args {
			if _, err := sh.Mkdir(ctx, a); err != nil {
				return err
			}
		}
		return nil
	}},
	"rmdir": {"rmdir <name>...", 1, -1, func(ctx context.Context, sh *Shell, args []string, _ io.Writer) error {
		for _, a := range args {
			if err := sh.Rmdir(ctx, a); err != nil {
				return err
			}
		}
		return nil
	}},
	"rmdirs": {"rmdirs <dir>...", 1, -1, func(ctx context.Context, sh *Shell, args []string, _ io.Writer) error {
		for _, a := range args {
			if err := sh.Rmdirs(ctx, a); err != nil {
				return err
			}
		}
		return nil
	}},
	"mkfile": {"mkfile <file>...", 1, -1, func(ctx context.Context, sh *Shell, args []string, _ io.Writer) error {
		for _, a := range args {
			if err := sh.Mkfile(ctx, a); err != nil {
				return err
			}
		}
		return nil
	}},
	"write": {"write <file> <line>...", 1, -1, func(ctx context.Context, sh *Shell, args []string, _ io.Writer) error {
		return sh.Write(ctx, args[0], args[1:])
	}},
	"cat": {"cat <file>...", 1, -1, func(ctx context.Context, sh *Shell, args []string, out io.Writer) error {
		for _, a := range args {
			lines, err := sh.ReadLines(ctx, a)
			if err != nil {
				return err
			}
			for _, l := range lines {
				fmt.Fprintln(out, l)
			}
		}
		return nil
	}},
	"mv": {"mv <src> <dst>", 2, 2, func(ctx context.Context, sh *Shell, args []string, _ io.Writer) error {
		return sh.Mv(ctx, args[0], args[1])
	}},
	"cp": {"cp <src> <dst>", 2, 2, func(ctx context.Context, sh *Shell, args []string, _ io.Writer) error {
		return sh.Cp(ctx, args[0], args[1])
	}},
	"find": {"find <name>", 1, 1, func(ctx context.Context, sh *Shell, args []string, out io.Writer) error {
		uri, err := sh.Find(ctx, args[0])
		if err != nil {
			return err
		}
		if uri == "" {
			uri = "not found"
		}
		_, err = fmt.Fprintln(out, uri)
		return err
	}},
	"grep": {"grep <pattern> [dir]", 1, 2, func(ctx context.Context, sh *Shell, args []string, out io.Writer) error {
		root := sh.cwd
		if len(args) == 2 {
			root = sh.resolve(args[1])
		}
		seq, err := tree.Grep(ctx, sh.s, root, args[0])
		if err != nil {
			return err
		}
		for m, err := range seq {
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s:%d:%s\n", vpath.Abs(m.Path), m.Line, m.Text)
		}
		return nil
	}},
}

// Commands returns the usage line of every command, sorted.
func Commands() []string {
	out := make([]string, 0, len(commands)+2)
	for _, c := range commands {
		out = append(out, c.usage)
	}
	out = append(out, "help", "exit")
	sort.Strings(out)
	return out
}

// Exec parses one command line and runs it, writing output to out. Words
// are split like a POSIX shell, so names with spaces can be quoted. An
// empty line does nothing. "cd" changes the receiver's directory.
func (sh *Shell) Exec(ctx context.Context, line string, out io.Writer) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if len(args) == 0 {
		return nil
	}
	name, args := args[0], args[1:]
	switch name {
	case "exit", "quit":
		return ErrExit
	case "help":
		_, err := fmt.Fprintln(out, strings.Join(Commands(), "\n"))
		return err
	}
	c, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", ErrUsage, name)
	}
	if len(args) < c.min || (c.max >= 0 && len(args) > c.max) {
		return fmt.Errorf("%w: %s", ErrUsage, c.usage)
	}
	return c.run(ctx, sh, args, out)
}

func pathErr(op, p string, err error) error {
	return &fs.PathError{Op: op, Path: vpath.Abs(p), Err: err}
}
