// Package shell is a working-directory view of a session with one method
// per shell verb: Pwd, Ls, Cd, Mkdir, Rmdir and so on. Names passed to the
// methods are resolved against the working directory; "." and ".." work,
// and a leading "/" starts from the root.
//
// Methods that change directory return a new Shell and leave the receiver
// alone. Exec runs a command line and moves the receiver itself, which is
// what an interactive prompt wants.
package shell

import (
	"context"
	"errors"
	"strings"

	"github.com/haivivi/imfs/pkg/imfs"
	"github.com/haivivi/imfs/pkg/tree"
	"github.com/haivivi/imfs/pkg/vpath"
)

// Shell is a session plus a current directory.
type Shell struct {
	s   *imfs.Session
	cwd string
}

// New returns a shell at the root of s.
func New(s *imfs.Session) *Shell {
	return &Shell{s: s}
}

// At returns a shell whose working directory is dir, which must exist and
// be a directory.
func At(ctx context.Context, s *imfs.Session, dir string) (*Shell, error) {
	return New(s).Cd(ctx, vpath.Abs(dir))
}

// Session returns the underlying session.
func (sh *Shell) Session() *imfs.Session { return sh.s }

// Dir returns the working directory as a materialized path.
func (sh *Shell) Dir() string { return sh.cwd }

func (sh *Shell) resolve(name string) string {
	return vpath.Resolve(sh.cwd, name)
}

// Pwd returns the working directory in absolute form: "/" or "/math".
func (sh *Shell) Pwd() string {
	return vpath.Abs(sh.cwd)
}

// Ls returns the names of the entries in the working directory.
func (sh *Shell) Ls(ctx context.Context) ([]string, error) {
	infos, err := sh.s.ReadDir(ctx, sh.cwd)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(infos))
	for i, info := range infos {
		out[i] = info.Name()
	}
	return out, nil
}

// Cd returns a shell in the named directory. ".." at the root stays at the
// root. The target must exist and be a directory.
func (sh *Shell) Cd(ctx context.Context, name string) (*Shell, error) {
	p := sh.resolve(name)
	info, err := sh.s.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, pathErr("cd", p, imfs.ErrNotDirectory)
	}
	return &Shell{s: sh.s, cwd: p}, nil
}

// Mkdir creates a directory and returns a shell in it.
func (sh *Shell) Mkdir(ctx context.Context, name string) (*Shell, error) {
	p := sh.resolve(name)
	if err := sh.s.Mkdir(ctx, p); err != nil {
		return nil, err
	}
	return &Shell{s: sh.s, cwd: p}, nil
}

// Rmdir removes an empty directory or a file.
func (sh *Shell) Rmdir(ctx context.Context, name string) error {
	return sh.s.Delete(ctx, sh.resolve(name))
}

// Rmdirs removes a directory and everything below it.
func (sh *Shell) Rmdirs(ctx context.Context, name string) error {
	return tree.RemoveAll(ctx, sh.s, sh.resolve(name))
}

// Mkfile creates an empty file. It fails if the name is taken.
func (sh *Shell) Mkfile(ctx context.Context, name string) error {
	return sh.s.WriteFile(ctx, sh.resolve(name), nil, true)
}

// Write creates a new file holding lines, each terminated by "\n". It fails
// if the name is taken.
func (sh *Shell) Write(ctx context.Context, name string, lines []string) error {
	w, err := sh.s.Create(ctx, sh.resolve(name))
	if err != nil {
		return err
	}
	for _, line := range lines {
		w.WriteString(line)
		w.WriteString("\n")
	}
	return w.Close()
}

// ReadLines returns the lines of a file without their terminators.
func (sh *Shell) ReadLines(ctx context.Context, name string) ([]string, error) {
	data, err := sh.s.ReadFile(ctx, sh.resolve(name))
	if err != nil {
		return nil, err
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return []string{}, nil
	}
	return strings.Split(text, "\n"), nil
}

// Mv moves one entry. A non-empty directory is copied but not removed; see
// imfs.Session.Move.
func (sh *Shell) Mv(ctx context.Context, src, dst string) error {
	return sh.s.Move(ctx, sh.resolve(src), sh.resolve(dst))
}

// Cp copies one entry. Directories are copied without their children.
func (sh *Shell) Cp(ctx context.Context, src, dst string) error {
	return sh.s.Copy(ctx, sh.resolve(src), sh.resolve(dst))
}

// Find returns the imfs:// URI of the named entry, or "" if it does not
// exist.
func (sh *Shell) Find(ctx context.Context, name string) (string, error) {
	p := sh.resolve(name)
	err := sh.s.Access(ctx, p)
	switch {
	case errors.Is(err, imfs.ErrNotFound):
		return "", nil
	case err != nil:
		return "", err
	}
	return vpath.FormatURI(sh.s.ID(), p), nil
}
