package shell_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/haivivi/imfs/pkg/imfs"
	"github.com/haivivi/imfs/pkg/shell"
)

func newShell(t *testing.T) *shell.Shell {
	t.Helper()
	reg := imfs.NewRegistry(imfs.RegistryOptions{Seed: imfs.FixtureDirs})
	t.Cleanup(func() { reg.Close() })
	s, err := reg.Open(context.Background(), "ShellTest")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return shell.New(s)
}

func ls(t *testing.T, sh *shell.Shell) []string {
	t.Helper()
	names, err := sh.Ls(context.Background())
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}
	return names
}

func TestPwd(t *testing.T) {
	sh := newShell(t)
	if got := sh.Pwd(); got != "/" {
		t.Fatalf("Pwd = %q, want /", got)
	}
}

func TestMkdir(t *testing.T) {
	sh := newShell(t)
	ctx := context.Background()
	if got := ls(t, sh); len(got) != 3 {
		t.Fatalf("seeded root = %v", got)
	}
	foo, err := sh.Mkdir(ctx, "foo")
	if err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if got := ls(t, sh); !slices.Equal(got, []string{"Spanish", "foo", "history", "math"}) {
		t.Fatalf("root = %v", got)
	}
	if foo.Pwd() != "/foo" {
		t.Fatalf("new shell Pwd = %q", foo.Pwd())
	}
}

func TestCdSuccess(t *testing.T) {
	sh := newShell(t)
	ctx := context.Background()
	math, err := sh.Cd(ctx, "math")
	if err != nil {
		t.Fatalf("Cd: %v", err)
	}
	if len(ls(t, sh)) != 3 || len(ls(t, math)) != 0 {
		t.Fatal("Cd changed the original shell")
	}
	if math.Pwd() != "/math" {
		t.Fatalf("Pwd = %q, want /math", math.Pwd())
	}

	parent, err := math.Cd(ctx, "..")
	if err != nil {
		t.Fatal(err)
	}
	if parent.Pwd() != "/" || len(ls(t, parent)) != 3 {
		t.Fatalf("parent = %q %v", parent.Pwd(), ls(t, parent))
	}
	same, _ := math.Cd(ctx, ".")
	if same.Pwd() != "/math" {
		t.Fatalf("Cd . = %q", same.Pwd())
	}
	root, _ := parent.Cd(ctx, "..")
	if root.Pwd() != "/" {
		t.Fatalf("Cd .. at root = %q", root.Pwd())
	}
}

func TestCdFailure(t *testing.T) {
	sh := newShell(t)
	ctx := context.Background()
	if _, err := sh.Cd(ctx, "foo"); !errors.Is(err, imfs.ErrNotFound) {
		t.Fatalf("Cd missing = %v, want ErrNotFound", err)
	}
	if err := sh.Mkfile(ctx, "f.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := sh.Cd(ctx, "f.txt"); !errors.Is(err, imfs.ErrNotDirectory) {
		t.Fatalf("Cd file = %v, want ErrNotDirectory", err)
	}
	if sh.Pwd() != "/" {
		t.Fatal("failed Cd moved the shell")
	}
}

func TestCdLevels(t *testing.T) {
	sh := newShell(t)
	ctx := context.Background()
	math, _ := sh.Cd(ctx, "math")
	foo, err := math.Mkdir(ctx, "foo")
	if err != nil {
		t.Fatal(err)
	}
	if got := ls(t, math); !slices.Equal(got, []string{"foo"}) {
		t.Fatalf("math = %v", got)
	}
	if len(ls(t, sh)) != 3 || len(ls(t, foo)) != 0 {
		t.Fatal("unexpected listings")
	}
	if foo.Pwd() != "/math/foo" {
		t.Fatalf("Pwd = %q", foo.Pwd())
	}
	abs, err := foo.Cd(ctx, "/history")
	if err != nil || abs.Pwd() != "/history" {
		t.Fatalf("Cd absolute = %v, %v", abs, err)
	}
}

func TestRmdirAndRmdirs(t *testing.T) {
	sh := newShell(t)
	ctx := context.Background()
	if err := sh.Rmdir(ctx, "history"); err != nil {
		t.Fatalf("Rmdir: %v", err)
	}
	if got := ls(t, sh); !slices.Equal(got, []string{"Spanish", "math"}) {
		t.Fatalf("root = %v", got)
	}
	if _, err := sh.Mkdir(ctx, "math/algebra"); err != nil {
		t.Fatal(err)
	}
	if err := sh.Rmdir(ctx, "math"); !errors.Is(err, imfs.ErrDirectoryNotEmpty) {
		t.Fatalf("Rmdir non-empty = %v", err)
	}
	if err := sh.Rmdirs(ctx, "math"); err != nil {
		t.Fatalf("Rmdirs: %v", err)
	}
	if got := ls(t, sh); !slices.Equal(got, []string{"Spanish"}) {
		t.Fatalf("root = %v", got)
	}
}

func TestWriteReadLines(t *testing.T) {
	sh := newShell(t)
	ctx := context.Background()
	math, _ := sh.Cd(ctx, "math")
	if err := math.Write(ctx, "notes.txt", []string{"one", "two"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, _ := sh.Session().ReadFile(ctx, "math/notes.txt")
	if string(data) != "one\ntwo\n" {
		t.Fatalf("content = %q", data)
	}
	lines, err := sh.ReadLines(ctx, "math/notes.txt")
	if err != nil || !slices.Equal(lines, []string{"one", "two"}) {
		t.Fatalf("ReadLines = %v, %v", lines, err)
	}
	if err := math.Write(ctx, "notes.txt", []string{"again"}); !errors.Is(err, imfs.ErrAlreadyExists) {
		t.Fatalf("Write existing = %v, want ErrAlreadyExists", err)
	}
	if err := sh.Mkfile(ctx, "empty"); err != nil {
		t.Fatal(err)
	}
	if lines, _ := sh.ReadLines(ctx, "empty"); len(lines) != 0 {
		t.Fatalf("ReadLines empty = %v", lines)
	}
}

func TestMvCpFind(t *testing.T) {
	sh := newShell(t)
	ctx := context.Background()
	if err := sh.Write(ctx, "a.txt", []string{"x"}); err != nil {
		t.Fatal(err)
	}
	if err := sh.Cp(ctx, "a.txt", "math/b.txt"); err != nil {
		t.Fatalf("Cp: %v", err)
	}
	if err := sh.Mv(ctx, "a.txt", "history/a.txt"); err != nil {
		t.Fatalf("Mv: %v", err)
	}
	uri, err := sh.Find(ctx, "history/a.txt")
	if err != nil || uri != "imfs://ShellTest/history/a.txt" {
		t.Fatalf("Find = %q, %v", uri, err)
	}
	uri, err = sh.Find(ctx, "a.txt")
	if err != nil || uri != "" {
		t.Fatalf("Find moved source = %q, %v", uri, err)
	}
	math, _ := sh.Cd(ctx, "math")
	if uri, _ := math.Find(ctx, "b.txt"); uri != "imfs://ShellTest/math/b.txt" {
		t.Fatalf("Find relative = %q", uri)
	}
}

func TestAt(t *testing.T) {
	sh := newShell(t)
	ctx := context.Background()
	math, err := shell.At(ctx, sh.Session(), "math")
	if err != nil || math.Dir() != "math" {
		t.Fatalf("At = %v, %v", math, err)
	}
	if _, err := shell.At(ctx, sh.Session(), "nope"); !errors.Is(err, imfs.ErrNotFound) {
		t.Fatalf("At missing = %v", err)
	}
}

func TestExec(t *testing.T) {
	sh := newShell(t)
	ctx := context.Background()
	var out strings.Builder
	script := []string{
		"mkdir foo",
		"cd foo",
		`write "my notes.txt" alpha beta`,
		"pwd",
		"ls",
		"cat 'my notes.txt'",
		"grep b.* /",
		"find nothing",
		"cd ..",
		"",
	}
	for _, line := range script {
		if err := sh.Exec(ctx, line, &out); err != nil {
			t.Fatalf("Exec(%q): %v", line, err)
		}
	}
	want := "/foo\nmy notes.txt\nalpha\nbeta\n/foo/my notes.txt:2:beta\nnot found\n"
	if out.String() != want {
		t.Fatalf("output = %q\nwant %q", out.String(), want)
	}
	if sh.Pwd() != "/" {
		t.Fatalf("Pwd after cd .. = %q", sh.Pwd())
	}
}

func TestExecErrors(t *testing.T) {
	sh := newShell(t)
	ctx := context.Background()
	var out strings.Builder
	if err := sh.Exec(ctx, "frobnicate", &out); !errors.Is(err, shell.ErrUsage) {
		t.Fatalf("unknown command = %v", err)
	}
	if err := sh.Exec(ctx, "mv onlyone", &out); !errors.Is(err, shell.ErrUsage) {
		t.Fatalf("wrong arity = %v", err)
	}
	if err := sh.Exec(ctx, `cat "unterminated`, &out); !errors.Is(err, shell.ErrUsage) {
		t.Fatalf("bad quoting = %v", err)
	}
	if err := sh.Exec(ctx, "cd nope", &out); !errors.Is(err, imfs.ErrNotFound) {
		t.Fatalf("cd missing = %v", err)
	}
	if err := sh.Exec(ctx, "exit", &out); !errors.Is(err, shell.ErrExit) {
		t.Fatalf("exit = %v", err)
	}
	if err := sh.Exec(ctx, "help", &out); err != nil || !strings.Contains(out.String(), "mv <src> <dst>") {
		t.Fatalf("help = %v, %q", err, out.String())
	}
}
