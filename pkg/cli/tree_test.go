package cli

import (
	"strings"
	"testing"
)

func TestRenderTree(t *testing.T) {
	root := TreeNode{Name: "/", IsDir: true, Children: []TreeNode{
		{Name: "math", IsDir: true, Children: []TreeNode{
			{Name: "algebra", IsDir: true},
			{Name: "x.txt", Size: 6},
		}},
		{Name: "notes.txt", Size: 2048},
	}}

	got := RenderTree(root, PlainTreeStyles())
	want := strings.Join([]string{
		"/",
		"├── math/",
		"│   ├── algebra/",
		"│   └── x.txt (6 B)",
		"└── notes.txt (2.00 KB)",
		"",
	}, "\n")
	if got != want {
		t.Errorf("RenderTree =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderTreeEmpty(t *testing.T) {
	got := RenderTree(TreeNode{Name: "Spanish", IsDir: true}, PlainTreeStyles())
	if got != "Spanish/\n" {
		t.Errorf("RenderTree = %q", got)
	}
}

func TestNewTreeStyles(t *testing.T) {
	st := NewTreeStyles(DefaultTheme)
	// Colors may be stripped without a terminal, but the text must survive.
	if !strings.Contains(st.Dir.Render("math/"), "math/") {
		t.Error("Dir style lost its text")
	}
	if !strings.Contains(RenderTree(TreeNode{Name: "f", Size: 1}, st), "f") {
		t.Error("styled render lost its text")
	}
}
