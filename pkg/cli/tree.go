package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for styled output.
type Theme struct {
	Primary lipgloss.Color // Directories
	Dim     lipgloss.Color // Branches and sizes
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// TreeStyles holds the styles used by RenderTree.
type TreeStyles struct {
	Dir    lipgloss.Style
	File   lipgloss.Style
	Size   lipgloss.Style
	Branch lipgloss.Style
}

// NewTreeStyles creates tree styles from a theme.
func NewTreeStyles(t Theme) TreeStyles {
	return TreeStyles{
		Dir:    lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		File:   lipgloss.NewStyle(),
		Size:   lipgloss.NewStyle().Foreground(t.Dim),
		Branch: lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// PlainTreeStyles renders without any decoration.
func PlainTreeStyles() TreeStyles {
	plain := lipgloss.NewStyle()
	return TreeStyles{Dir: plain, File: plain, Size: plain, Branch: plain}
}

// TreeNode is one entry of a rendered tree.
type TreeNode struct {
	Name     string
	IsDir    bool
	Size     int64
	Children []TreeNode
}

// RenderTree renders root and its descendants, one entry per line:
//
//	/
//	├── math/
//	│   └── x.txt (6 B)
//	└── notes.txt (12 B)
func RenderTree(root TreeNode, st TreeStyles) string {
	var b strings.Builder
	b.WriteString(st.label(root))
	b.WriteByte('\n')
	st.children(&b, root.Children, "")
	return b.String()
}

func (st TreeStyles) children(b *strings.Builder, nodes []TreeNode, prefix string) {
	for i, n := range nodes {
		branch, indent := "├── ", "│   "
		if i == len(nodes)-1 {
			branch, indent = "└── ", "    "
		}
		b.WriteString(st.Branch.Render(prefix + branch))
		b.WriteString(st.label(n))
		b.WriteByte('\n')
		st.children(b, n.Children, prefix+indent)
	}
}

func (st TreeStyles) label(n TreeNode) string {
	if n.IsDir {
		name := n.Name
		if !strings.HasSuffix(name, "/") {
			name += "/"
		}
		return st.Dir.Render(name)
	}
	return st.File.Render(n.Name) + " " + st.Size.Render("("+FormatBytes(n.Size)+")")
}
