package tree

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"regexp"
	"slices"

	"github.com/haivivi/imfs/pkg/imfs"
)

// Match is one line matched by Grep.
type Match struct {
	Path string
	Line int // 1-based
	Text string
}

// Grep searches every file at or below root for lines that match pattern
// in full, as if it were written ^(?:pattern)$. Matches come file by file in
// pre-order listing order and line order within a file. Files are read one
// at a time as the sequence is consumed, so stopping early skips the rest.
//
// Line terminators ("\n" or "\r\n") are not part of the matched text. An
// invalid pattern is reported before any searching starts.
func Grep(ctx context.Context, fsys FS, root, pattern string) (iter.Seq2[Match, error], error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, fmt.Errorf("tree: grep pattern: %w", err)
	}
	return func(yield func(Match, error) bool) {
		info, err := fsys.Stat(ctx, root)
		if err != nil {
			yield(Match{}, err)
			return
		}
		stack := []imfs.Info{info}
		for len(stack) > 0 {
			if err := ctx.Err(); err != nil {
				yield(Match{}, err)
				return
			}
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if cur.IsDir() {
				children, err := fsys.ReadDir(ctx, cur.Path())
				if err != nil {
					yield(Match{}, err)
					return
				}
				// Reversed so the first child is popped first.
				slices.Reverse(children)
				stack = append(stack, children...)
				continue
			}

			data, err := fsys.ReadFile(ctx, cur.Path())
			if err != nil {
				yield(Match{}, err)
				return
			}
			n := 0
			for line := range bytes.Lines(data) {
				n++
				line = bytes.TrimSuffix(line, []byte("\n"))
				line = bytes.TrimSuffix(line, []byte("\r"))
				if !re.Match(line) {
					continue
				}
				if !yield(Match{Path: cur.Path(), Line: n, Text: string(line)}, nil) {
					return
				}
			}
		}
	}, nil
}
