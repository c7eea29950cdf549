package discover

import (
	"sort"
	"strings"

	"github.com/phobologic/codescope/internal/model"
)

// Structure returns the directory tree of the collected units, without file
// content.
func (c *Collection) Structure() *model.TreeNode {
	root := &model.TreeNode{Name: c.Root, Path: ".", Dir: true}
	dirs := map[string]*model.TreeNode{".": root}

	var ensureDir func(p string) *model.TreeNode
	ensureDir = func(p string) *model.TreeNode {
		if n, ok := dirs[p]; ok {
			return n
		}
		parent, name := ".", p
		if i := strings.LastIndex(p, "/"); i >= 0 {
			parent, name = p[:i], p[i+1:]
		}
		n := &model.TreeNode{Name: name, Path: p, Dir: true}
		pn := ensureDir(parent)
		pn.Children = append(pn.Children, n)
		dirs[p] = n
		return n
	}

	for _, u := range c.Units {
		dir, name := ".", u.Path
		if i := strings.LastIndex(u.Path, "/"); i >= 0 {
			dir, name = u.Path[:i], u.Path[i+1:]
		}
		d := ensureDir(dir)
		d.Children = append(d.Children, &model.TreeNode{Name: name, Path: u.Path, Language: u.Language})
	}

	sortTree(root)
	return root
}

func sortTree(n *model.TreeNode) {
	sort.Slice(n.Children, func(i, j int) bool {
		a, b := n.Children[i], n.Children[j]
		if a.Dir != b.Dir {
			return a.Dir
		}
		return a.Name < b.Name
	})
	for _, ch := range n.Children {
		if ch.Dir {
			sortTree(ch)
		}
	}
}
