package reports

import (
	"fmt"
	"sort"
	"strings"
)

// TreeNode is one target with the targets derived from it.
type TreeNode struct {
	Entry    Entry
	Children []*TreeNode
}

// Tree holds the derivation hierarchy of a workspace.
type Tree struct {
	Roots []*TreeNode
}

// BuildTree links entries to their parents. An entry whose parent is not part of the
// export becomes a root.
func BuildTree(entries []Entry) *Tree {
	nodes := make(map[int64]*TreeNode, len(entries))
	for _, e := range entries {
		nodes[e.ID] = &TreeNode{Entry: e}
	}

	tree := &Tree{}
	for _, e := range entries {
		node := nodes[e.ID]
		if parent, ok := nodes[e.Parent]; ok && e.Parent != 0 && e.Parent != e.ID {
			parent.Children = append(parent.Children, node)
			continue
		}
		tree.Roots = append(tree.Roots, node)
	}

	sortNodes(tree.Roots)
	for _, n := range nodes {
		sortNodes(n.Children)
	}
	return tree
}

func sortNodes(ns []*TreeNode) {
	sort.Slice(ns, func(i, j int) bool { return ns[i].Entry.ID < ns[j].Entry.ID })
}

// GenerateASCII draws the hierarchy one target per line.
func (t *Tree) GenerateASCII() string {
	if len(t.Roots) == 0 {
		return "No targets recorded\n"
	}

	var sb strings.Builder
	for _, root := range t.Roots {
		sb.WriteString(label(root.Entry))
		sb.WriteString("\n")
		writeChildren(&sb, root.Children, "")
	}
	return sb.String()
}

func writeChildren(sb *strings.Builder, children []*TreeNode, prefix string) {
	for i, child := range children {
		branch, next := "├── ", "│   "
		if i == len(children)-1 {
			branch, next = "└── ", "    "
		}
		sb.WriteString(prefix + branch + label(child.Entry) + "\n")
		writeChildren(sb, child.Children, prefix+next)
	}
}

func label(e Entry) string {
	return fmt.Sprintf("[%d] %s %s", e.ID, e.Type, e.Name)
}
